package controllers

import (
	"net/http"

	"memories/app/services"

	"github.com/gorilla/mux"
)

// CommentController handles HTTP requests for comments
type CommentController struct {
	commentService *services.CommentService
}

// NewCommentController creates a new CommentController
func NewCommentController(commentService *services.CommentService) *CommentController {
	return &CommentController{commentService: commentService}
}

type commentRequest struct {
	Value string `json:"value"`
}

// Create appends a comment to a post
func (cc *CommentController) Create(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := cc.commentService.AddComment(r.Context(), mux.Vars(r)["id"], req.Value)
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, post)
}
