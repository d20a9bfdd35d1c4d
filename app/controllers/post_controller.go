package controllers

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"memories/app/middleware"
	"memories/app/models"
	"memories/app/services"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/sha3"
)

// PostController handles HTTP requests for posts
type PostController struct {
	postService *services.PostService
	strictAuth  bool
}

// NewPostController creates a new PostController. With strictAuth an
// anonymous like is answered with 401 instead of a 200 message.
func NewPostController(postService *services.PostService, strictAuth bool) *PostController {
	return &PostController{postService: postService, strictAuth: strictAuth}
}

type listResponse struct {
	Data []*models.Post `json:"data"`
}

type pageResponse struct {
	Data          []*models.Post `json:"data"`
	CurrentPage   int            `json:"currentPage"`
	NumberOfPages int            `json:"numberOfPages"`
}

// Index renders one page of the feed
func (pc *PostController) Index(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	result, err := pc.postService.ListPosts(r.Context(), page)
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, pageResponse{
		Data:          result.Posts,
		CurrentPage:   result.CurrentPage,
		NumberOfPages: result.NumberOfPages,
	})
}

// Search finds posts by title substring or tag
func (pc *PostController) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	posts, err := pc.postService.SearchPosts(r.Context(), q.Get("searchQuery"), q.Get("tags"))
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, listResponse{Data: posts})
}

// ByCreator lists the posts of one display name
func (pc *PostController) ByCreator(w http.ResponseWriter, r *http.Request) {
	posts, err := pc.postService.ListPostsByCreator(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, listResponse{Data: posts})
}

// Show renders a single post with a weak ETag
func (pc *PostController) Show(w http.ResponseWriter, r *http.Request) {
	post, err := pc.postService.GetPost(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendError(w, err)
		return
	}

	body, err := json.Marshal(post)
	if err != nil {
		sendMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	etag := ETag(body)
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

// Create handles post creation
func (pc *PostController) Create(w http.ResponseWriter, r *http.Request) {
	var fields models.PostFields
	if !decodeJSON(w, r, &fields) {
		return
	}

	post, err := pc.postService.CreatePost(r.Context(), fields, middleware.UserID(r.Context()))
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, post)
}

// Update overwrites the editable fields of a post
func (pc *PostController) Update(w http.ResponseWriter, r *http.Request) {
	var fields models.PostFields
	if !decodeJSON(w, r, &fields) {
		return
	}

	post, err := pc.postService.UpdatePost(r.Context(), mux.Vars(r)["id"], fields)
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, post)
}

// Delete handles post deletion
func (pc *PostController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := pc.postService.DeletePost(r.Context(), mux.Vars(r)["id"]); err != nil {
		sendError(w, err)
		return
	}
	sendMessage(w, http.StatusOK, services.DeletedMessage)
}

// Like toggles the caller's like on a post
func (pc *PostController) Like(w http.ResponseWriter, r *http.Request) {
	post, err := pc.postService.LikePost(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if errors.Is(err, services.ErrUnauthenticated) {
		status := http.StatusOK
		if pc.strictAuth {
			status = http.StatusUnauthorized
		}
		sendMessage(w, status, err.Error())
		return
	}
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, post)
}

// ETag returns a weak entity tag for body.
func ETag(body []byte) string {
	sum := sha3.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || candidate == etag || "W/"+candidate == etag {
			return true
		}
	}
	return false
}
