package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"memories/app/events"
	"memories/app/middleware"
	"memories/app/models"
	"memories/app/repositories/mock"
	"memories/app/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func setupTestRouter(t *testing.T, strictAuth bool) (*mux.Router, *mock.PostRepository) {
	t.Helper()
	postRepo := mock.NewPostRepository()
	postService := services.NewPostService(postRepo, &events.Recorder{}, nil)
	commentService := services.NewCommentService(postRepo, &events.Recorder{}, nil)
	pc := NewPostController(postService, strictAuth)
	cc := NewCommentController(commentService)

	router := mux.NewRouter()
	router.Use(middleware.BodyLimit(1024))
	router.HandleFunc("/posts", pc.Index).Methods(http.MethodGet)
	router.HandleFunc("/posts", pc.Create).Methods(http.MethodPost)
	router.HandleFunc("/posts/search", pc.Search).Methods(http.MethodGet)
	router.HandleFunc("/posts/byCreator", pc.ByCreator).Methods(http.MethodGet)
	router.HandleFunc("/posts/{id}", pc.Show).Methods(http.MethodGet)
	router.HandleFunc("/posts/{id}", pc.Update).Methods(http.MethodPatch)
	router.HandleFunc("/posts/{id}", pc.Delete).Methods(http.MethodDelete)
	router.HandleFunc("/posts/{id}/likePost", pc.Like).Methods(http.MethodPatch)
	router.HandleFunc("/posts/{id}/commentPost", cc.Create).Methods(http.MethodPost)
	return router, postRepo
}

func doRequest(router http.Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodePost(t *testing.T, w *httptest.ResponseRecorder) models.Post {
	t.Helper()
	var post models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	return post
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["message"]
}

func TestPostController(t *testing.T) {
	router, _ := setupTestRouter(t, false)
	var id string

	t.Run("create post", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/posts",
			`{"title":"A","message":"B","tags":["x"],"name":"Alice"}`, "")

		require.Equal(t, http.StatusCreated, w.Code)
		post := decodePost(t, w)
		assert.False(t, post.ID.IsZero())
		assert.Empty(t, post.Creator)
		assert.False(t, post.CreatedAt.IsZero())
		assert.Contains(t, w.Body.String(), `"likes":[]`)
		assert.Contains(t, w.Body.String(), `"comments":[]`)
		id = post.ID.Hex()
	})

	t.Run("create post ignores client server fields", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/posts",
			`{"title":"Mine","creator":"spoofed","likes":["x"]}`, "user-7")

		require.Equal(t, http.StatusCreated, w.Code)
		post := decodePost(t, w)
		assert.Equal(t, "user-7", post.Creator)
		assert.Empty(t, post.Likes)
	})

	t.Run("show post", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/posts/"+id, "", "")

		require.Equal(t, http.StatusOK, w.Code)
		post := decodePost(t, w)
		assert.Equal(t, "A", post.Title)
		assert.Equal(t, []string{"x"}, post.Tags)
		assert.NotEmpty(t, w.Header().Get("ETag"))
	})

	t.Run("show post not modified", func(t *testing.T) {
		first := doRequest(router, http.MethodGet, "/posts/"+id, "", "")
		etag := first.Header().Get("ETag")

		req := httptest.NewRequest(http.MethodGet, "/posts/"+id, nil)
		req.Header.Set("If-None-Match", etag)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotModified, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("show unknown post", func(t *testing.T) {
		missing := bson.NewObjectID().Hex()
		w := doRequest(router, http.MethodGet, "/posts/"+missing, "", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "No post with id: "+missing, decodeMessage(t, w))
	})

	t.Run("update post", func(t *testing.T) {
		w := doRequest(router, http.MethodPatch, "/posts/"+id,
			`{"title":"A2","message":"B2","tags":["y"],"name":"Alice"}`, "")

		require.Equal(t, http.StatusOK, w.Code)
		post := decodePost(t, w)
		assert.Equal(t, "A2", post.Title)
		assert.Equal(t, []string{"y"}, post.Tags)
		assert.Equal(t, id, post.ID.Hex())
	})

	t.Run("update with invalid id", func(t *testing.T) {
		w := doRequest(router, http.MethodPatch, "/posts/nope", `{"title":"x"}`, "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "No post with that id", decodeMessage(t, w))
	})

	t.Run("update with malformed json", func(t *testing.T) {
		w := doRequest(router, http.MethodPatch, "/posts/"+id, `{"title":`, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, decodeMessage(t, w))
	})

	t.Run("delete post", func(t *testing.T) {
		w := doRequest(router, http.MethodDelete, "/posts/"+id, "", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, services.DeletedMessage, decodeMessage(t, w))

		w = doRequest(router, http.MethodGet, "/posts/"+id, "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete with invalid id", func(t *testing.T) {
		w := doRequest(router, http.MethodDelete, "/posts/bogus", "", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "No post with id: bogus", decodeMessage(t, w))
	})
}

func TestPostControllerIndex(t *testing.T) {
	router, _ := setupTestRouter(t, false)
	for i := 0; i < 10; i++ {
		w := doRequest(router, http.MethodPost, "/posts", fmt.Sprintf(`{"title":"Post %d"}`, i), "")
		require.Equal(t, http.StatusCreated, w.Code)
	}

	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantCount int
	}{
		{name: "first page", query: "?page=1", wantPage: 1, wantCount: 8},
		{name: "second page", query: "?page=2", wantPage: 2, wantCount: 2},
		{name: "past the end", query: "?page=5", wantPage: 5, wantCount: 0},
		{name: "missing page", query: "", wantPage: 1, wantCount: 8},
		{name: "invalid page", query: "?page=abc", wantPage: 1, wantCount: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/posts"+tt.query, "", "")
			require.Equal(t, http.StatusOK, w.Code)

			var body struct {
				Data          []models.Post `json:"data"`
				CurrentPage   int           `json:"currentPage"`
				NumberOfPages int           `json:"numberOfPages"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Len(t, body.Data, tt.wantCount)
			assert.Equal(t, tt.wantPage, body.CurrentPage)
			assert.Equal(t, 2, body.NumberOfPages)
			assert.NotContains(t, w.Body.String(), `"data":null`)
		})
	}
}

func TestPostControllerSearchAndByCreator(t *testing.T) {
	router, _ := setupTestRouter(t, false)
	for _, body := range []string{
		`{"title":"Apple","name":"Alice"}`,
		`{"title":"Banana","tags":["y"],"name":"Bob"}`,
		`{"title":"Cherry","tags":["z"],"name":"Alice"}`,
	} {
		require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/posts", body, "").Code)
	}

	titles := func(w *httptest.ResponseRecorder) []string {
		var body struct {
			Data []models.Post `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		out := []string{}
		for _, p := range body.Data {
			out = append(out, p.Title)
		}
		return out
	}

	w := doRequest(router, http.MethodGet, "/posts/search?searchQuery=a&tags=x,y", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []string{"Apple", "Banana"}, titles(w))

	w = doRequest(router, http.MethodGet, "/posts/search?searchQuery=zzz&tags=", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)

	w = doRequest(router, http.MethodGet, "/posts/byCreator?name=Alice", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []string{"Apple", "Cherry"}, titles(w))
}

func TestPostControllerLike(t *testing.T) {
	router, _ := setupTestRouter(t, false)
	w := doRequest(router, http.MethodPost, "/posts", `{"title":"Likeable"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodePost(t, w).ID.Hex()

	t.Run("anonymous", func(t *testing.T) {
		w := doRequest(router, http.MethodPatch, "/posts/"+id+"/likePost", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Unauthenticated", decodeMessage(t, w))
	})

	t.Run("toggle", func(t *testing.T) {
		w := doRequest(router, http.MethodPatch, "/posts/"+id+"/likePost", "", "u1")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"u1"}, decodePost(t, w).Likes)

		w = doRequest(router, http.MethodPatch, "/posts/"+id+"/likePost", "", "u1")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decodePost(t, w).Likes)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := doRequest(router, http.MethodPatch, "/posts/nope/likePost", "", "u1")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPostControllerLikeStrictAuth(t *testing.T) {
	router, _ := setupTestRouter(t, true)
	w := doRequest(router, http.MethodPatch, "/posts/"+bson.NewObjectID().Hex()+"/likePost", "", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthenticated", decodeMessage(t, w))
}

func TestPostControllerErrors(t *testing.T) {
	router, postRepo := setupTestRouter(t, false)

	t.Run("create with invalid fields", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/posts", `{"title":"`+strings.Repeat("a", 201)+`"}`, "")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NotEmpty(t, decodeMessage(t, w))
	})

	t.Run("create with empty body", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/posts", "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("body too large", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/posts", `{"selectedFile":"`+strings.Repeat("a", 2048)+`"}`, "")
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.NotEmpty(t, decodeMessage(t, w))
	})

	t.Run("store failures", func(t *testing.T) {
		postRepo.Err = errors.New("store offline")
		defer func() { postRepo.Err = nil }()

		w := doRequest(router, http.MethodGet, "/posts", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "store offline", decodeMessage(t, w))

		w = doRequest(router, http.MethodPost, "/posts", `{"title":"x"}`, "")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "store offline", decodeMessage(t, w))
	})
}

func TestETag(t *testing.T) {
	a := ETag([]byte(`{"title":"a"}`))
	b := ETag([]byte(`{"title":"b"}`))
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, `W/"`))
	assert.True(t, etagMatches(a, a))
	assert.True(t, etagMatches(`"x", `+a, a))
	assert.True(t, etagMatches("*", a))
	assert.False(t, etagMatches("", a))
	assert.False(t, etagMatches(b, a))
}

func TestHealthController(t *testing.T) {
	postRepo := mock.NewPostRepository()
	hc := NewHealthController(postRepo)

	w := httptest.NewRecorder()
	hc.Show(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	postRepo.Err = errors.New("down")
	w = httptest.NewRecorder()
	hc.Show(w, httptest.NewRequest(http.MethodGet, "/healthz", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
