package routes

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"memories/app/events"
	"memories/app/middleware"
	"memories/app/models"
	"memories/app/repositories"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "routes-test-secret"

func setupTestHandler(t *testing.T, mutate func(*Deps)) (http.Handler, *events.Recorder) {
	t.Helper()
	db, err := repositories.OpenBadger("")
	require.NoError(t, err)
	postRepo := repositories.NewBadgerPostRepository(db, repositories.DefaultConflictRetries)
	t.Cleanup(func() { _ = postRepo.Close() })

	recorder := &events.Recorder{}
	deps := Deps{
		Posts:        postRepo,
		Publisher:    recorder,
		Logger:       slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		JWTSecret:    testSecret,
		MaxBodyBytes: 1 << 20,
	}
	if mutate != nil {
		mutate(&deps)
	}
	return Handler(deps), recorder
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(h http.Handler, method, path, body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPostLifecycle(t *testing.T) {
	h, recorder := setupTestHandler(t, nil)
	alice := bearer(t, "alice-id")

	w := serve(h, http.MethodPost, "/posts", `{"title":"A","message":"B","tags":["x"],"name":"Alice"}`, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	var post models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	assert.Equal(t, "alice-id", post.Creator)
	id := post.ID.Hex()

	w = serve(h, http.MethodGet, "/posts/"+id, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	w = serve(h, http.MethodPatch, "/posts/"+id+"/likePost", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Unauthenticated"}`, w.Body.String())

	w = serve(h, http.MethodPatch, "/posts/"+id+"/likePost", "", alice)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	assert.Equal(t, []string{"alice-id"}, post.Likes)

	w = serve(h, http.MethodPost, "/posts/"+id+"/commentPost", `{"value":"Alice: hi"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	assert.Equal(t, []string{"Alice: hi"}, post.Comments)

	w = serve(h, http.MethodPatch, "/posts/"+id, `{"title":"A2","message":"B","tags":["x"],"name":"Alice"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	assert.Equal(t, "A2", post.Title)
	assert.Equal(t, []string{"alice-id"}, post.Likes)
	assert.Equal(t, "alice-id", post.Creator)

	w = serve(h, http.MethodGet, "/posts/search?searchQuery=a2&tags=", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)

	w = serve(h, http.MethodGet, "/posts/byCreator?name=Alice", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)

	w = serve(h, http.MethodDelete, "/posts/"+id, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Post deleted successfully."}`, w.Body.String())

	w = serve(h, http.MethodGet, "/posts/"+id, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, []string{
		events.PostCreated,
		events.PostLiked,
		events.PostCommented,
		events.PostUpdated,
		events.PostDeleted,
	}, recorder.Types())
}

func TestFixedPathsAreNotIDs(t *testing.T) {
	h, _ := setupTestHandler(t, nil)

	w := serve(h, http.MethodGet, "/posts/search?searchQuery=x", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())

	w = serve(h, http.MethodGet, "/posts/byCreator?name=nobody", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

func TestListHugePageIsEmpty(t *testing.T) {
	h, _ := setupTestHandler(t, nil)

	w := serve(h, http.MethodPost, "/posts", `{"title":"t"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(h, http.MethodGet, "/posts?page=2305843009213693953", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[],"currentPage":2305843009213693953,"numberOfPages":1}`, w.Body.String())
}

func TestInvalidToken(t *testing.T) {
	h, _ := setupTestHandler(t, nil)

	w := serve(h, http.MethodPost, "/posts", `{"title":"x"}`, "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"message"`)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := setupTestHandler(t, nil)

	w := serve(h, http.MethodPut, "/posts/abc", `{}`, "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := setupTestHandler(t, nil)

	w := serve(h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	serve(h, http.MethodGet, "/posts", "", "")
	w = serve(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `memories_http_requests_total{method="GET",route="/posts",status="200"}`)
	assert.NotContains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestCORS(t *testing.T) {
	h, _ := setupTestHandler(t, func(d *Deps) {
		d.AllowedOrigins = []string{"http://localhost:3000"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/posts/abc/likePost", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWriteRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h, _ := setupTestHandler(t, func(d *Deps) {
		d.Limiter = middleware.NewRateLimiter(client, 2, time.Minute, d.Logger)
	})

	assert.Equal(t, http.StatusCreated, serve(h, http.MethodPost, "/posts", `{"title":"1"}`, "").Code)
	assert.Equal(t, http.StatusCreated, serve(h, http.MethodPost, "/posts", `{"title":"2"}`, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodPost, "/posts", `{"title":"3"}`, "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/posts", "", "").Code)
}

func TestBodyLimit(t *testing.T) {
	h, _ := setupTestHandler(t, func(d *Deps) { d.MaxBodyBytes = 64 })

	w := serve(h, http.MethodPost, "/posts", `{"selectedFile":"`+strings.Repeat("a", 128)+`"}`, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
