// Package routes wires controllers and middleware into the HTTP router.
package routes

import (
	"log/slog"
	"net/http"

	"memories/app/controllers"
	"memories/app/events"
	"memories/app/middleware"
	"memories/app/repositories"
	"memories/app/services"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
)

// Deps are the collaborators the router needs. Only Posts is required.
type Deps struct {
	Posts          repositories.PostRepository
	Publisher      events.Publisher
	Logger         *slog.Logger
	Limiter        *middleware.RateLimiter
	Metrics        *middleware.Metrics
	JWTSecret      string
	StrictAuth     bool
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// SetupRoutes defines the application's routes and returns a router.
func SetupRoutes(d Deps) *mux.Router {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = middleware.NewMetrics(prometheus.NewRegistry())
	}

	postService := services.NewPostService(d.Posts, d.Publisher, d.Logger)
	commentService := services.NewCommentService(d.Posts, d.Publisher, d.Logger)
	postController := controllers.NewPostController(postService, d.StrictAuth)
	commentController := controllers.NewCommentController(commentService)
	healthController := controllers.NewHealthController(d.Posts)

	router := mux.NewRouter()

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(d.Logger))
	router.Use(middleware.Recoverer(d.Logger))
	router.Use(d.Metrics.Middleware)
	router.Use(middleware.ContentTypeJSON)

	router.HandleFunc("/healthz", healthController.Show).Methods(http.MethodGet)
	router.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)

	posts := router.PathPrefix("/posts").Subrouter()
	posts.Use(middleware.BodyLimit(d.MaxBodyBytes))
	posts.Use(middleware.Auth(d.JWTSecret))
	if d.Limiter != nil {
		posts.Use(d.Limiter.Writes())
	}

	// Fixed paths are registered before /{id} so they are not read as ids.
	posts.HandleFunc("", postController.Index).Methods(http.MethodGet)
	posts.HandleFunc("", postController.Create).Methods(http.MethodPost)
	posts.HandleFunc("/search", postController.Search).Methods(http.MethodGet)
	posts.HandleFunc("/byCreator", postController.ByCreator).Methods(http.MethodGet)
	posts.HandleFunc("/{id}", postController.Show).Methods(http.MethodGet)
	posts.HandleFunc("/{id}", postController.Update).Methods(http.MethodPatch)
	posts.HandleFunc("/{id}", postController.Delete).Methods(http.MethodDelete)
	posts.HandleFunc("/{id}/likePost", postController.Like).Methods(http.MethodPatch)
	posts.HandleFunc("/{id}/commentPost", commentController.Create).Methods(http.MethodPost)

	return router
}

// Handler wraps the router with CORS handling.
func Handler(d Deps) http.Handler {
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{"ETag", middleware.RequestIDHeader},
	})
	return c.Handler(SetupRoutes(d))
}
