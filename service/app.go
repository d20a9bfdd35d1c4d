package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memories/app/config"
	"memories/app/events"
	"memories/app/middleware"
	"memories/app/repositories"
	"memories/app/routes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// App holds the long-lived collaborators built from configuration.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Posts     repositories.PostRepository
	Publisher events.Publisher
	Redis     *redis.Client
	Registry  *prometheus.Registry
}

// OpenStore opens the post store selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config) (repositories.PostRepository, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		repo, err := repositories.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		if cfg.BadgerPath != "" {
			if err := os.MkdirAll(cfg.BadgerPath, 0o755); err != nil {
				return nil, fmt.Errorf("create badger directory: %w", err)
			}
		}
		db, err := repositories.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		return repositories.NewBadgerPostRepository(db, cfg.ConflictRetries), nil
	}
}

// NewApp opens the store and the optional Redis and NATS connections.
// Redis and NATS failures are logged and the app runs without them.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	posts, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Posts:     posts,
		Publisher: events.NopPublisher{},
		Registry:  prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := middleware.ConnectRedis(pingCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, rate limiting disabled", slog.Any("error", err))
		} else {
			app.Redis = client
		}
	}

	if cfg.NatsURL != "" {
		publisher, err := events.ConnectNats(cfg.NatsURL)
		if err != nil {
			logger.Warn("nats unavailable, events disabled", slog.Any("error", err))
		} else {
			app.Publisher = publisher
		}
	}
	return app, nil
}

// Handler builds the HTTP handler for the app.
func (a *App) Handler() http.Handler {
	var limiter *middleware.RateLimiter
	if a.Redis != nil {
		limiter = middleware.NewRateLimiter(a.Redis, a.Config.RateLimitWrites, time.Minute, a.Logger)
	}
	return routes.Handler(routes.Deps{
		Posts:          a.Posts,
		Publisher:      a.Publisher,
		Logger:         a.Logger,
		Limiter:        limiter,
		Metrics:        middleware.NewMetrics(a.Registry),
		JWTSecret:      a.Config.JWTSecret,
		StrictAuth:     a.Config.StrictAuth,
		AllowedOrigins: a.Config.Origins(),
		MaxBodyBytes:   a.Config.MaxBodyBytes,
	})
}

// Serve accepts connections on ln until ctx is done, then drains
// in-flight requests for up to the configured shutdown timeout.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening", slog.String("addr", ln.Addr().String()), slog.String("store", a.Config.StoreDriver))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down", slog.Duration("timeout", a.Config.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases every connection the app opened.
func (a *App) Close() error {
	var errs []error
	if err := a.Publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Posts.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RunAppServer starts the service and blocks until SIGINT or SIGTERM.
func RunAppServer(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close failed", slog.Any("error", err))
		}
	}()

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
	}
	return app.Serve(ctx, ln)
}
