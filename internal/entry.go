// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/gencache"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/tagger"
	"github.com/starford/ansuz/internal/watcher"
)

// Pipeline bundles the wired annotation services for use by the server
// and the one-shot CLI commands.
type Pipeline struct {
	Store  storage.Provider
	Tagger *tagger.Service
	Notes  *noteservice.Service

	cache *gencache.Cache
}

// Close releases pipeline resources.
func (p *Pipeline) Close() {
	if p.cache != nil {
		_ = p.cache.Close()
	}
}

// NewLogger builds the application's structured JSON logger and installs
// it as the slog default.
func NewLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// BuildPipeline wires storage, the generation cache, the tagger, and the
// note service from configuration.
func BuildPipeline(cfg *Config, logger *slog.Logger) (*Pipeline, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	var cache *gencache.Cache
	if cfg.Generation.Cache.Enabled {
		cache, err = gencache.Open(cfg.Generation.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("init generation cache: %w", err)
		}
	}

	gen, err := tagger.New(tagger.Options{
		Provider:  cfg.Provider.AsProvider(),
		TagCount:  cfg.Generation.TagCount,
		MaxTokens: cfg.Generation.MaxTokens,
		Timeout:   cfg.Provider.Timeout(),
		Cache:     cache,
		CacheTTL:  cfg.Generation.Cache.TTL(),
		Logger:    logger,
	})
	if err != nil {
		if cache != nil {
			_ = cache.Close()
		}
		return nil, fmt.Errorf("init tagger: %w", err)
	}

	// Cached generations from a different backend or model are stale.
	if cache != nil {
		if err := cache.EnsureProvider(gen.ProviderFingerprint()); err != nil {
			logger.Warn("cache provider check failed", slog.String("error", err.Error()))
		}
	}

	notes := noteservice.NewService(store, gen, cfg.Generation.Properties, logger)

	return &Pipeline{Store: store, Tagger: gen, Notes: notes, cache: cache}, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := NewLogger(cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("provider", cfg.Provider.Kind),
		slog.String("log_level", cfg.App.LogLevel.String()))

	pipeline, err := BuildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	apiRouter := api.NewRouter(pipeline.Notes, pipeline.Tagger,
		cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start the annotation watcher.
	if cfg.Triggers.Watch {
		g.Go(func() error {
			return watcher.Watch(gCtx, cfg.Vault.Path, cfg.Triggers.Debounce(), logger,
				func(ctx context.Context, path string) {
					res, procErr := pipeline.Notes.ProcessNote(ctx, path, false)
					if procErr != nil {
						logger.Warn("annotation failed",
							slog.String("path", path),
							slog.String("error", procErr.Error()))
						return
					}
					broker.PublishProcessed(path, res)
				})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
