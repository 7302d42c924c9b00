package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vidstream/backend/internal/config"
	"github.com/vidstream/backend/internal/db"
	"github.com/vidstream/backend/internal/handlers"
	"github.com/vidstream/backend/internal/httpserver"
	"github.com/vidstream/backend/internal/middleware"
)

// Run bootstraps the VidStream backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	store := memoryBackend()
	if cfg.UsesMemoryStore() {
		logger.Warn("using in-memory store; data is lost on restart")
	} else {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgresBackend(pool)
	}

	rt, err := buildDependencies(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.AppPort, newHandler(rt, logger),
		httpserver.WithTimeouts(cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout))

	logger.Info("starting http server", "port", cfg.AppPort, "objectStore", cfg.ObjectStore.Driver)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	return errors.Join(runErr, srv.Shutdown(shutdownCtx), rt.Close(shutdownCtx))
}

// newHandler assembles the route table behind the request logger and metrics.
// Metrics sits inside the logger so it observes the pattern the mux matched.
func newHandler(rt *runtime, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, rt.routes)
	return middleware.RequestLogger(logger)(middleware.Metrics(rt.metrics)(mux))
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}
