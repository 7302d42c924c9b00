package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/vidstream/backend/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		AppPort:     8080,
		DatabaseURL: config.MemoryDatabase,
		Auth: config.AuthConfig{
			AccessSecret:  "access",
			RefreshSecret: "refresh",
			AccessTTL:     time.Minute,
			RefreshTTL:    time.Hour,
			Issuer:        "vidstream",
		},
		ObjectStore:   config.ObjectStoreConfig{Driver: "none"},
		AuthRateLimit: 5,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildDependencies(t *testing.T) {
	rt, err := buildDependencies(context.Background(), testConfig(), memoryBackend(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rt.Close(context.Background())

	deps := rt.routes
	if deps.Users == nil || deps.Sessions == nil || deps.Videos == nil {
		t.Fatal("expected account and video services to be configured")
	}
	if deps.Comments == nil || deps.Tweets == nil || deps.Likes == nil {
		t.Fatal("expected engagement services to be configured")
	}
	if deps.Subscriptions == nil || deps.Playlists == nil {
		t.Fatal("expected subscription and playlist services to be configured")
	}
	if deps.Limiter == nil {
		t.Fatal("expected auth rate limiter to be configured")
	}
	if deps.Metrics == nil || rt.metrics == nil {
		t.Fatal("expected metrics to be configured")
	}
	if deps.Health.Check != nil {
		t.Fatal("memory backend has nothing to probe")
	}
}

func TestBuildDependenciesWithRedisDenylist(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	rt, err := buildDependencies(context.Background(), cfg, memoryBackend(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rt.Close(context.Background()); err != nil {
		t.Fatalf("close runtime: %v", err)
	}
}

func TestBuildDependenciesRejectsUnreachableRedis(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "redis://127.0.0.1:1"

	if _, err := buildDependencies(context.Background(), cfg, memoryBackend(), discardLogger()); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestBuildDependenciesConfiguresS3(t *testing.T) {
	cfg := testConfig()
	cfg.ObjectStore = config.ObjectStoreConfig{
		Driver:    "s3",
		Bucket:    "test-bucket",
		Endpoint:  "http://localhost:9000",
		Region:    "us-east-1",
		AccessKey: "test",
		SecretKey: "test",
	}

	rt, err := buildDependencies(context.Background(), cfg, memoryBackend(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rt.Close(ctx); err != nil {
		t.Fatalf("close runtime: %v", err)
	}
}

func TestNewHandlerServesHealth(t *testing.T) {
	rt, err := buildDependencies(context.Background(), testConfig(), memoryBackend(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rt.Close(context.Background())

	handler := newHandler(rt, discardLogger())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}
