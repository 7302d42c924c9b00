package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vidstream/backend/internal/auth"
	"github.com/vidstream/backend/internal/config"
	"github.com/vidstream/backend/internal/handlers"
	"github.com/vidstream/backend/internal/media"
	"github.com/vidstream/backend/internal/memstore"
	"github.com/vidstream/backend/internal/metrics"
	"github.com/vidstream/backend/internal/middleware"
	"github.com/vidstream/backend/internal/pipeline"
	"github.com/vidstream/backend/internal/repositories"
	"github.com/vidstream/backend/internal/service"
	"github.com/vidstream/backend/internal/storage"
)

// backend is the persistence layer selected by configuration.
type backend struct {
	Users         repositories.UserRepository
	Videos        repositories.VideoRepository
	Comments      repositories.CommentRepository
	Tweets        repositories.TweetRepository
	Playlists     repositories.PlaylistRepository
	Likes         repositories.LikeRepository
	Subscriptions repositories.SubscriptionRepository
	Source        pipeline.Source
	// Ping is nil when there is nothing to probe.
	Ping func(ctx context.Context) error
}

func memoryBackend() backend {
	store := memstore.New()
	return backend{
		Users:         store.Users(),
		Videos:        store.Videos(),
		Comments:      store.Comments(),
		Tweets:        store.Tweets(),
		Playlists:     store.Playlists(),
		Likes:         store.Likes(),
		Subscriptions: store.Subscriptions(),
		Source:        store,
	}
}

func postgresBackend(pool *pgxpool.Pool) backend {
	return backend{
		Users:         repositories.NewPostgresUserRepository(pool),
		Videos:        repositories.NewPostgresVideoRepository(pool),
		Comments:      repositories.NewPostgresCommentRepository(pool),
		Tweets:        repositories.NewPostgresTweetRepository(pool),
		Playlists:     repositories.NewPostgresPlaylistRepository(pool),
		Likes:         repositories.NewPostgresLikeRepository(pool),
		Subscriptions: repositories.NewPostgresSubscriptionRepository(pool),
		Source:        repositories.NewPostgresDocumentSource(pool),
		Ping:          pool.Ping,
	}
}

// runtime holds everything serve needs beyond the route table.
type runtime struct {
	routes  handlers.Dependencies
	metrics *metrics.Collectors
	closers []func(context.Context) error
}

// Close releases background workers and clients in reverse order of creation.
func (r *runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, cfg config.Config, store backend, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{metrics: metrics.New()}

	denylist, err := newDenylist(ctx, cfg.RedisURL, rt)
	if err != nil {
		return nil, err
	}

	deps := service.Deps{
		Users:         store.Users,
		Videos:        store.Videos,
		Comments:      store.Comments,
		Tweets:        store.Tweets,
		Playlists:     store.Playlists,
		Likes:         store.Likes,
		Subscriptions: store.Subscriptions,
		Source:        store.Source,
		Hasher:        auth.BcryptHasher{},
		Metrics:       rt.metrics,
	}

	assets, err := newAssetStore(ctx, cfg)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	if assets != nil {
		reaper := storage.NewAssetReaper(assets, storage.ReaperConfig{}, logger, rt.metrics.ObserveReap)
		rt.closers = append(rt.closers, reaper.Shutdown)
		deps.Assets = assets
		deps.Reaper = reaper
	} else {
		logger.Warn("object storage disabled; uploads will be rejected")
	}

	services := service.New(deps)
	sessions := auth.NewManager(
		store.Users,
		deps.Hasher,
		auth.NewJWTCodec(cfg.Auth.AccessSecret, cfg.Auth.Issuer),
		auth.NewJWTCodec(cfg.Auth.RefreshSecret, cfg.Auth.Issuer),
		auth.Config{AccessTTL: cfg.Auth.AccessTTL, RefreshTTL: cfg.Auth.RefreshTTL},
		auth.WithDenylist(denylist),
	)

	var limiter handlers.RateLimiter
	if cfg.AuthRateLimit > 0 {
		limiter = middleware.NewIPRateLimiter(cfg.AuthRateLimit, time.Minute, cfg.AuthRateLimit, 10*time.Minute)
	}

	rt.routes = handlers.Dependencies{
		Users:         services.Users,
		Sessions:      sessions,
		Videos:        services.Videos,
		Comments:      services.Comments,
		Tweets:        services.Tweets,
		Likes:         services.Likes,
		Subscriptions: services.Subscriptions,
		Playlists:     services.Playlists,
		Limiter:       limiter,
		Uploads:       handlers.Uploads{Dir: cfg.UploadDir, MaxBytes: cfg.MaxUploadBytes},
		SecureCookies: cfg.SecureCookies,
		Health:        handlers.HealthHandler{Check: store.Ping, Timeout: 2 * time.Second},
		Metrics:       rt.metrics.Handler(),
	}
	return rt, nil
}

// newDenylist uses Redis when configured and an in-process list otherwise.
func newDenylist(ctx context.Context, redisURL string, rt *runtime) (auth.Denylist, error) {
	if redisURL == "" {
		return auth.NewMemoryDenylist(), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
	return auth.NewRedisDenylist(client), nil
}

// newAssetStore returns nil when object storage is disabled.
func newAssetStore(ctx context.Context, cfg config.Config) (storage.AssetStore, error) {
	prober := media.NewFFProbe(cfg.FFProbePath, cfg.FFProbeTimeout)
	switch cfg.ObjectStore.Driver {
	case "s3":
		return storage.NewS3Storage(ctx, cfg.ObjectStore, prober)
	case "minio":
		return storage.NewMinioStorage(ctx, cfg.ObjectStore, prober)
	default:
		return nil, nil
	}
}
