package storage

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ReaperConfig controls the concurrency and retry behaviour of the reaper.
type ReaperConfig struct {
	QueueSize   int
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
}

// ReapObserver records the outcome of each asset deletion.
type ReapObserver func(outcome string)

const (
	ReapDeleted = "deleted"
	ReapFailed  = "failed"
)

// AssetReaper deletes stored media in the background after the owning
// entity is gone. Failures are logged and counted but never surface to callers.
type AssetReaper struct {
	store   AssetStore
	logger  *slog.Logger
	observe ReapObserver
	cfg     ReaperConfig

	mu     sync.RWMutex
	closed bool
	jobs   chan Asset
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var errReaperClosed = errors.New("asset reaper closed")

// NewAssetReaper starts the worker pool.
func NewAssetReaper(store AssetStore, cfg ReaperConfig, logger *slog.Logger, observe ReapObserver) *AssetReaper {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	if observe == nil {
		observe = func(string) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &AssetReaper{
		store:   store,
		logger:  logger,
		observe: observe,
		cfg:     cfg,
		jobs:    make(chan Asset, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.worker()
	}
	return r
}

// Enqueue schedules deletion of the supplied assets. Assets without a public id are skipped.
func (r *AssetReaper) Enqueue(ctx context.Context, assets ...Asset) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errReaperClosed
	}

	for _, asset := range assets {
		if strings.TrimSpace(asset.PublicID) == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r.jobs <- asset:
		}
	}
	return nil
}

// Shutdown stops accepting work and waits for queued deletions to finish.
// Outstanding work is abandoned when ctx expires.
func (r *AssetReaper) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.jobs)
		r.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	case <-done:
		r.cancel()
		return nil
	}
}

func (r *AssetReaper) worker() {
	defer r.wg.Done()
	for asset := range r.jobs {
		if r.ctx.Err() != nil {
			return
		}
		r.handle(asset)
	}
}

func (r *AssetReaper) handle(asset Asset) {
	if r.store == nil {
		r.logger.Warn("asset reaper has no store", "publicId", asset.PublicID)
		r.observe(ReapFailed)
		return
	}

	var err error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(r.ctx, 30*time.Second)
		err = r.store.Delete(ctx, asset.PublicID, asset.Kind)
		cancel()
		if err == nil {
			r.observe(ReapDeleted)
			return
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}
		select {
		case <-r.ctx.Done():
			r.observe(ReapFailed)
			return
		case <-time.After(r.cfg.Backoff * time.Duration(attempt)):
		}
	}

	r.logger.Error("asset deletion failed", "publicId", asset.PublicID, "kind", asset.Kind, "attempts", r.cfg.MaxAttempts, "error", err)
	r.observe(ReapFailed)
}
