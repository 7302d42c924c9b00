package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ResourceKind selects how an asset is stored and whether it is probed.
type ResourceKind string

const (
	KindImage ResourceKind = "image"
	KindVideo ResourceKind = "video"
)

// Asset is a stored object.
type Asset struct {
	URL      string       `json:"url"`
	PublicID string       `json:"publicId"`
	Kind     ResourceKind `json:"kind"`
	// Duration is set for videos, in seconds.
	Duration float64 `json:"duration,omitempty"`
}

// AssetStore uploads local temporary files and deletes stored objects.
// Store always removes the local file, whether or not the upload succeeded.
type AssetStore interface {
	Store(ctx context.Context, localPath string, kind ResourceKind) (Asset, error)
	Delete(ctx context.Context, publicID string, kind ResourceKind) error
}

// DurationProber measures media length.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

var (
	// ErrEmptyPath indicates Store was called without a file.
	ErrEmptyPath = errors.New("storage: empty local path")
	// ErrStorageUnavailable indicates no object store is configured.
	ErrStorageUnavailable = errors.New("storage: object store unavailable")
)

func objectKey(kind ResourceKind, localPath string) string {
	return fmt.Sprintf("%ss/%s%s", kind, uuid.NewString(), strings.ToLower(filepath.Ext(localPath)))
}

func contentType(localPath string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func probe(ctx context.Context, prober DurationProber, localPath string, kind ResourceKind) (float64, error) {
	if kind != KindVideo || prober == nil {
		return 0, nil
	}
	d, err := prober.Duration(ctx, localPath)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	return d, nil
}

func removeTemp(localPath string) {
	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("remove temporary upload", "path", localPath, "error", err)
	}
}

func publicURL(baseURL, key string) string {
	if baseURL == "" {
		return key
	}
	return baseURL + "/" + key
}
