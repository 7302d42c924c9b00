package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vidstream/backend/internal/config"
)

// MinioStorage implements AssetStore on a MinIO server.
type MinioStorage struct {
	client  *minio.Client
	prober  DurationProber
	bucket  string
	baseURL string
}

// NewMinioStorage connects to the configured MinIO endpoint and ensures the bucket exists.
func NewMinioStorage(ctx context.Context, cfg config.ObjectStoreConfig, prober DurationProber) (*MinioStorage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("minio storage: bucket is required")
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	s := &MinioStorage{
		client:  client,
		prober:  prober,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStorage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("minio make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Store uploads the local file and removes it afterwards.
func (s *MinioStorage) Store(ctx context.Context, localPath string, kind ResourceKind) (Asset, error) {
	if strings.TrimSpace(localPath) == "" {
		return Asset{}, ErrEmptyPath
	}
	defer removeTemp(localPath)

	duration, err := probe(ctx, s.prober, localPath, kind)
	if err != nil {
		return Asset{}, err
	}

	key := objectKey(kind, localPath)
	if _, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	}); err != nil {
		return Asset{}, fmt.Errorf("minio upload %s: %w", key, err)
	}

	return Asset{URL: publicURL(s.baseURL, key), PublicID: key, Kind: kind, Duration: duration}, nil
}

// Delete removes a stored object.
func (s *MinioStorage) Delete(ctx context.Context, publicID string, _ ResourceKind) error {
	if strings.TrimSpace(publicID) == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete %s: %w", publicID, err)
	}
	return nil
}
