package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploaderStub struct {
	keys   []string
	bodies []string
	err    error
}

func (u *uploaderStub) Upload(ctx context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	_ = ctx
	if u.err != nil {
		return nil, u.err
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	u.keys = append(u.keys, aws.ToString(input.Key))
	u.bodies = append(u.bodies, string(data))
	return &manager.UploadOutput{}, nil
}

type deleterStub struct {
	keys []string
}

func (d *deleterStub) DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	_ = ctx
	d.keys = append(d.keys, aws.ToString(input.Key))
	return &s3.DeleteObjectOutput{}, nil
}

type proberStub struct {
	seconds float64
	err     error
	calls   int
}

func (p *proberStub) Duration(context.Context, string) (float64, error) {
	p.calls++
	return p.seconds, p.err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestS3StorageStoreVideo(t *testing.T) {
	uploader := &uploaderStub{}
	prober := &proberStub{seconds: 42.5}
	s := &S3Storage{uploader: uploader, client: &deleterStub{}, prober: prober, bucket: "media", baseURL: "https://cdn.example.com"}

	path := writeTemp(t, "clip.MP4", "video-bytes")
	asset, err := s.Store(context.Background(), path, KindVideo)
	require.NoError(t, err)

	require.Len(t, uploader.keys, 1)
	assert.True(t, strings.HasPrefix(asset.PublicID, "videos/"))
	assert.True(t, strings.HasSuffix(asset.PublicID, ".mp4"))
	assert.Equal(t, "https://cdn.example.com/"+asset.PublicID, asset.URL)
	assert.Equal(t, 42.5, asset.Duration)
	assert.Equal(t, "video-bytes", uploader.bodies[0])

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "temporary file should be removed")
}

func TestS3StorageStoreImageSkipsProbe(t *testing.T) {
	prober := &proberStub{}
	s := &S3Storage{uploader: &uploaderStub{}, client: &deleterStub{}, prober: prober, bucket: "media"}

	asset, err := s.Store(context.Background(), writeTemp(t, "avatar.png", "png"), KindImage)
	require.NoError(t, err)
	assert.Zero(t, prober.calls)
	assert.Equal(t, asset.PublicID, asset.URL)
}

func TestS3StorageStoreRemovesTempOnFailure(t *testing.T) {
	s := &S3Storage{uploader: &uploaderStub{err: errors.New("boom")}, client: &deleterStub{}, bucket: "media"}

	path := writeTemp(t, "avatar.png", "png")
	_, err := s.Store(context.Background(), path, KindImage)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestS3StorageStoreProbeFailure(t *testing.T) {
	uploader := &uploaderStub{}
	s := &S3Storage{uploader: uploader, client: &deleterStub{}, prober: &proberStub{err: errors.New("corrupt")}, bucket: "media"}

	_, err := s.Store(context.Background(), writeTemp(t, "clip.mp4", "x"), KindVideo)
	require.Error(t, err)
	assert.Empty(t, uploader.keys)
}

func TestS3StorageStoreEmptyPath(t *testing.T) {
	s := &S3Storage{uploader: &uploaderStub{}, client: &deleterStub{}}
	_, err := s.Store(context.Background(), " ", KindImage)
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestS3StorageDelete(t *testing.T) {
	deleter := &deleterStub{}
	s := &S3Storage{uploader: &uploaderStub{}, client: deleter, bucket: "media"}

	require.NoError(t, s.Delete(context.Background(), "images/a.png", KindImage))
	require.NoError(t, s.Delete(context.Background(), "", KindImage))
	assert.Equal(t, []string{"images/a.png"}, deleter.keys)
}

type recordingStore struct {
	mu       sync.Mutex
	failures map[string]int
	deleted  []string
	attempts map[string]int
}

func (s *recordingStore) Store(context.Context, string, ResourceKind) (Asset, error) {
	return Asset{}, errors.New("not implemented")
}

func (s *recordingStore) Delete(_ context.Context, publicID string, _ ResourceKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts == nil {
		s.attempts = make(map[string]int)
	}
	s.attempts[publicID]++
	if s.failures[publicID] > 0 {
		s.failures[publicID]--
		return errors.New("transient")
	}
	s.deleted = append(s.deleted, publicID)
	return nil
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) observe(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[outcome]++
}

func TestAssetReaperDeletesQueuedAssets(t *testing.T) {
	store := &recordingStore{failures: map[string]int{"videos/b.mp4": 1}}
	outcomes := &outcomeCounter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reaper := NewAssetReaper(store, ReaperConfig{QueueSize: 4, Workers: 1, Backoff: time.Millisecond}, logger, outcomes.observe)

	err := reaper.Enqueue(context.Background(),
		Asset{PublicID: "images/a.png", Kind: KindImage},
		Asset{PublicID: "videos/b.mp4", Kind: KindVideo},
		Asset{PublicID: ""},
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, reaper.Shutdown(ctx))

	assert.ElementsMatch(t, []string{"images/a.png", "videos/b.mp4"}, store.deleted)
	assert.Equal(t, 2, store.attempts["videos/b.mp4"])
	assert.Equal(t, 2, outcomes.counts[ReapDeleted])
	assert.Zero(t, outcomes.counts[ReapFailed])
}

func TestAssetReaperGivesUpAfterMaxAttempts(t *testing.T) {
	store := &recordingStore{failures: map[string]int{"images/a.png": 10}}
	outcomes := &outcomeCounter{}
	reaper := NewAssetReaper(store, ReaperConfig{QueueSize: 1, Workers: 1, MaxAttempts: 2, Backoff: time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)), outcomes.observe)

	require.NoError(t, reaper.Enqueue(context.Background(), Asset{PublicID: "images/a.png", Kind: KindImage}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, reaper.Shutdown(ctx))

	assert.Equal(t, 2, store.attempts["images/a.png"])
	assert.Equal(t, 1, outcomes.counts[ReapFailed])
	assert.Empty(t, store.deleted)
}

func TestAssetReaperRejectsAfterShutdown(t *testing.T) {
	reaper := NewAssetReaper(&recordingStore{}, ReaperConfig{}, nil, nil)
	require.NoError(t, reaper.Shutdown(context.Background()))

	err := reaper.Enqueue(context.Background(), Asset{PublicID: "images/a.png"})
	assert.ErrorIs(t, err, errReaperClosed)

	var nilReaper *AssetReaper
	assert.NoError(t, nilReaper.Enqueue(context.Background(), Asset{PublicID: "x"}))
}
