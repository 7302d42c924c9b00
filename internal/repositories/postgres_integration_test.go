package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidstream/backend/internal/db"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/pipeline"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "alice")

	dup := user
	dup.ID = uuid.NewString()
	dup.Email = "other@example.com"
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	byLogin, err := repo.FindByLogin(ctx, "", user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byLogin.ID != user.ID || byLogin.Password != user.Password {
		t.Fatalf("unexpected user fetched: %+v", byLogin)
	}

	if _, err := repo.FindByLogin(ctx, "nobody", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	updated, err := repo.UpdateAccount(ctx, user.ID, "Alice Liddell", "liddell@example.com", time.Now().UTC())
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if updated.FullName != "Alice Liddell" || updated.Email != "liddell@example.com" {
		t.Fatalf("expected updated fields to persist, got %+v", updated)
	}

	if err := repo.UpdateAvatar(ctx, uuid.NewString(), "u", "p", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}

	for _, videoID := range []string{"v1", "v2", "v1"} {
		if err := repo.AddToWatchHistory(ctx, user.ID, videoID); err != nil {
			t.Fatalf("add to watch history: %v", err)
		}
	}
	fetched, err := repo.FindByLogin(ctx, "alice", "")
	if err != nil {
		t.Fatalf("find by login: %v", err)
	}
	if len(fetched.WatchHistory) != 2 || fetched.WatchHistory[0] != "v1" || fetched.WatchHistory[1] != "v2" {
		t.Fatalf("unexpected watch history %v", fetched.WatchHistory)
	}
}

func TestPostgresUserRepository_RefreshTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "bob")

	if err := repo.SetRefreshToken(ctx, user.ID, "r1"); err != nil {
		t.Fatalf("set refresh token: %v", err)
	}

	swapped, err := repo.SwapRefreshToken(ctx, user.ID, "r1", "r2")
	if err != nil || !swapped {
		t.Fatalf("expected swap to succeed, got %v %v", swapped, err)
	}

	swapped, err = repo.SwapRefreshToken(ctx, user.ID, "r1", "r3")
	if err != nil {
		t.Fatalf("swap stale token: %v", err)
	}
	if swapped {
		t.Fatal("expected stale swap to be rejected")
	}

	endedAt := time.Now().UTC().Truncate(time.Millisecond)
	if err := repo.ClearRefreshToken(ctx, user.ID, endedAt); err != nil {
		t.Fatalf("clear refresh token: %v", err)
	}

	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if fetched.RefreshToken != "" {
		t.Fatalf("expected refresh token cleared, got %q", fetched.RefreshToken)
	}
	if fetched.SessionEndedAt == nil || !timesClose(*fetched.SessionEndedAt, endedAt, time.Millisecond) {
		t.Fatalf("unexpected session end %v", fetched.SessionEndedAt)
	}

	if err := repo.SetRefreshToken(ctx, user.ID, "r4"); err != nil {
		t.Fatalf("set refresh token after logout: %v", err)
	}
	fetched, _ = repo.FindByID(ctx, user.ID)
	if fetched.SessionEndedAt != nil {
		t.Fatal("expected new login to clear the session end marker")
	}
}

func TestPostgresLikeRepository_UniqueAndCascade(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresLikeRepository(testPool)
	target := models.LikeTarget{Kind: models.TargetComment, ID: "c1"}
	like := models.Like{ID: uuid.NewString(), LikedBy: "u1", Target: target, CreatedAt: time.Now().UTC()}

	if err := repo.CreateLike(ctx, like); err != nil {
		t.Fatalf("create like: %v", err)
	}
	again := like
	again.ID = uuid.NewString()
	if err := repo.CreateLike(ctx, again); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate like, got %v", err)
	}

	found, err := repo.FindLike(ctx, "u1", target)
	if err != nil {
		t.Fatalf("find like: %v", err)
	}
	if found.ID != like.ID || found.Target != target {
		t.Fatalf("unexpected like %+v", found)
	}

	other := models.Like{ID: uuid.NewString(), LikedBy: "u2", Target: target, CreatedAt: time.Now().UTC()}
	video := models.Like{ID: uuid.NewString(), LikedBy: "u2", Target: models.LikeTarget{Kind: models.TargetVideo, ID: "c1"}, CreatedAt: time.Now().UTC()}
	for _, l := range []models.Like{other, video} {
		if err := repo.CreateLike(ctx, l); err != nil {
			t.Fatalf("create like: %v", err)
		}
	}

	removed, err := repo.DeleteByTargets(ctx, models.TargetComment, []string{"c1", "c2"})
	if err != nil {
		t.Fatalf("delete by targets: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 likes removed, got %d", removed)
	}

	removed, err = repo.DeleteByTargets(ctx, models.TargetComment, []string{"c1"})
	if err != nil || removed != 0 {
		t.Fatalf("expected idempotent cascade, got %d %v", removed, err)
	}

	if _, err := repo.FindLike(ctx, "u2", video.Target); err != nil {
		t.Fatalf("video like should survive comment cascade: %v", err)
	}
}

func TestPostgresSubscriptionRepository_Constraints(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresSubscriptionRepository(testPool)
	sub := models.Subscription{ID: uuid.NewString(), SubscriberID: "fan", ChannelID: "chan", CreatedAt: time.Now().UTC()}
	if err := repo.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	dup := sub
	dup.ID = uuid.NewString()
	if err := repo.CreateSubscription(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	self := models.Subscription{ID: uuid.NewString(), SubscriberID: "chan", ChannelID: "chan", CreatedAt: time.Now().UTC()}
	if err := repo.CreateSubscription(ctx, self); err == nil {
		t.Fatal("expected self subscription to be rejected")
	}

	if err := repo.DeleteSubscription(ctx, sub.ID); err != nil {
		t.Fatalf("delete subscription: %v", err)
	}
	if _, err := repo.FindSubscription(ctx, "fan", "chan"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresPlaylistRepository_Videos(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresPlaylistRepository(testPool)
	playlist := models.Playlist{ID: uuid.NewString(), OwnerID: "u1", Name: "mix", Description: "d", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, playlist); err != nil {
		t.Fatalf("create playlist: %v", err)
	}

	for _, id := range []string{"v1", "v2", "v1"} {
		if err := repo.AddVideo(ctx, playlist.ID, id, time.Now().UTC()); err != nil {
			t.Fatalf("add video: %v", err)
		}
	}
	if err := repo.RemoveVideo(ctx, playlist.ID, "v1", time.Now().UTC()); err != nil {
		t.Fatalf("remove video: %v", err)
	}
	if err := repo.RemoveVideo(ctx, playlist.ID, "absent", time.Now().UTC()); err != nil {
		t.Fatalf("remove absent video: %v", err)
	}

	fetched, err := repo.FindByID(ctx, playlist.ID)
	if err != nil {
		t.Fatalf("find playlist: %v", err)
	}
	if len(fetched.VideoIDs) != 1 || fetched.VideoIDs[0] != "v2" {
		t.Fatalf("unexpected playlist videos %v", fetched.VideoIDs)
	}

	if err := repo.AddVideo(ctx, uuid.NewString(), "v1", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing playlist, got %v", err)
	}
}

func TestPostgresCommentRepository_DeleteByVideo(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresCommentRepository(testPool)
	now := time.Now().UTC()
	for i, videoID := range []string{"v1", "v1", "v2"} {
		c := models.Comment{ID: fmt.Sprintf("c%d", i), VideoID: videoID, OwnerID: "u1", Content: "hi", CreatedAt: now, UpdatedAt: now}
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("create comment: %v", err)
		}
	}

	ids, err := repo.IDsByVideo(ctx, "v1")
	if err != nil {
		t.Fatalf("ids by video: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "c0" || ids[1] != "c1" {
		t.Fatalf("unexpected ids %v", ids)
	}

	removed, err := repo.DeleteByVideo(ctx, "v1")
	if err != nil || removed != 2 {
		t.Fatalf("expected 2 removed, got %d %v", removed, err)
	}
	if _, err := repo.FindByID(ctx, "c2"); err != nil {
		t.Fatalf("comment on other video should remain: %v", err)
	}
}

func TestPostgresDocumentSource_ChannelProfile(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	channel := createTestUser(t, users, "chan")
	subs := NewPostgresSubscriptionRepository(testPool)
	for i := 0; i < 3; i++ {
		fan := createTestUser(t, users, fmt.Sprintf("fan%d", i))
		if err := subs.CreateSubscription(ctx, models.Subscription{ID: uuid.NewString(), SubscriberID: fan.ID, ChannelID: channel.ID, CreatedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("create subscription: %v", err)
		}
	}

	p := pipeline.From(models.CollectionUsers).
		Match(pipeline.Eq("username", "chan")).
		Lookup(pipeline.Join{From: models.CollectionSubscriptions, LocalField: "id", ForeignField: "channelId", As: "subscribers"}).
		Derive("subscribersCount", pipeline.Size("subscribers")).
		Project("id", "username", "subscribersCount", "createdAt").
		Build()

	records, err := pipeline.NewComposer(NewPostgresDocumentSource(testPool)).Collect(ctx, p)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one profile, got %d", len(records))
	}
	if records[0]["subscribersCount"] != 3 {
		t.Fatalf("expected 3 subscribers, got %v", records[0]["subscribersCount"])
	}
	if _, ok := records[0]["createdAt"].(time.Time); !ok {
		t.Fatalf("expected createdAt decoded as time, got %T", records[0]["createdAt"])
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE likes, subscriptions, playlists, comments, tweets, videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     username + "@example.com",
		FullName:  username,
		Password:  "password-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
