package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidstream/backend/internal/auth"
	"github.com/vidstream/backend/internal/memstore"
	"github.com/vidstream/backend/internal/metrics"
	"github.com/vidstream/backend/internal/service"
	"github.com/vidstream/backend/internal/storage"
)

type diskAssets struct {
	mu     sync.Mutex
	stored int
}

func (d *diskAssets) Store(_ context.Context, localPath string, kind storage.ResourceKind) (storage.Asset, error) {
	defer os.Remove(localPath)
	d.mu.Lock()
	d.stored++
	d.mu.Unlock()
	name := filepath.Base(localPath)
	asset := storage.Asset{URL: "https://cdn.test/" + name, PublicID: name, Kind: kind}
	if kind == storage.KindVideo {
		asset.Duration = 42
	}
	return asset, nil
}

func (d *diskAssets) Delete(context.Context, string, storage.ResourceKind) error { return nil }

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

type testServer struct {
	handler http.Handler
	assets  *diskAssets
}

func newTestServer(t *testing.T, limiter RateLimiter) *testServer {
	t.Helper()
	store := memstore.New()
	assets := &diskAssets{}
	collectors := metrics.New()
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	svc := service.New(service.Deps{
		Users:         store.Users(),
		Videos:        store.Videos(),
		Comments:      store.Comments(),
		Tweets:        store.Tweets(),
		Playlists:     store.Playlists(),
		Likes:         store.Likes(),
		Subscriptions: store.Subscriptions(),
		Source:        store,
		Assets:        assets,
		Hasher:        hasher,
		Metrics:       collectors,
	})
	sessions := auth.NewManager(
		store.Users(),
		hasher,
		auth.NewJWTCodec("access-secret", "vidstream"),
		auth.NewJWTCodec("refresh-secret", "vidstream"),
		auth.Config{AccessTTL: time.Minute, RefreshTTL: time.Hour},
		auth.WithDenylist(auth.NewMemoryDenylist()),
	)

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Users:         svc.Users,
		Sessions:      sessions,
		Videos:        svc.Videos,
		Comments:      svc.Comments,
		Tweets:        svc.Tweets,
		Likes:         svc.Likes,
		Subscriptions: svc.Subscriptions,
		Playlists:     svc.Playlists,
		Limiter:       limiter,
		Uploads:       Uploads{Dir: t.TempDir(), MaxBytes: 1 << 20},
		Metrics:       collectors.Handler(),
	})
	return &testServer{handler: mux, assets: assets}
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req, token)
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for field, name := range files {
		part, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("payload for " + name)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

type signedIn struct {
	ID      string
	Access  string
	Refresh string
}

func (s *testServer) signUp(t *testing.T, username string) signedIn {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"fullName": "User " + username,
		"email":    username + "@example.com",
		"username": username,
		"password": "password123",
	}, map[string]string{"avatar": "avatar.png"})
	rec := s.do(t, req, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201 got %d: %s", username, rec.Code, rec.Body.String())
	}

	rec = s.doJSON(t, http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200 got %d: %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Tokens struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	decode(t, rec, &resp)
	return signedIn{ID: resp.User.ID, Access: resp.Tokens.AccessToken, Refresh: resp.Tokens.RefreshToken}
}

func (s *testServer) publish(t *testing.T, owner signedIn, title string) string {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/api/v1/videos", map[string]string{
		"title":       title,
		"description": "about " + title,
	}, map[string]string{"videoFile": "clip.mp4", "thumbnail": "thumb.png"})
	rec := s.do(t, req, owner.Access)
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish: expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var video struct {
		ID string `json:"id"`
	}
	decode(t, rec, &video)
	return video.ID
}

func TestRegisterRejectsMissingAvatar(t *testing.T) {
	srv := newTestServer(t, nil)

	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"fullName": "No Avatar",
		"email":    "noavatar@example.com",
		"username": "noavatar",
		"password": "password123",
	}, nil)
	rec := srv.do(t, req, "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
	}
	var body errorResponse
	decode(t, rec, &body)
	if body.Kind != "validation" {
		t.Fatalf("expected validation kind got %q", body.Kind)
	}
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.signUp(t, "alice")

	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"fullName": "Alice Again",
		"email":    "alice@example.com",
		"username": "alice2",
		"password": "password123",
	}, map[string]string{"avatar": "avatar.png"})
	rec := srv.do(t, req, "")

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signUp(t, "alice")

	rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), alice.Access)
	if rec.Code != http.StatusOK {
		t.Fatalf("current user: expected 200 got %d", rec.Code)
	}
	var me struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	decode(t, rec, &me)
	if me.Username != "alice" || me.Password != "" {
		t.Fatalf("unexpected current user %+v", me)
	}

	rec = srv.doJSON(t, http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{"refreshToken": alice.Refresh})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var rotated struct {
		Tokens struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	decode(t, rec, &rotated)

	rec = srv.doJSON(t, http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{"refreshToken": alice.Refresh})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh token: expected 401 got %d", rec.Code)
	}

	rec = srv.doJSON(t, http.MethodPost, "/api/v1/users/logout", rotated.Tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	rec = srv.doJSON(t, http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{"refreshToken": rotated.Tokens.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401 got %d", rec.Code)
	}

	rec = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), rotated.Tokens.AccessToken)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked access token: expected 401 got %d", rec.Code)
	}
}

func TestRefreshFromCookie(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signUp(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: alice.Refresh})
	rec := srv.do(t, req, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var names []string
	for _, c := range rec.Result().Cookies() {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "accessToken,refreshToken" {
		t.Fatalf("expected session cookies got %v", names)
	}
}

func TestLoginRateLimited(t *testing.T) {
	srv := newTestServer(t, denyAll{})

	rec := srv.doJSON(t, http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, nil)

	cases := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/v1/users/current-user"},
		{http.MethodPost, "/api/v1/videos"},
		{http.MethodPost, "/api/v1/likes/toggle/v/some-video"},
		{http.MethodPost, "/api/v1/subscriptions/c/some-channel"},
		{http.MethodDelete, "/api/v1/playlist/some-playlist"},
	}
	for _, tc := range cases {
		rec := srv.do(t, httptest.NewRequest(tc.method, tc.target, nil), "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", tc.method, tc.target, rec.Code)
		}
	}
}

func TestListVideosRejectsInvalidPagination(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, query := range []string{"page=0", "limit=-1", "limit=abc", "limit=101"} {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos?"+query, nil), "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", query, rec.Code)
		}
	}
}

func TestVideoLikeAndCommentFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signUp(t, "alice")
	bob := srv.signUp(t, "bob")
	videoID := srv.publish(t, alice, "Intro")

	rec := srv.doJSON(t, http.MethodPost, "/api/v1/likes/toggle/v/"+videoID, bob.Access, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("like: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var status struct {
		Liked bool `json:"liked"`
	}
	decode(t, rec, &status)
	if !status.Liked {
		t.Fatalf("expected first toggle to like")
	}

	rec = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+videoID, nil), bob.Access)
	if rec.Code != http.StatusOK {
		t.Fatalf("get video: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var detail struct {
		LikesCount int  `json:"likesCount"`
		IsLiked    bool `json:"isLiked"`
	}
	decode(t, rec, &detail)
	if detail.LikesCount != 1 || !detail.IsLiked {
		t.Fatalf("unexpected video detail %+v", detail)
	}

	rec = srv.doJSON(t, http.MethodPost, "/api/v1/comments/"+videoID, bob.Access, map[string]string{"content": "great video"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("comment: expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var comment struct {
		ID string `json:"id"`
	}
	decode(t, rec, &comment)

	rec = srv.doJSON(t, http.MethodPatch, "/api/v1/comments/c/"+comment.ID, alice.Access, map[string]string{"content": "edited"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("edit someone else's comment: expected 403 got %d", rec.Code)
	}

	rec = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/comments/"+videoID, nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list comments: expected 200 got %d", rec.Code)
	}
	var page struct {
		Items      []map[string]any `json:"items"`
		TotalItems int              `json:"totalItems"`
	}
	decode(t, rec, &page)
	if page.TotalItems != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one comment got %+v", page)
	}

	rec = srv.doJSON(t, http.MethodDelete, "/api/v1/videos/"+videoID, bob.Access, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete someone else's video: expected 403 got %d", rec.Code)
	}
	rec = srv.doJSON(t, http.MethodDelete, "/api/v1/videos/"+videoID, alice.Access, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete video: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	rec = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+videoID, nil), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted video: expected 404 got %d", rec.Code)
	}
}

func TestSubscribeToSelfRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signUp(t, "alice")

	rec := srv.doJSON(t, http.MethodPost, "/api/v1/subscriptions/c/"+alice.ID, alice.Access, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChannelProfileReflectsViewer(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signUp(t, "alice")
	bob := srv.signUp(t, "bob")

	rec := srv.doJSON(t, http.MethodPost, "/api/v1/subscriptions/c/"+alice.ID, bob.Access, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("subscribe: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var profile struct {
		SubscribersCount int  `json:"subscribersCount"`
		IsSubscribed     bool `json:"isSubscribed"`
	}
	rec = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/c/alice", nil), bob.Access)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &profile)
	if profile.SubscribersCount != 1 || !profile.IsSubscribed {
		t.Fatalf("unexpected profile for subscriber %+v", profile)
	}

	rec = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/c/alice", nil), "not-a-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous profile: expected 200 got %d", rec.Code)
	}
	profile.IsSubscribed = true
	decode(t, rec, &profile)
	if profile.IsSubscribed {
		t.Fatalf("anonymous viewer reported as subscribed")
	}

	rec = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/c/nobody", nil), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown channel: expected 404 got %d", rec.Code)
	}
}

func TestPlaylistOwnership(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signUp(t, "alice")
	bob := srv.signUp(t, "bob")
	videoID := srv.publish(t, alice, "Intro")

	rec := srv.doJSON(t, http.MethodPost, "/api/v1/playlist", alice.Access, map[string]string{
		"name":        "Favourites",
		"description": "the good ones",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create playlist: expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var playlist struct {
		ID string `json:"id"`
	}
	decode(t, rec, &playlist)

	rec = srv.doJSON(t, http.MethodPatch, "/api/v1/playlist/add/"+videoID+"/"+playlist.ID, bob.Access, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign add: expected 403 got %d", rec.Code)
	}
	rec = srv.doJSON(t, http.MethodPatch, "/api/v1/playlist/add/"+videoID+"/"+playlist.ID, alice.Access, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/playlist/user/"+alice.ID, nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list playlists: expected 200 got %d", rec.Code)
	}
	var page struct {
		Items []struct {
			TotalVideos int `json:"totalVideos"`
		} `json:"items"`
	}
	decode(t, rec, &page)
	if len(page.Items) != 1 || page.Items[0].TotalVideos != 1 {
		t.Fatalf("unexpected playlists %+v", page)
	}
}

func TestUnknownJSONFieldsRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signUp(t, "alice")

	rec := srv.doJSON(t, http.MethodPost, "/api/v1/tweets", alice.Access, map[string]string{
		"content": "hello",
		"owner":   "someone-else",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestMetricsEndpointReportsToggles(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signUp(t, "alice")
	bob := srv.signUp(t, "bob")
	srv.doJSON(t, http.MethodPost, "/api/v1/subscriptions/c/"+alice.ID, bob.Access, nil)

	rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "toggles_total") {
		t.Fatalf("expected toggle counter in exposition")
	}
}
