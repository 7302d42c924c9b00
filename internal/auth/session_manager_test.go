package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/repositories"
)

type memoryCredentials struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemoryCredentials(users ...models.User) *memoryCredentials {
	s := &memoryCredentials{users: make(map[string]models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryCredentials) FindByLogin(_ context.Context, username, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memoryCredentials) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return u, nil
}

func (s *memoryCredentials) SetRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.RefreshToken = token
	u.SessionEndedAt = nil
	s.users[userID] = u
	return nil
}

func (s *memoryCredentials) SwapRefreshToken(_ context.Context, userID, expected, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.RefreshToken != expected {
		return false, nil
	}
	u.RefreshToken = next
	s.users[userID] = u
	return true, nil
}

func (s *memoryCredentials) ClearRefreshToken(_ context.Context, userID string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.RefreshToken = ""
	u.SessionEndedAt = &endedAt
	s.users[userID] = u
	return nil
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *memoryCredentials) {
	t.Helper()
	digest, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := newMemoryCredentials(models.User{
		ID:       "user-1",
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Liddell",
		Password: string(digest),
	})
	manager := NewManager(
		store,
		BcryptHasher{Cost: bcrypt.MinCost},
		NewJWTCodec("access-secret", "vidstream"),
		NewJWTCodec("refresh-secret", "vidstream"),
		Config{AccessTTL: time.Minute, RefreshTTL: time.Hour},
		opts...,
	)
	return manager, store
}

func login(t *testing.T, m *Manager) models.SessionTokens {
	t.Helper()
	_, tokens, err := m.Login(context.Background(), Credentials{Email: "Alice@Example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return tokens
}

func TestManagerLoginIssuesPair(t *testing.T) {
	manager, store := newTestManager(t)

	user, tokens, err := manager.Login(context.Background(), Credentials{Username: "alice", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected non-empty tokens: %+v", tokens)
	}
	if user.Password != "" || user.RefreshToken != "" {
		t.Fatalf("login leaked credentials: %+v", user)
	}
	if store.users["user-1"].RefreshToken != tokens.RefreshToken {
		t.Fatal("expected refresh token to be stored")
	}

	id, err := manager.Authenticate(context.Background(), tokens.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.UserID != "user-1" || id.Username != "alice" || id.FullName != "Alice Liddell" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, err := manager.Authenticate(context.Background(), tokens.RefreshToken); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("refresh token must not authenticate requests, got %v", err)
	}
}

func TestManagerLoginFailures(t *testing.T) {
	manager, _ := newTestManager(t)

	tests := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{name: "missing password", creds: Credentials{Username: "alice"}, want: apperr.ErrValidation},
		{name: "missing identifier", creds: Credentials{Password: "x"}, want: apperr.ErrValidation},
		{name: "unknown user", creds: Credentials{Username: "bob", Password: "correct horse"}, want: apperr.ErrUnauthenticated},
		{name: "wrong password", creds: Credentials{Username: "alice", Password: "wrong"}, want: apperr.ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := manager.Login(context.Background(), tt.creds); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestManagerRefreshRotatesOnce(t *testing.T) {
	manager, _ := newTestManager(t)
	tokens := login(t, manager)

	rotated, err := manager.Refresh(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected new refresh token")
	}

	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected reuse to be rejected, got %v", err)
	}

	if _, err := manager.Refresh(context.Background(), rotated.RefreshToken); err != nil {
		t.Fatalf("expected rotated token to work: %v", err)
	}
}

func TestManagerRefreshRejectsForeignTokens(t *testing.T) {
	manager, _ := newTestManager(t)
	tokens := login(t, manager)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"access token": tokens.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := manager.Refresh(context.Background(), token); !errors.Is(err, apperr.ErrUnauthenticated) {
				t.Fatalf("expected unauthenticated, got %v", err)
			}
		})
	}
}

func TestManagerRefreshLosingSwapIsRejected(t *testing.T) {
	manager, store := newTestManager(t)
	tokens := login(t, manager)

	// Another refresh rotated the stored value between the read and the swap.
	racing := &swapRacer{memoryCredentials: store}
	manager.users = racing

	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

type swapRacer struct {
	*memoryCredentials
}

func (s *swapRacer) SwapRefreshToken(ctx context.Context, userID, _, next string) (bool, error) {
	return s.memoryCredentials.SwapRefreshToken(ctx, userID, "someone-else", next)
}

func TestManagerLogoutEndsSession(t *testing.T) {
	denylist := NewMemoryDenylist()
	manager, _ := newTestManager(t, WithDenylist(denylist))
	ctx := context.Background()

	state, err := manager.State(ctx, "user-1")
	if err != nil || state != StateNoSession {
		t.Fatalf("expected no session before login, got %v %v", state, err)
	}

	tokens := login(t, manager)
	if state, _ := manager.State(ctx, "user-1"); state != StateActive {
		t.Fatalf("expected active session, got %v", state)
	}

	id, err := manager.Authenticate(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := manager.Logout(ctx, id); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if state, _ := manager.State(ctx, "user-1"); state != StateRevoked {
		t.Fatalf("expected revoked session, got %v", state)
	}
	if _, err := manager.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}
	if _, err := manager.Authenticate(ctx, tokens.AccessToken); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected denylisted access token to fail, got %v", err)
	}

	login(t, manager)
	if state, _ := manager.State(ctx, "user-1"); state != StateActive {
		t.Fatalf("expected login after logout to reactivate, got %v", state)
	}
}
