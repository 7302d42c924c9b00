package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/logging"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/repositories"
)

// CredentialStore persists the single active refresh token on the user record.
type CredentialStore interface {
	FindByLogin(ctx context.Context, username, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	// SetRefreshToken stores token unconditionally and marks the session active.
	SetRefreshToken(ctx context.Context, userID, token string) error
	// SwapRefreshToken replaces expected with next, reporting false when the
	// stored value is no longer expected.
	SwapRefreshToken(ctx context.Context, userID, expected, next string) (bool, error)
	// ClearRefreshToken removes the stored token and records when the session ended.
	ClearRefreshToken(ctx context.Context, userID string, endedAt time.Time) error
}

// State is where a user's session lifecycle currently stands.
type State string

const (
	StateNoSession State = "no_session"
	StateActive    State = "active"
	StateRevoked   State = "revoked"
)

// Credentials identify a user by username or email.
type Credentials struct {
	Username string
	Email    string
	Password string
}

// Identity is the verified caller behind an access token.
type Identity struct {
	UserID    string
	Email     string
	Username  string
	FullName  string
	TokenID   string
	ExpiresAt time.Time
}

// Config sets token lifetimes.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Manager issues, rotates and invalidates session token pairs.
type Manager struct {
	users    CredentialStore
	hasher   Hasher
	access   TokenCodec
	refresh  TokenCodec
	cfg      Config
	denylist Denylist
	now      func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithDenylist rejects access tokens of ended sessions before they expire.
func WithDenylist(d Denylist) Option {
	return func(m *Manager) { m.denylist = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager constructs a Manager. Access and refresh tokens use separate codecs
// so that neither can stand in for the other.
func NewManager(users CredentialStore, hasher Hasher, access, refresh TokenCodec, cfg Config, opts ...Option) *Manager {
	if users == nil || hasher == nil || access == nil || refresh == nil {
		panic("auth: manager dependencies must not be nil")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 10 * 24 * time.Hour
	}
	m := &Manager{
		users:   users,
		hasher:  hasher,
		access:  access,
		refresh: refresh,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login verifies credentials and starts a new session, replacing any previous one.
func (m *Manager) Login(ctx context.Context, creds Credentials) (models.User, models.SessionTokens, error) {
	username := strings.ToLower(strings.TrimSpace(creds.Username))
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if (username == "" && email == "") || creds.Password == "" {
		return models.User{}, models.SessionTokens{}, apperr.Validation("username or email and password are required")
	}

	user, err := m.users.FindByLogin(ctx, username, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, models.SessionTokens{}, apperr.Unauthenticated("invalid credentials")
		}
		return models.User{}, models.SessionTokens{}, storeError("find user", err)
	}

	if !m.hasher.Verify(user.Password, creds.Password) {
		logging.FromContext(ctx).Warn("login password mismatch", "userId", user.ID)
		return models.User{}, models.SessionTokens{}, apperr.Unauthenticated("invalid credentials")
	}

	tokens, err := m.issue(user)
	if err != nil {
		return models.User{}, models.SessionTokens{}, err
	}
	if err := m.users.SetRefreshToken(ctx, user.ID, tokens.RefreshToken); err != nil {
		return models.User{}, models.SessionTokens{}, storeError("store refresh token", err)
	}

	user.Password = ""
	user.RefreshToken = ""
	return user, tokens, nil
}

// Refresh rotates the session. The presented token must be the one currently
// stored; anything else (a token already rotated away, or one from before a
// logout) is rejected. A concurrent refresh that loses the swap is rejected too.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return models.SessionTokens{}, apperr.Unauthenticated("refresh token is required")
	}

	claims, err := m.refresh.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return models.SessionTokens{}, apperr.Unauthenticated("invalid refresh token")
	}

	user, err := m.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, apperr.Unauthenticated("invalid refresh token")
		}
		return models.SessionTokens{}, storeError("find user", err)
	}

	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		logging.FromContext(ctx).Warn("refresh token rejected", "userId", user.ID, "hasSession", user.RefreshToken != "")
		return models.SessionTokens{}, apperr.Unauthenticated("refresh token is expired or used")
	}

	tokens, err := m.issue(user)
	if err != nil {
		return models.SessionTokens{}, err
	}

	swapped, err := m.users.SwapRefreshToken(ctx, user.ID, refreshToken, tokens.RefreshToken)
	if err != nil {
		return models.SessionTokens{}, storeError("rotate refresh token", err)
	}
	if !swapped {
		return models.SessionTokens{}, apperr.Unauthenticated("refresh token is expired or used")
	}
	return tokens, nil
}

// Logout ends the caller's session. With a denylist configured, the access token
// presented for logout stops working immediately; otherwise it lives out its TTL.
func (m *Manager) Logout(ctx context.Context, id Identity) error {
	if id.UserID == "" {
		return apperr.Unauthenticated("not signed in")
	}
	if err := m.users.ClearRefreshToken(ctx, id.UserID, m.now()); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return storeError("clear refresh token", err)
	}
	if m.denylist != nil && id.TokenID != "" {
		if err := m.denylist.Revoke(ctx, id.TokenID, id.ExpiresAt); err != nil {
			return apperr.Dependency("revoke access token", err)
		}
	}
	return nil
}

// Authenticate verifies an access token and returns the caller's identity.
func (m *Manager) Authenticate(ctx context.Context, accessToken string) (Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Identity{}, apperr.Unauthenticated("access token is required")
	}
	claims, err := m.access.Verify(accessToken, TokenTypeAccess)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Identity{}, apperr.Unauthenticated("access token expired")
		}
		return Identity{}, apperr.Unauthenticated("invalid access token")
	}

	if m.denylist != nil {
		revoked, err := m.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Identity{}, apperr.Unavailable("check session", err)
		}
		if revoked {
			return Identity{}, apperr.Unauthenticated("session has ended")
		}
	}

	id := Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Username: claims.Username,
		FullName: claims.FullName,
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// State reports the session state of userID.
func (m *Manager) State(ctx context.Context, userID string) (State, error) {
	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", apperr.NotFound("user not found")
		}
		return "", storeError("find user", err)
	}
	switch {
	case user.RefreshToken != "":
		return StateActive, nil
	case user.SessionEndedAt != nil:
		return StateRevoked, nil
	default:
		return StateNoSession, nil
	}
}

func (m *Manager) issue(user models.User) (models.SessionTokens, error) {
	access, accessExp, err := m.access.Sign(Claims{
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
		Type:     TokenTypeAccess,
		RegisteredClaims: registered(user.ID),
	}, m.cfg.AccessTTL)
	if err != nil {
		return models.SessionTokens{}, apperr.Internal("issue access token", err)
	}

	refresh, refreshExp, err := m.refresh.Sign(Claims{
		Type:             TokenTypeRefresh,
		RegisteredClaims: registered(user.ID),
	}, m.cfg.RefreshTTL)
	if err != nil {
		return models.SessionTokens{}, apperr.Internal("issue refresh token", err)
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func storeError(op string, err error) error {
	if errors.Is(err, repositories.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Unavailable(op, err)
	}
	return apperr.Internal(op, fmt.Errorf("session store: %w", err))
}
