package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/auth"
	"github.com/vidstream/backend/internal/logging"
)

// AccessTokenCookie carries the access token for browser clients.
const AccessTokenCookie = "accessToken"

// Authenticator verifies access tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (auth.Identity, error)
}

type identityKey struct{}

// WithIdentity stores the authenticated caller on the context.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok && id.UserID != ""
}

// UserID returns the authenticated caller's id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// RequireAuth rejects requests without a valid access token.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return authenticate(authn, true)
}

// OptionalAuth attaches the caller's identity when a valid access token is
// present and otherwise serves the request anonymously.
func OptionalAuth(authn Authenticator) func(http.Handler) http.Handler {
	return authenticate(authn, false)
}

func authenticate(authn Authenticator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token := AccessToken(r)
			if token == "" {
				if required {
					logger.Warn("missing access token")
					unauthorized(w, "authentication required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			id, err := authn.Authenticate(ctx, token)
			if err != nil {
				if required {
					logger.Warn("access token rejected", "error", err)
					unauthorized(w, "invalid access token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx = WithIdentity(ctx, id)
			ctx = logging.WithLogger(ctx, logger.With(slog.String("user_id", id.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken reads the bearer token from the Authorization header, falling
// back to the access token cookie.
func AccessToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"kind":  string(apperr.KindUnauthenticated),
	})
}
