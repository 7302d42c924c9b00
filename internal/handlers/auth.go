package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/auth"
	"github.com/vidstream/backend/internal/logging"
	"github.com/vidstream/backend/internal/middleware"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/service"
)

// RefreshTokenCookie carries the refresh token for browser clients.
const RefreshTokenCookie = "refreshToken"

// AuthHandler implements registration and session endpoints.
type AuthHandler struct {
	Users         UserService
	Sessions      SessionManager
	Limiter       RateLimiter
	Uploads       Uploads
	SecureCookies bool
}

// Register handles POST /api/v1/users/register. The body is a multipart form
// with an avatar file and an optional coverImage file.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		logger.Warn("register rate limited", "ip", clientIP(r))
		respondRateLimited(ctx, w)
		return
	}

	if err := h.Uploads.parse(w, r); err != nil {
		respondError(ctx, w, err)
		return
	}
	avatar, err := h.Uploads.save(r, "avatar")
	if err != nil {
		cleanup(r)
		respondError(ctx, w, err)
		return
	}
	cover, err := h.Uploads.save(r, "coverImage")
	if err != nil {
		cleanup(r, avatar)
		respondError(ctx, w, err)
		return
	}
	defer cleanup(r, avatar, cover)

	user, err := h.Users.Register(ctx, service.RegisterInput{
		FullName:       r.FormValue("fullName"),
		Email:          r.FormValue("email"),
		Username:       r.FormValue("username"),
		Password:       r.FormValue("password"),
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, user)
}

// Login handles POST /api/v1/users/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		logger.Warn("login rate limited", "ip", clientIP(r))
		respondRateLimited(ctx, w)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if (req.Username == "" && req.Email == "") || req.Password == "" {
		respondError(ctx, w, apperr.Validation("username or email and password are required"))
		return
	}

	user, tokens, err := h.Sessions.Login(ctx, auth.Credentials{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		logger.Warn("login failed", "username", req.Username, "email", req.Email, "error", err)
		respondError(ctx, w, err)
		return
	}

	h.setSessionCookies(w, tokens)
	respondJSON(ctx, w, http.StatusOK, authResponse{User: &user, Tokens: tokens})
}

// Refresh handles POST /api/v1/users/refresh-token. The token comes from the
// body or the refresh token cookie.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "refresh") {
		logger.Warn("refresh rate limited", "ip", clientIP(r))
		respondRateLimited(ctx, w)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(ctx, w, err)
			return
		}
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
			token = strings.TrimSpace(cookie.Value)
		}
	}
	if token == "" {
		respondError(ctx, w, apperr.Unauthenticated("refresh token is required"))
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		logger.Warn("refresh failed", "error", err)
		respondError(ctx, w, err)
		return
	}

	h.setSessionCookies(w, tokens)
	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

// Logout handles POST /api/v1/users/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, apperr.Unauthenticated("authentication required"))
		return
	}

	if err := h.Sessions.Logout(ctx, id); err != nil {
		respondError(ctx, w, err)
		return
	}

	h.clearSessionCookies(w)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "logged out"})
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	User   *models.User         `json:"user,omitempty"`
	Tokens models.SessionTokens `json:"tokens"`
}

func (h AuthHandler) setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, h.cookie(RefreshTokenCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func (h AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		c := h.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h AuthHandler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
