package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenInvalid indicates a malformed, tampered or wrongly typed token.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims carried by issued tokens. Refresh tokens only populate the subject.
type Claims struct {
	Email    string    `json:"email,omitempty"`
	Username string    `json:"username,omitempty"`
	FullName string    `json:"fullName,omitempty"`
	Type     TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies identity claims.
type TokenCodec interface {
	Sign(claims Claims, ttl time.Duration) (string, time.Time, error)
	Verify(token string, want TokenType) (Claims, error)
}

// JWTCodec is an HS256 TokenCodec.
type JWTCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTCodec constructs a codec for the given secret.
func NewJWTCodec(secret, issuer string) *JWTCodec {
	return &JWTCodec{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// Sign stamps issuer, timing and a unique token id onto claims and signs them.
func (c *JWTCodec) Sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := c.now().UTC()
	expires := now.Add(ttl)

	claims.Issuer = c.issuer
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expires)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", claims.Type, err)
	}
	return signed, expires, nil
}

// Verify checks signature, expiry, issuer and token type.
func (c *JWTCodec) Verify(tokenString string, want TokenType) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Type != want || claims.Subject == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

func registered(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: subject}
}
