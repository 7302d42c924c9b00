package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTCodecRoundTrip(t *testing.T) {
	codec := NewJWTCodec("secret", "vidstream")

	token, expires, err := codec.Sign(Claims{Username: "alice", Type: TokenTypeAccess, RegisteredClaims: registered("u1")}, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 2*time.Second)

	claims, err := codec.Verify(token, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)

	_, err = codec.Verify(token, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTCodecRejectsOtherSecretAndExpired(t *testing.T) {
	codec := NewJWTCodec("secret", "vidstream")
	other := NewJWTCodec("other", "vidstream")

	token, _, err := other.Sign(Claims{Type: TokenTypeRefresh, RegisteredClaims: registered("u1")}, time.Minute)
	require.NoError(t, err)
	_, err = codec.Verify(token, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	past := time.Now().Add(-time.Hour)
	codec.now = func() time.Time { return past }
	expired, _, err := codec.Sign(Claims{Type: TokenTypeAccess, RegisteredClaims: registered("u1")}, time.Minute)
	require.NoError(t, err)
	codec.now = time.Now

	_, err = codec.Verify(expired, TokenTypeAccess)
	assert.True(t, errors.Is(err, ErrTokenExpired), "got %v", err)
}

func TestJWTCodecIssuesDistinctTokens(t *testing.T) {
	codec := NewJWTCodec("secret", "")
	a, _, err := codec.Sign(Claims{Type: TokenTypeRefresh, RegisteredClaims: registered("u1")}, time.Hour)
	require.NoError(t, err)
	b, _, err := codec.Sign(Claims{Type: TokenTypeRefresh, RegisteredClaims: registered("u1")}, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
