package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidstream/backend/internal/apperr"
)

type registerInput struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,alphanum,min=3"`
	Password string `json:"-" validate:"required,min=8"`
}

func TestStructReportsFieldsByJSONName(t *testing.T) {
	v := New()

	err := v.Struct(registerInput{Email: "nope", Username: "a!", Password: "short"})
	require.Error(t, err)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "must be a valid email address", appErr.Fields["email"])
	assert.Contains(t, appErr.Fields, "username")
	assert.Equal(t, "must be at least 8 characters", appErr.Fields["Password"])
}

func TestStructAcceptsValidInput(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(registerInput{Email: "a@b.co", Username: "alice", Password: "long-enough"}))
}
