package signup_test

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	signup "github.com/goliatone/go-signup"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", signup.ErrInvalidEmail, http.StatusBadRequest},
		{"company name", signup.ErrCompanyNameLength, http.StatusBadRequest},
		{"missing token", signup.ErrVerificationTokenMissing, http.StatusBadRequest},
		{"invalid token", signup.ErrVerificationTokenInvalid, http.StatusBadRequest},
		{"used token", signup.ErrVerificationTokenUsed, http.StatusConflict},
		{"expired token", signup.ErrVerificationTokenExpired, http.StatusConflict},
		{"email exists", signup.ErrEmailAlreadyExists, http.StatusConflict},
		{"signup expired", signup.ErrSignupExpired, http.StatusConflict},
		{"unauthorized", signup.ErrUnauthorized, http.StatusUnauthorized},
		{"not found", signup.ErrSignupNotFound, http.StatusNotFound},
		{"internal", goerrors.Wrap(errors.New("boom"), goerrors.CategoryInternal, "db down"), http.StatusInternalServerError},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, signup.HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Email already exists.", signup.PublicMessage(signup.ErrEmailAlreadyExists, "fallback"))
	assert.Equal(t, "fallback", signup.PublicMessage(errors.New("pq: connection refused"), "fallback"))
	assert.Equal(t, "fallback", signup.PublicMessage(
		goerrors.Wrap(errors.New("pq: connection refused"), goerrors.CategoryInternal, "failed"),
		"fallback",
	))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, signup.IsNotFound(signup.ErrRecordNotFound))
	assert.True(t, signup.IsNotFound(signup.ErrSignupNotFound))
	assert.False(t, signup.IsNotFound(nil))
	assert.False(t, signup.IsNotFound(sql.ErrConnDone))
	assert.False(t, signup.IsNotFound(signup.ErrUnauthorized))
}
