package signup_test

import (
	"testing"

	"github.com/goliatone/go-errors"
	signup "github.com/goliatone/go-signup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	hasher := signup.BcryptHasher{Cost: bcrypt.MinCost}

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.HashPassword(tt.password)

			if tt.wantErr {
				assert.ErrorIs(t, err, signup.ErrNoEmptyString)
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NoError(t, hasher.ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestComparePasswordAndHash_Mismatch(t *testing.T) {
	hasher := signup.BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := hasher.HashPassword("testPassword123!")
	assert.NoError(t, err)

	err = signup.ComparePasswordAndHash("wrongPassword", hash)
	assert.ErrorIs(t, err, signup.ErrMismatchedHashAndPassword)

	err = signup.ComparePasswordAndHash("testPassword123!", "not-a-hash")
	assert.Error(t, err)
}

func TestRandomPasswordHash(t *testing.T) {
	hasher := signup.BcryptHasher{Cost: bcrypt.MinCost}

	first, err := signup.RandomPasswordHash(hasher)
	require.NoError(t, err)
	second, err := signup.RandomPasswordHash(hasher)
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
	assert.Error(t, signup.ComparePasswordAndHash("", first))
}

type failingHasher struct {
	calls int
}

func (h *failingHasher) HashPassword(string) (string, error) {
	h.calls++
	return "", errors.New("hasher unavailable", errors.CategoryInternal)
}

func (h *failingHasher) ComparePasswordAndHash(string, string) error {
	return signup.ErrMismatchedHashAndPassword
}

func TestRandomPasswordHashFailure(t *testing.T) {
	hasher := &failingHasher{}

	h, err := signup.RandomPasswordHash(hasher)
	require.Error(t, err)
	assert.Empty(t, h)
	assert.Equal(t, 1, hasher.calls)
	assert.Contains(t, err.Error(), "failed to hash random password")
}
