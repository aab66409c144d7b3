package signup_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	signup "github.com/goliatone/go-signup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerForTest(t *testing.T, f *fixture, email string) *signup.RegistrationResult {
	t.Helper()
	res, err := f.lifecycle.Register(context.Background(), signup.RegisterMessage{
		Email:    email,
		Password: "password123",
	})
	require.NoError(t, err)
	return res
}

func TestVerifier_Redeem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := registerForTest(t, f, "verify@example.com")

	pending, err := f.verifier.Redeem(ctx, tokenFromURL(t, res.VerificationURL))
	require.NoError(t, err)
	assert.Equal(t, res.PendingSignupID, pending.ID)
	assert.Equal(t, signup.PendingStatus, pending.Status)
	require.NotNil(t, pending.EmailVerifiedAt)

	stored, err := f.repos.PendingSignups().GetByID(ctx, res.PendingSignupID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified())
}

func TestVerifier_RedeemTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token := tokenFromURL(t, registerForTest(t, f, "twice@example.com").VerificationURL)

	_, err := f.verifier.Redeem(ctx, token)
	require.NoError(t, err)

	_, err = f.verifier.Redeem(ctx, token)
	require.ErrorIs(t, err, signup.ErrVerificationTokenUsed)
	assert.Equal(t, http.StatusConflict, signup.HTTPStatus(err))
}

func TestVerifier_ReissueInvalidatesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := registerForTest(t, f, "reissue@example.com")
	first := tokenFromURL(t, res.VerificationURL)

	second, err := f.verifier.Issue(ctx, res.PendingSignupID, res.Email, "", "")
	require.NoError(t, err)

	_, err = f.verifier.Redeem(ctx, first)
	require.ErrorIs(t, err, signup.ErrVerificationTokenInvalid)
	assert.Equal(t, http.StatusBadRequest, signup.HTTPStatus(err))

	_, err = f.verifier.Redeem(ctx, tokenFromURL(t, second))
	require.NoError(t, err)
}

func TestVerifier_RedeemExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token := tokenFromURL(t, registerForTest(t, f, "late@example.com").VerificationURL)

	f.now = f.now.Add(signup.VerificationTokenTTL + time.Minute)
	_, err := f.verifier.Redeem(ctx, token)
	require.ErrorIs(t, err, signup.ErrVerificationTokenExpired)
}

func TestVerifier_RedeemExpiredSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := registerForTest(t, f, "gone@example.com")

	f.now = f.now.Add(2 * time.Hour)
	_, err := f.lifecycle.ExpireStale(ctx, time.Hour)
	require.NoError(t, err)

	_, err = f.verifier.Redeem(ctx, tokenFromURL(t, res.VerificationURL))
	require.ErrorIs(t, err, signup.ErrSignupExpired)
}

func TestVerifier_RedeemInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.verifier.Redeem(ctx, "   ")
	require.ErrorIs(t, err, signup.ErrVerificationTokenMissing)

	_, err = f.verifier.Redeem(ctx, "deadbeef")
	require.ErrorIs(t, err, signup.ErrVerificationTokenInvalid)
}

func TestVerifier_TokenHashedAtRest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token := tokenFromURL(t, registerForTest(t, f, "hash@example.com").VerificationURL)

	var hashes []string
	require.NoError(t, f.db.NewRaw("SELECT token_hash FROM pending_signup_email_tokens").Scan(ctx, &hashes))
	require.Len(t, hashes, 1)
	assert.NotEqual(t, token, hashes[0])
	assert.Equal(t, signup.HashToken(token, f.cfg.pepper), hashes[0])
}

func TestVerifier_NextIsSanitized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := registerForTest(t, f, "next@example.com")

	link, err := f.verifier.Issue(ctx, res.PendingSignupID, res.Email, "https://evil.example.org/steal", "")
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/", u.Query().Get("next"))

	link, err = f.verifier.Issue(ctx, res.PendingSignupID, res.Email, "https://app.example.com/welcome", "")
	require.NoError(t, err)
	u, err = url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/welcome", u.Query().Get("next"))
}

func TestVerifier_NextKeepsRequestOrigin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.lifecycle.Register(ctx, signup.RegisterMessage{
		Email:    "origin@example.com",
		Password: "password123",
		Next:     "http://localhost:8080/after",
		Origin:   "http://localhost:8080",
	})
	require.NoError(t, err)

	u, err := url.Parse(res.VerificationURL)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/after", u.Query().Get("next"))

	link, err := f.verifier.Issue(ctx, res.PendingSignupID, res.Email, "http://localhost:8080/after", "")
	require.NoError(t, err)
	u, err = url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/", u.Query().Get("next"))
}

func TestVerifier_DefaultProductName(t *testing.T) {
	f := newFixture(t)

	registerForTest(t, f, "subject@example.com")

	msg := f.mailer.last()
	assert.Equal(t, "Action required: verify your App email", msg.Subject)
	assert.NotContains(t, msg.Subject, "your your")
	assert.Contains(t, msg.Text, "Welcome to App.")
}
