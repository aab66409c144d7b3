package social_test

import (
	"context"
	"testing"
	"time"

	signup "github.com/goliatone/go-signup"
	"github.com/goliatone/go-signup/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

func newReconciler(f *fixture) *social.Reconciler {
	return social.NewReconciler(f.repos,
		social.WithReconcilerHasher(signup.BcryptHasher{Cost: bcrypt.MinCost}),
		social.WithReconcilerClock(func() time.Time { return f.now }),
		social.WithReconcilerLogger(nopLogger{}),
	)
}

func profileFor(email string) *social.Profile {
	return &social.Profile{Provider: "stub", ProviderUserID: "sub", Email: email, EmailVerified: true}
}

func TestReconcile_StampsUnverifiedPendingSignup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	created, err := f.repos.PendingSignups().Create(ctx, &signup.PendingSignup{
		Email:        "stamp@example.com",
		PasswordHash: "hash",
		CompanyName:  "Acme",
	})
	require.NoError(t, err)
	require.False(t, created.EmailVerified())

	rec, err := newReconciler(f).Reconcile(ctx, profileFor(" Stamp@Example.com "))
	require.NoError(t, err)

	assert.Equal(t, created.ID, rec.PendingSignup.ID)
	assert.False(t, rec.NeedsOnboarding)
	assert.Equal(t, signup.PendingClaims{Email: "stamp@example.com", PendingSignupID: created.ID.String()}, rec.Claims)

	row, err := f.repos.PendingSignups().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, row.EmailVerified())
	assert.Equal(t, "hash", row.PasswordHash)
}

func TestReconcile_ReactivatesExpiredPendingSignup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	repo := f.repos.PendingSignups()

	created, err := repo.Create(ctx, &signup.PendingSignup{
		Email:        "expired@example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	n, err := repo.ExpireStale(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rec, err := newReconciler(f).Reconcile(ctx, profileFor("expired@example.com"))
	require.NoError(t, err)
	assert.Equal(t, created.ID, rec.PendingSignup.ID)
	assert.True(t, rec.NeedsOnboarding)

	row, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, signup.PendingStatus, row.Status)
	assert.True(t, row.EmailVerified())
}

func TestReconcile_CreatesOncePerEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	r := newReconciler(f)

	first, err := r.Reconcile(ctx, profileFor("fresh@example.com"))
	require.NoError(t, err)
	second, err := r.Reconcile(ctx, profileFor("FRESH@example.com"))
	require.NoError(t, err)

	assert.Equal(t, first.PendingSignup.ID, second.PendingSignup.ID)
	assert.True(t, second.NeedsOnboarding)
}

func TestReconcile_ActiveAppUserWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	_, err := f.repos.PendingSignups().Create(ctx, &signup.PendingSignup{
		Email:        "both@example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	user := f.createAppUser(t, "both@example.com")

	rec, err := newReconciler(f).Reconcile(ctx, profileFor("both@example.com"))
	require.NoError(t, err)

	assert.Nil(t, rec.PendingSignup)
	assert.False(t, rec.NeedsOnboarding)
	assert.Equal(t, signup.SessionTypeApp, rec.Claims.SessionType())
	assert.Equal(t, user.ID.String(), rec.Claims.Subject())
}

func TestReconcile_RequiresEmail(t *testing.T) {
	f := newFixture(t, "")

	_, err := newReconciler(f).Reconcile(context.Background(), profileFor("   "))
	assert.Same(t, social.ErrUserInfoFailed, err)
}

// racingPending inserts a competing registration on the first lookup and
// reports no row, as if the insert landed right after the lookup ran.
type racingPending struct {
	signup.PendingSignups
	raced      bool
	competitor *signup.PendingSignup
}

func (p *racingPending) LatestByEmailTx(ctx context.Context, tx bun.IDB, email string) (*signup.PendingSignup, error) {
	if !p.raced {
		p.raced = true
		rec, err := p.PendingSignups.CreateTx(ctx, tx, &signup.PendingSignup{
			Email:        email,
			PasswordHash: "competitor-hash",
		})
		if err != nil {
			return nil, err
		}
		p.competitor = rec
		return nil, signup.ErrRecordNotFound
	}
	return p.PendingSignups.LatestByEmailTx(ctx, tx, email)
}

type racingManager struct {
	signup.RepositoryManager
	pending *racingPending
}

func (m racingManager) PendingSignups() signup.PendingSignups {
	return m.pending
}

func TestReconcile_ConcurrentFirstLoginReusesWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	pending := &racingPending{PendingSignups: f.repos.PendingSignups()}
	reconciler := social.NewReconciler(racingManager{RepositoryManager: f.repos, pending: pending},
		social.WithReconcilerHasher(signup.BcryptHasher{Cost: bcrypt.MinCost}),
		social.WithReconcilerClock(func() time.Time { return f.now }),
		social.WithReconcilerLogger(nopLogger{}),
	)

	rec, err := reconciler.Reconcile(ctx, profileFor("race@example.com"))
	require.NoError(t, err)
	require.NotNil(t, pending.competitor)
	assert.Equal(t, pending.competitor.ID, rec.PendingSignup.ID)
	assert.True(t, rec.PendingSignup.EmailVerified())

	row, err := f.repos.PendingSignups().GetByID(ctx, pending.competitor.ID)
	require.NoError(t, err)
	assert.Equal(t, "competitor-hash", row.PasswordHash)
	assert.True(t, row.EmailVerified())
}
