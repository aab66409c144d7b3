package social

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	signup "github.com/goliatone/go-signup"
	"github.com/uptrace/bun"
)

// Reconciliation is the local identity matched to a provider profile
type Reconciliation struct {
	Claims          signup.SessionClaims
	PendingSignup   *signup.PendingSignup
	NeedsOnboarding bool
}

// Reconciler matches a verified provider identity against app users and
// pending signups.
type Reconciler struct {
	repos  signup.RepositoryManager
	hasher signup.PasswordHasher
	now    func() time.Time
	logger signup.Logger
}

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithReconcilerHasher sets the hasher used for placeholder passwords
func WithReconcilerHasher(hasher signup.PasswordHasher) ReconcilerOption {
	return func(r *Reconciler) {
		if hasher != nil {
			r.hasher = hasher
		}
	}
}

// WithReconcilerClock overrides the clock
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithReconcilerLogger sets the logger
func WithReconcilerLogger(logger signup.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReconciler creates a Reconciler
func NewReconciler(repos signup.RepositoryManager, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		repos:  repos,
		hasher: signup.BcryptHasher{},
		now:    time.Now,
		logger: signup.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Reconcile returns an app session when an active app user owns the
// email, otherwise a pending session for the latest pending signup,
// creating or refreshing it as needed. The profile email must already be
// verified by the provider.
func (r *Reconciler) Reconcile(ctx context.Context, profile *Profile) (*Reconciliation, error) {
	email := signup.NormalizeEmail(profile.Email)
	if email == "" {
		return nil, ErrUserInfoFailed
	}

	user, err := r.repos.AppUsers().LatestActiveByEmail(ctx, email)
	if err == nil {
		return &Reconciliation{Claims: user.Claims()}, nil
	}
	if !signup.IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to lookup app user")
	}

	var pending *signup.PendingSignup
	err = r.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		pending, err = r.reconcilePending(ctx, tx, email)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Reconciliation{
		Claims: signup.PendingClaims{
			Email:           email,
			PendingSignupID: pending.ID.String(),
		},
		PendingSignup:   pending,
		NeedsOnboarding: strings.TrimSpace(pending.CompanyName) == "",
	}, nil
}

func (r *Reconciler) reconcilePending(ctx context.Context, tx bun.IDB, email string) (*signup.PendingSignup, error) {
	now := r.now().UTC()
	repo := r.repos.PendingSignups()

	pending, err := repo.LatestByEmailTx(ctx, tx, email)
	if err != nil {
		if !signup.IsNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to lookup pending signup")
		}

		pending, err = r.createPending(ctx, tx, email, now)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case pending.Status == signup.ExpiredStatus:
		if _, err := repo.ReactivateTx(ctx, tx, pending.ID, now); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reactivate expired pending signup")
		}
		pending.Status = signup.PendingStatus
		pending.EmailVerifiedAt = &now
	case pending.EmailVerifiedAt == nil:
		stamped, err := repo.MarkEmailVerifiedTx(ctx, tx, pending.ID, now)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify pending signup email")
		}
		if stamped {
			pending.EmailVerifiedAt = &now
		}
	}

	return pending, nil
}

// createPending inserts a verified pending row unless a concurrent login or
// registration won the email first, then reads back whichever row owns it.
func (r *Reconciler) createPending(ctx context.Context, tx bun.IDB, email string, now time.Time) (*signup.PendingSignup, error) {
	repo := r.repos.PendingSignups()

	hash, err := signup.RandomPasswordHash(r.hasher)
	if err != nil {
		return nil, err
	}

	record := &signup.PendingSignup{
		Email:           email,
		PasswordHash:    hash,
		EmailVerifiedAt: &now,
	}
	inserted, err := repo.InsertIfAbsentTx(ctx, tx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create pending signup")
	}

	pending, err := repo.LatestByEmailTx(ctx, tx, email)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load pending signup")
	}

	if inserted {
		r.logger.Info("pending signup %s created from provider login", pending.ID)
	}
	return pending, nil
}
