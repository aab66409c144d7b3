package signup

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationTokens stores hashed email verification tokens
type VerificationTokens interface {
	DeleteUnusedTx(ctx context.Context, tx bun.IDB, pendingSignupID uuid.UUID) (int64, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *EmailVerificationToken) (*EmailVerificationToken, error)
	GetByHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*EmailVerificationToken, error)
	MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error)
}

type verificationTokens struct {
	repository.Repository[*EmailVerificationToken]
	db *bun.DB
}

var _ VerificationTokens = (*verificationTokens)(nil)

// NewVerificationTokensRepository returns the bun backed repository
func NewVerificationTokensRepository(db *bun.DB) VerificationTokens {
	repo := repository.NewRepository[*EmailVerificationToken](db, repository.ModelHandlers[*EmailVerificationToken]{
		NewRecord: func() *EmailVerificationToken { return &EmailVerificationToken{} },
		GetID: func(t *EmailVerificationToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *EmailVerificationToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token_hash"
		},
	})

	return &verificationTokens{
		Repository: repo,
		db:         db,
	}
}

// DeleteUnusedTx removes every token for the signup that was never redeemed.
func (r *verificationTokens) DeleteUnusedTx(ctx context.Context, tx bun.IDB, pendingSignupID uuid.UUID) (int64, error) {
	res, err := tx.NewDelete().
		Model((*EmailVerificationToken)(nil)).
		Where("pending_signup_id = ?", pendingSignupID).
		Where("used_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *verificationTokens) CreateTx(ctx context.Context, tx bun.IDB, record *EmailVerificationToken) (*EmailVerificationToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.ExpiresAt = record.ExpiresAt.UTC()
	if record.CreatedAt == nil {
		now := time.Now().UTC()
		record.CreatedAt = &now
	}

	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *verificationTokens) GetByHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*EmailVerificationToken, error) {
	record, err := r.Repository.GetByIdentifierTx(ctx, tx, tokenHash)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return record, nil
}

// MarkUsedTx sets used_at only if it is still null. False means another
// redemption got there first.
func (r *verificationTokens) MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*EmailVerificationToken)(nil)).
		Set("used_at = ?", at.UTC()).
		Where("id = ?", id).
		Where("used_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res), nil
}
