package signup

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UpsertPendingSignupSQL inserts a registration or revives an expired row
// for the same email. Pending and activated rows are left untouched and no
// row is returned for them.
var UpsertPendingSignupSQL = `INSERT INTO "pending_signups" (
	"id", "email", "password_hash", "company_name", "status",
	"email_verified_at", "client_id", "activation_session_id",
	"created_at", "updated_at"
) VALUES (?, ?, ?, ?, 'pending', NULL, NULL, NULL, ?, ?)
ON CONFLICT ("email") DO UPDATE SET
	"password_hash" = EXCLUDED."password_hash",
	"company_name" = EXCLUDED."company_name",
	"status" = 'pending',
	"email_verified_at" = NULL,
	"client_id" = NULL,
	"activation_session_id" = NULL,
	"updated_at" = EXCLUDED."updated_at"
WHERE "pending_signups"."status" = 'expired'
RETURNING *;`

// InsertPendingSignupIfAbsentSQL creates a pending row unless any row
// already owns the email.
var InsertPendingSignupIfAbsentSQL = `INSERT INTO "pending_signups" (
	"id", "email", "password_hash", "company_name", "status",
	"email_verified_at", "client_id", "activation_session_id",
	"created_at", "updated_at"
) VALUES (?, ?, ?, NULL, 'pending', ?, NULL, NULL, ?, ?)
ON CONFLICT ("email") DO NOTHING;`

// PendingSignups stores registrations in progress
type PendingSignups interface {
	GetByID(ctx context.Context, id uuid.UUID) (*PendingSignup, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*PendingSignup, error)
	LatestByEmail(ctx context.Context, email string) (*PendingSignup, error)
	LatestByEmailTx(ctx context.Context, tx bun.IDB, email string) (*PendingSignup, error)

	Create(ctx context.Context, record *PendingSignup) (*PendingSignup, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *PendingSignup) (*PendingSignup, error)
	InsertIfAbsentTx(ctx context.Context, tx bun.IDB, record *PendingSignup) (bool, error)
	UpsertForRegistration(ctx context.Context, record *PendingSignup) (*PendingSignup, bool, error)
	UpsertForRegistrationTx(ctx context.Context, tx bun.IDB, record *PendingSignup) (*PendingSignup, bool, error)

	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error)
	ReactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, verifiedAt time.Time) (bool, error)
	UpdateCompanyName(ctx context.Context, id uuid.UUID, name string) error
	Activate(ctx context.Context, id, clientID uuid.UUID, activationSessionID string) error
	ExpireStale(ctx context.Context, createdBefore time.Time) (int64, error)
}

type pendingSignups struct {
	repository.Repository[*PendingSignup]
	db  *bun.DB
	now func() time.Time
}

var _ PendingSignups = (*pendingSignups)(nil)

// NewPendingSignupsRepository returns the bun backed repository
func NewPendingSignupsRepository(db *bun.DB) PendingSignups {
	repo := repository.NewRepository[*PendingSignup](db, repository.ModelHandlers[*PendingSignup]{
		NewRecord: func() *PendingSignup { return &PendingSignup{} },
		GetID: func(p *PendingSignup) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *PendingSignup, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &pendingSignups{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (r *pendingSignups) GetByID(ctx context.Context, id uuid.UUID) (*PendingSignup, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *pendingSignups) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*PendingSignup, error) {
	record, err := r.Repository.GetByIDTx(ctx, tx, id.String())
	if err != nil {
		return nil, mapNotFound(err)
	}
	return record, nil
}

func (r *pendingSignups) LatestByEmail(ctx context.Context, email string) (*PendingSignup, error) {
	return r.LatestByEmailTx(ctx, r.db, email)
}

func (r *pendingSignups) LatestByEmailTx(ctx context.Context, tx bun.IDB, email string) (*PendingSignup, error) {
	record, err := r.Repository.GetTx(ctx, tx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("lower(?TableAlias.email) = ?", NormalizeEmail(email)).
			OrderExpr("?TableAlias.created_at DESC").
			Limit(1)
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return record, nil
}

func (r *pendingSignups) Create(ctx context.Context, record *PendingSignup) (*PendingSignup, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *pendingSignups) CreateTx(ctx context.Context, tx bun.IDB, record *PendingSignup) (*PendingSignup, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Email = NormalizeEmail(record.Email)
	if record.Status == "" {
		record.Status = PendingStatus
	}

	now := r.now().UTC()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now

	return r.Repository.CreateTx(ctx, tx, record)
}

// InsertIfAbsentTx runs InsertPendingSignupIfAbsentSQL. The boolean is
// false when another row already owns the email.
func (r *pendingSignups) InsertIfAbsentTx(ctx context.Context, tx bun.IDB, record *PendingSignup) (bool, error) {
	now := r.now().UTC()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	var verifiedAt any
	if record.EmailVerifiedAt != nil {
		verifiedAt = record.EmailVerifiedAt.UTC()
	}

	res, err := tx.NewRaw(
		InsertPendingSignupIfAbsentSQL,
		record.ID.String(),
		NormalizeEmail(record.Email),
		record.PasswordHash,
		verifiedAt,
		now,
		now,
	).Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res), nil
}

func (r *pendingSignups) UpsertForRegistration(ctx context.Context, record *PendingSignup) (*PendingSignup, bool, error) {
	return r.UpsertForRegistrationTx(ctx, r.db, record)
}

// UpsertForRegistrationTx runs UpsertPendingSignupSQL. The boolean is false
// when a pending or activated row already owns the email.
func (r *pendingSignups) UpsertForRegistrationTx(ctx context.Context, tx bun.IDB, record *PendingSignup) (*PendingSignup, bool, error) {
	now := r.now().UTC()

	var companyName any
	if name := strings.TrimSpace(record.CompanyName); name != "" {
		companyName = name
	}

	rows, err := r.Repository.RawTx(ctx, tx,
		UpsertPendingSignupSQL,
		uuid.New().String(),
		NormalizeEmail(record.Email),
		record.PasswordHash,
		companyName,
		now,
		now,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) && !repository.IsRecordNotFound(err) {
		return nil, false, err
	}

	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// MarkEmailVerifiedTx stamps email_verified_at once, it is never cleared.
func (r *pendingSignups) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*PendingSignup)(nil)).
		Set("email_verified_at = ?", at.UTC()).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", id).
		Where("email_verified_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res), nil
}

// ReactivateTx moves an expired row back to pending and refreshes the
// verification stamp.
func (r *pendingSignups) ReactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, verifiedAt time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*PendingSignup)(nil)).
		Set("status = ?", PendingStatus).
		Set("email_verified_at = ?", verifiedAt.UTC()).
		Set("updated_at = ?", verifiedAt.UTC()).
		Where("id = ?", id).
		Where("status = ?", ExpiredStatus).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res), nil
}

func (r *pendingSignups) UpdateCompanyName(ctx context.Context, id uuid.UUID, name string) error {
	res, err := r.db.NewUpdate().
		Model((*PendingSignup)(nil)).
		Set("company_name = ?", name).
		Set("updated_at = ?", r.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !affected(res) {
		return ErrRecordNotFound
	}
	return nil
}

// Activate records the external activation signal. Only pending rows
// transition.
func (r *pendingSignups) Activate(ctx context.Context, id, clientID uuid.UUID, activationSessionID string) error {
	var sessionID any
	if activationSessionID != "" {
		sessionID = activationSessionID
	}

	res, err := r.db.NewUpdate().
		Model((*PendingSignup)(nil)).
		Set("status = ?", ActivatedStatus).
		Set("client_id = ?", clientID).
		Set("activation_session_id = ?", sessionID).
		Set("updated_at = ?", r.now().UTC()).
		Where("id = ?", id).
		Where("status = ?", PendingStatus).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !affected(res) {
		return errors.Wrap(ErrRecordNotFound, errors.CategoryNotFound, "no pending signup to activate").
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}
	return nil
}

// ExpireStale marks unverified pending rows created before the cutoff
// as expired.
func (r *pendingSignups) ExpireStale(ctx context.Context, createdBefore time.Time) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*PendingSignup)(nil)).
		Set("status = ?", ExpiredStatus).
		Set("updated_at = ?", r.now().UTC()).
		Where("status = ?", PendingStatus).
		Where("email_verified_at IS NULL").
		Where("created_at < ?", createdBefore.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// NormalizeEmail trims and lowercases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return ErrRecordNotFound
	}
	return err
}

func affected(res sql.Result) bool {
	if res == nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}
