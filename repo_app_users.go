package signup

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AppUsers reads activated identities. Rows are written by the
// activation process, Create exists for that process and for fixtures.
type AppUsers interface {
	LatestActiveByEmail(ctx context.Context, email string) (*AppUser, error)
	LatestActiveByEmailTx(ctx context.Context, tx bun.IDB, email string) (*AppUser, error)
	LatestActiveByClientAndEmail(ctx context.Context, clientID uuid.UUID, email string) (*AppUser, error)
	Create(ctx context.Context, record *AppUser) (*AppUser, error)
}

type appUsers struct {
	repository.Repository[*AppUser]
	db  *bun.DB
	now func() time.Time
}

var _ AppUsers = (*appUsers)(nil)

// NewAppUsersRepository returns the bun backed repository
func NewAppUsersRepository(db *bun.DB) AppUsers {
	repo := repository.NewRepository[*AppUser](db, repository.ModelHandlers[*AppUser]{
		NewRecord: func() *AppUser { return &AppUser{} },
		GetID: func(u *AppUser) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *AppUser, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &appUsers{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (r *appUsers) LatestActiveByEmail(ctx context.Context, email string) (*AppUser, error) {
	return r.LatestActiveByEmailTx(ctx, r.db, email)
}

// LatestActiveByEmailTx matches case insensitively, most recent row wins.
func (r *appUsers) LatestActiveByEmailTx(ctx context.Context, tx bun.IDB, email string) (*AppUser, error) {
	record, err := r.Repository.GetTx(ctx, tx,
		activeByEmail(email),
		latestFirst,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return record, nil
}

func (r *appUsers) LatestActiveByClientAndEmail(ctx context.Context, clientID uuid.UUID, email string) (*AppUser, error) {
	record, err := r.Repository.Get(ctx,
		activeByEmail(email),
		func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.client_id = ?", clientID)
		},
		latestFirst,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return record, nil
}

func (r *appUsers) Create(ctx context.Context, record *AppUser) (*AppUser, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	role, ok := ParseRole(record.Role)
	if !ok {
		return nil, ErrInvalidRole.Clone().WithMetadata(map[string]any{"role": record.Role})
	}
	record.Role = role
	if record.CreatedAt == nil {
		now := r.now().UTC()
		record.CreatedAt = &now
	}

	return r.Repository.Create(ctx, record)
}

func activeByEmail(email string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("lower(?TableAlias.email) = ?", NormalizeEmail(email)).
			Where("?TableAlias.is_active = ?", true)
	}
}

func latestFirst(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("?TableAlias.created_at DESC").Limit(1)
}
