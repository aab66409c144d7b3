package signup

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Clients stores tenant accounts
type Clients interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Client, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	Create(ctx context.Context, record *Client) (*Client, error)
}

type clients struct {
	repository.Repository[*Client]
	db  *bun.DB
	now func() time.Time
}

var _ Clients = (*clients)(nil)

// NewClientsRepository returns the bun backed repository
func NewClientsRepository(db *bun.DB) Clients {
	repo := repository.NewRepository[*Client](db, repository.ModelHandlers[*Client]{
		NewRecord: func() *Client { return &Client{} },
		GetID: func(c *Client) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Client, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})

	return &clients{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (r *clients) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	record, err := r.Repository.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapNotFound(err)
	}
	return record, nil
}

func (r *clients) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	res, err := r.db.NewUpdate().
		Model((*Client)(nil)).
		Set("name = ?", name).
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

func (r *clients) Create(ctx context.Context, record *Client) (*Client, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := r.now().UTC()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now

	return r.Repository.Create(ctx, record)
}
