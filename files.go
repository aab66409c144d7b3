package signup

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

const migrationsRoot = "data/sql/migrations"

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// PersistenceConfig carries the connection settings handed to the
// persistence client.
type PersistenceConfig struct {
	Debug          bool
	Driver         string
	Server         string
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return c.Driver
}

func (c PersistenceConfig) GetServer() string {
	return c.Server
}

func (c PersistenceConfig) GetDSN() string {
	return c.Server
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	return c.OtelIdentifier
}

var registerModels sync.Once

// NewPersistenceClient wraps sqldb in a persistence client with the signup
// models and per dialect migrations registered.
func NewPersistenceClient(cfg persistence.Config, sqldb *sql.DB, dialect schema.Dialect) (*persistence.Client, error) {
	registerModels.Do(func() {
		persistence.RegisterModel((*Client)(nil))
		persistence.RegisterModel((*AppUser)(nil))
		persistence.RegisterModel((*PendingSignup)(nil))
		persistence.RegisterModel((*EmailVerificationToken)(nil))
	})

	client, err := persistence.New(cfg, sqldb, dialect)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create persistence client")
	}

	migrations, err := fs.Sub(GetMigrationsFS(), migrationsRoot)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read migrations")
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel(migrationsRoot),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	return client, nil
}

// Migrate checks every dialect has a complete migration set and applies
// the ones for the client's dialect.
func Migrate(ctx context.Context, client *persistence.Client) error {
	if err := client.ValidateDialects(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "invalid dialect migrations")
	}
	if err := client.Migrate(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to apply migrations")
	}
	return nil
}

// OpenDB builds a persistence client over sqldb, migrates it and returns
// the bun handle.
func OpenDB(ctx context.Context, cfg persistence.Config, sqldb *sql.DB, dialect schema.Dialect) (*bun.DB, error) {
	client, err := NewPersistenceClient(cfg, sqldb, dialect)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, client); err != nil {
		return nil, err
	}
	return client.DB(), nil
}
