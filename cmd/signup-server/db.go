package main

import (
	"context"
	"database/sql"
	"strings"

	"github.com/goliatone/go-errors"
	signup "github.com/goliatone/go-signup"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// dialectFor picks the migration dialect from the DSN scheme
func dialectFor(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

func openDB(ctx context.Context, dsn string, debug bool) (*bun.DB, error) {
	var (
		sqldb   *sql.DB
		dialect schema.Dialect
		driver  string
		err     error
	)

	switch dialectFor(dsn) {
	case "postgres":
		driver = "postgres"
		sqldb, err = sql.Open(driver, dsn)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open postgres")
		}
		dialect = pgdialect.New()
	default:
		driver = sqliteshim.ShimName
		sqldb, err = sql.Open(driver, dsn)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite")
		}
		sqldb.SetMaxOpenConns(1)
		dialect = sqlitedialect.New()
	}

	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to connect to database")
	}

	db, err := signup.OpenDB(ctx, signup.PersistenceConfig{
		Debug:          debug,
		Driver:         driver,
		Server:         dsn,
		OtelIdentifier: "signup",
	}, sqldb, dialect)
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}

	return db, nil
}
