package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ivankudzin/shipyard/migrations"
)

// MigrateOptions runs all pending migrations up by default. A non-zero Steps
// is applied relative to the current version, negative values roll back.
type MigrateOptions struct {
	Down  bool
	Steps int
}

// Migrate applies the embedded schema migrations. It reports whether anything changed.
func Migrate(pool *pgxpool.Pool, opts MigrateOptions) (bool, error) {
	if pool == nil {
		return false, errors.New("postgres pool is nil")
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return false, fmt.Errorf("open embedded migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return false, fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return false, fmt.Errorf("create migrate instance: %w", err)
	}

	switch {
	case opts.Steps != 0:
		err = m.Steps(opts.Steps)
	case opts.Down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("apply migrations: %w", err)
	}
	return true, nil
}
