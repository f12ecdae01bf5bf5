package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies all pending migrations for the connection's driver.
//
// Postgres migrates over a dedicated connection opened from dsn so the
// migrator can be closed without touching the pool. SQLite reuses db
// itself, since an in-memory database only exists on that connection.
func Migrate(db *sqlx.DB, driver, dsn string) error {
	var (
		target database.Driver
		owned  bool
		err    error
	)

	switch driver {
	case DriverPostgres:
		migrateDB, err := sql.Open("pgx", dsn)
		if err != nil {
			return fmt.Errorf("open migration database: %w", err)
		}
		target, err = pgxmigrate.WithInstance(migrateDB, &pgxmigrate.Config{})
		if err != nil {
			migrateDB.Close()
			return fmt.Errorf("create postgres driver: %w", err)
		}
		owned = true
	case DriverSQLite:
		target, err = sqlitemigrate.WithInstance(db.DB, &sqlitemigrate.Config{})
		if err != nil {
			return fmt.Errorf("create sqlite driver: %w", err)
		}
	default:
		return fmt.Errorf("migrate: unsupported driver %q", driver)
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	src, err := iofs.New(sub, driver)
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if owned {
		defer m.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
