package repository

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies every pending up migration for db's dialect.
// It does not close db.
func Migrate(db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	var (
		driver database.Driver
		dir    string
		err    error
	)
	switch db.Name {
	case DriverPostgres:
		dir = "migrations/postgres"
		driver, err = migratepgx.WithInstance(db.SQL, &migratepgx.Config{})
	case DriverSQLite:
		dir = "migrations/sqlite"
		driver, err = migratesqlite.WithInstance(db.SQL, &migratesqlite.Config{})
	default:
		return fmt.Errorf("no migrations for driver %q", db.Name)
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, db.Name, driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		logger.Warn("store.migrate.version_unknown", "error", verr)
	}
	logger.Info("store.migrate.ok",
		"driver", db.Name,
		"version", version,
		"dirty", dirty,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
