package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// Migrator applies the embedded schema migrations for the store's dialect.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator builds a migrator bound to the store's connection pool.
// The migrator must not be closed while the store is in use: closing it
// closes the shared *sql.DB.
func (s *Store) NewMigrator() (*Migrator, error) {
	src, err := iofs.New(migrationFS, "migrations/"+string(s.dialect))
	if err != nil {
		return nil, fmt.Errorf("migrations source: %w", err)
	}

	var driver database.Driver
	switch s.dialect {
	case DialectPostgres:
		driver, err = postgres.WithInstance(s.db, &postgres.Config{})
	case DialectSQLite:
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	default:
		err = fmt.Errorf("unsupported dialect %q", s.dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("migrations driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(s.dialect), driver)
	if err != nil {
		return nil, fmt.Errorf("migrate init: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. No pending migrations is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (mg *Migrator) Down() error {
	if err := mg.m.Steps(-1); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version reports the applied schema version and whether it is dirty.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Migrate applies all pending migrations.
func (s *Store) Migrate() error {
	mg, err := s.NewMigrator()
	if err != nil {
		return err
	}
	return mg.Up()
}
