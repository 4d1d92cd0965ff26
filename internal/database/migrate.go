package database

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	// registers the postgres:// scheme
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator is the subset of *migrate.Migrate used here.
type Migrator interface {
	Up() error
	Version() (uint, bool, error)
	Close() (error, error)
}

// MigrationEngine builds a Migrator for a database URL, so tests never touch a real database.
type MigrationEngine func(databaseURL string) (Migrator, error)

// DefaultEngine reads the embedded migrations and opens its own connection,
// leaving the sync connection untouched when it closes.
func DefaultEngine(databaseURL string) (Migrator, error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", source, databaseURL)
}

// RunMigrations applies every pending migration.
func RunMigrations(databaseURL string, engine MigrationEngine) (err error) {
	m, err := engine(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialise migrations: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			err = errors.Join(err, fmt.Errorf("migration source error: %w", srcErr))
		}
		if dbErr != nil {
			err = errors.Join(err, fmt.Errorf("migration database error: %w", dbErr))
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}
	log.Printf("Schema at version %d", version)
	return nil
}
