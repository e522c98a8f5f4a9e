// Package postgres provides the PostgreSQL connection pool and schema
// migrations. Migrations are embedded in the binary and applied through
// golang-migrate, either on startup (database.auto_migrate) or from
// issuectl migrate.
package postgres

import (
	"embed"
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationStatus is the schema version currently applied.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// Migrator applies the embedded migrations to the database at dbURL.
type Migrator struct {
	dbURL string
	log   logging.Logger
}

// NewMigrator creates a Migrator. dbURL is a postgres:// URL such as the one
// BuildDSN returns.
func NewMigrator(dbURL string, log logging.Logger) *Migrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Migrator{dbURL: dbURL, log: log}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to load embedded migrations")
	}
	mg, err := migrate.NewWithSourceInstance("iofs", src, m.dbURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return mg, nil
}

func closeMigrate(mg *migrate.Migrate) {
	_, _ = mg.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Up / Down
// ─────────────────────────────────────────────────────────────────────────────

// Up applies every pending migration. Nothing pending is not an error.
func (m *Migrator) Up() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrate(mg)

	if err := mg.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := mg.Version()
		return errors.Wrap(err, errors.ErrCodeDatabaseError, fmt.Sprintf("failed to run migrations (current version: %d)", version))
	}

	status, err := m.status(mg)
	if err != nil {
		return err
	}
	m.log.Info("Database migrations completed",
		logging.Int64("version", int64(status.Version)),
		logging.Bool("dirty", status.Dirty),
	)
	return nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		return errors.InvalidParam(fmt.Sprintf("steps must be greater than 0, got %d", steps))
	}
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrate(mg)

	if err := mg.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.InvalidState("no migrations to roll back")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, fmt.Sprintf("failed to roll back %d step(s)", steps))
	}
	m.log.Info("Database migrations rolled back", logging.Int("steps", steps))
	return nil
}

// Force sets the recorded version without running migrations. It clears a
// dirty state after a failed migration was repaired by hand.
func (m *Migrator) Force(version int) error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrate(mg)

	if err := mg.Force(version); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, fmt.Sprintf("failed to force version %d", version))
	}
	m.log.Warn("Migration version forced", logging.Int("version", version))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Status
// ─────────────────────────────────────────────────────────────────────────────

// Status reports the applied version. A database without migrations is
// version 0.
func (m *Migrator) Status() (MigrationStatus, error) {
	mg, err := m.open()
	if err != nil {
		return MigrationStatus{}, err
	}
	defer closeMigrate(mg)
	return m.status(mg)
}

func (m *Migrator) status(mg *migrate.Migrate) (MigrationStatus, error) {
	version, dirty, err := mg.Version()
	if err != nil {
		if stderrors.Is(err, migrate.ErrNilVersion) {
			return MigrationStatus{}, nil
		}
		return MigrationStatus{}, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get migration version")
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}
