package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver

	"github.com/bank-reconciliation-engine/internal/config"
)

// ErrDirtyMigration is returned when a previous migration failed half way
// and the schema needs manual repair before the service can start
var ErrDirtyMigration = errors.New("reconciliation schema is in a dirty migration state")

// migrationSource turns a migrations directory into a migrate source URL
func migrationSource(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}

// RunMigrations brings the reconciliation schema up to date
func RunMigrations(logger *slog.Logger, cfg *config.PostgresConfig) error {
	if cfg.MigrationsPath == "" {
		return errors.New("migrations path cannot be empty")
	}
	if cfg.URL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := migrate.New(migrationSource(cfg.MigrationsPath), cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if sourceErr != nil || dbErr != nil {
			logger.Warn("Failed to close migrator", "source_error", sourceErr, "database_error", dbErr)
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
		return fmt.Errorf("%w: version %d", ErrDirtyMigration, version)
	}

	logger.Info("Reconciliation schema is up to date", "version", version)
	return nil
}
