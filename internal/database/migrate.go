package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations brings the schema up to date from the SQL files at path.
// An already-current schema is not an error.
func RunMigrations(dsn, path string) error {
	m, err := migrate.New("file://"+path, dsn)
	if err != nil {
		return fmt.Errorf("opening migration source %q: %w", path, err)
	}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		slog.Info("database schema already up to date")
	case err != nil:
		return fmt.Errorf("applying migrations: %w", err)
	default:
		ver, dirty, _ := m.Version()
		slog.Info("database migrations applied", "version", ver, "dirty", dirty)
	}
	return nil
}
