package repo

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrateDirection — направление миграций.
type MigrateDirection string

const (
	MigrateUp   MigrateDirection = "up"
	MigrateDown MigrateDirection = "down"
)

// Migrate применяет SQL-миграции из dir (например, "migrations") к базе dsn.
// Отсутствие изменений ошибкой не считается.
func Migrate(dsn, dir string, direction MigrateDirection, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	switch direction {
	case MigrateUp:
		err = m.Up()
	case MigrateDown:
		err = m.Down()
	default:
		return fmt.Errorf("unknown migrate direction %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}

	version, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		logger.Info("migrations applied", "direction", direction, "version", "none")
	case verr != nil:
		return fmt.Errorf("read migration version: %w", verr)
	default:
		logger.Info("migrations applied", "direction", direction, "version", version, "dirty", dirty)
	}
	return nil
}
