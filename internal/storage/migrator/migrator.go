// Package migrator applies the embedded SQL migrations with golang-migrate.
package migrator

import (
	"errors"
	"fmt"
	"strings"

	"authsvc/internal/storage"
	"authsvc/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

var ErrUnsupportedDriver = errors.New("driver has no sql migrations")

// Up applies all pending migrations. It reports applied=false when the
// schema was already current.
func Up(driver, dsn string) (applied bool, err error) {
	const op = "migrator.Up"

	m, err := newMigrate(driver, dsn)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// Down rolls back every applied migration.
func Down(driver, dsn string) error {
	const op = "migrator.Down"

	m, err := newMigrate(driver, dsn)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func newMigrate(driver, dsn string) (*migrate.Migrate, error) {
	url, err := DatabaseURL(driver, dsn)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrations.FS, driver)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("instance: %w", err)
	}

	return m, nil
}

// DatabaseURL maps a storage DSN onto the URL scheme golang-migrate expects.
func DatabaseURL(driver, dsn string) (string, error) {
	switch driver {
	case storage.DriverSQLite:
		return "sqlite3://" + dsn, nil
	case storage.DriverPostgres:
		for _, prefix := range []string{"postgres://", "postgresql://"} {
			if rest, ok := strings.CutPrefix(dsn, prefix); ok {
				return "pgx5://" + rest, nil
			}
		}
		return "", fmt.Errorf("postgres dsn must be a postgres:// url")
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}
