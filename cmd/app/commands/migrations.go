package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationResult reports the schema version after a migrate run.
type MigrationResult struct {
	Driver  string `json:"driver"`
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
	Changed bool   `json:"changed"`
}

// RunMigrations migrates the schema from dir/<postgresql|mysql>. Steps of zero
// applies every pending migration; a negative value rolls back that many.
func RunMigrations(
	logger *slog.Logger,
	writer io.Writer,
	driver, connectionString, dir string,
	steps int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	sourceURL, databaseURL, err := migrationURLs(driver, connectionString, dir)
	if err != nil {
		return err
	}

	logger.Info("running database migrations", slog.String("driver", driver), slog.Int("steps", steps))

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if steps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(steps)
	}
	changed := true
	if errors.Is(err, migrate.ErrNoChange) {
		changed, err = false, nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	result := MigrationResult{Driver: driver, Version: version, Dirty: dirty, Changed: changed}
	logger.Info("migrations completed", slog.Uint64("version", uint64(version)), slog.Bool("changed", changed))

	if format == "json" {
		return writeJSON(writer, result)
	}
	_, err = fmt.Fprintf(writer, "Schema at version %d (changed: %t)\n", result.Version, result.Changed)
	return err
}

// migrationURLs builds golang-migrate source and database URLs. MySQL DSNs in
// go-sql-driver form gain the mysql:// scheme.
func migrationURLs(driver, connectionString, dir string) (string, string, error) {
	switch driver {
	case "postgres":
		return "file://" + path.Join(dir, "postgresql"), connectionString, nil
	case "mysql":
		databaseURL := connectionString
		if !strings.HasPrefix(databaseURL, "mysql://") {
			databaseURL = "mysql://" + databaseURL
		}
		return "file://" + path.Join(dir, "mysql"), databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}
