// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/almacen/catalog/internal/app"
	stockDomain "github.com/almacen/catalog/internal/stock/domain"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

// validateFormat accepts the two output formats every command supports.
func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid options: text, json)", format)
	}
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonBytes))
	return err
}

type titleOutput struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	AvailableStock string `json:"available_stock"`
	IsActive       bool   `json:"is_active"`
	Rating         int    `json:"rating"`
	TotalRatings   int64  `json:"total_ratings"`
	Version        int64  `json:"version"`
}

// outputTitle prints a title in the requested format.
func outputTitle(w io.Writer, title *stockDomain.TitleStock, format string) error {
	if format == "json" {
		return writeJSON(w, titleOutput{
			ID:             title.ID,
			Name:           title.Name,
			AvailableStock: title.AvailableStock.String(),
			IsActive:       title.IsActive,
			Rating:         title.Rating,
			TotalRatings:   title.TotalRatings,
			Version:        title.Version,
		})
	}

	status := "active"
	if !title.IsActive {
		status = "retired"
	}
	_, err := fmt.Fprintf(w, "Title %d (%s): %s in stock, %s, version %d\n",
		title.ID, title.Name, title.AvailableStock.String(), status, title.Version)
	return err
}
