package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	stockUseCase "github.com/almacen/catalog/internal/stock/usecase"
)

// RunCreateTitle registers a title with its initial stock.
func RunCreateTitle(
	ctx context.Context,
	titleUseCase stockUseCase.TitleUseCase,
	logger *slog.Logger,
	writer io.Writer,
	id int64,
	name string,
	initialStock string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	stock, err := decimal.NewFromString(initialStock)
	if err != nil {
		return fmt.Errorf("invalid initial stock %q: %w", initialStock, err)
	}

	title, err := titleUseCase.Create(ctx, id, name, stock)
	if err != nil {
		return fmt.Errorf("failed to create title: %w", err)
	}

	logger.Info("title created",
		slog.Int64("title_id", title.ID),
		slog.String("available_stock", title.AvailableStock.String()),
	)

	return outputTitle(writer, title, format)
}

// RunRestockTitle adds quantity to a title's available stock.
func RunRestockTitle(
	ctx context.Context,
	titleUseCase stockUseCase.TitleUseCase,
	logger *slog.Logger,
	writer io.Writer,
	id int64,
	quantity string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	qty, err := decimal.NewFromString(quantity)
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}

	title, err := titleUseCase.Restock(ctx, id, qty)
	if err != nil {
		return fmt.Errorf("failed to restock title: %w", err)
	}

	logger.Info("title restocked",
		slog.Int64("title_id", title.ID),
		slog.String("quantity", qty.String()),
		slog.String("available_stock", title.AvailableStock.String()),
	)

	return outputTitle(writer, title, format)
}

// RunRetireTitle marks a title inactive. Retired titles reject every purchase.
func RunRetireTitle(
	ctx context.Context,
	titleUseCase stockUseCase.TitleUseCase,
	logger *slog.Logger,
	writer io.Writer,
	id int64,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	title, err := titleUseCase.Retire(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to retire title: %w", err)
	}

	logger.Info("title retired", slog.Int64("title_id", title.ID))

	return outputTitle(writer, title, format)
}

// RunGetTitle prints the current stock record of a title.
func RunGetTitle(
	ctx context.Context,
	titleUseCase stockUseCase.TitleUseCase,
	writer io.Writer,
	id int64,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	title, err := titleUseCase.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get title: %w", err)
	}
	return outputTitle(writer, title, format)
}
