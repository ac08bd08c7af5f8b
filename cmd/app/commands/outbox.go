package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	outboxUseCase "github.com/almacen/catalog/internal/outbox/usecase"
)

type cleanOutboxResult struct {
	Count  int64 `json:"count"`
	Days   int   `json:"days"`
	DryRun bool  `json:"dry_run"`
}

// RunCleanOutbox prunes processed outbox events older than days. With dryRun only
// the matching rows are counted.
func RunCleanOutbox(
	ctx context.Context,
	useCase outboxUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must not be negative, got: %d", days)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	count, err := useCase.CleanProcessed(ctx, days, dryRun)
	if err != nil {
		return fmt.Errorf("failed to clean outbox events: %w", err)
	}
	logger.Info("outbox cleanup finished",
		slog.Int64("count", count),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	result := cleanOutboxResult{Count: count, Days: days, DryRun: dryRun}
	if format == "json" {
		return writeJSON(writer, result)
	}

	verb := "Deleted"
	if dryRun {
		verb = "Would delete"
	}
	_, err = fmt.Fprintf(writer, "%s %d processed outbox event(s) older than %d day(s)\n", verb, count, days)
	return err
}

type forwardOutboxResult struct {
	Forwarded int `json:"forwarded"`
	Passes    int `json:"passes"`
}

// RunForwardOutbox runs forwarding passes until one comes back short of
// batchSize, then reports how many events reached the broker. Events whose
// dispatch fails stay pending for the next pass or the running server.
func RunForwardOutbox(
	ctx context.Context,
	useCase outboxUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	batchSize int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	var result forwardOutboxResult
	for {
		forwarded, err := useCase.ForwardPending(ctx)
		if err != nil {
			return fmt.Errorf("failed to forward outbox events: %w", err)
		}
		result.Passes++
		result.Forwarded += forwarded
		if batchSize <= 0 || forwarded < batchSize {
			break
		}
	}
	logger.Info("outbox forwarding finished",
		slog.Int("forwarded", result.Forwarded),
		slog.Int("passes", result.Passes),
	)

	if format == "json" {
		return writeJSON(writer, result)
	}
	_, err := fmt.Fprintf(writer, "Forwarded %d outbox event(s) in %d pass(es)\n", result.Forwarded, result.Passes)
	return err
}
