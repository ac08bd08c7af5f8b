package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	stockDomain "github.com/almacen/catalog/internal/stock/domain"
	stockUseCase "github.com/almacen/catalog/internal/stock/usecase"
)

type outcomeOutput struct {
	EventID   string                     `json:"event_id"`
	Outcome   stockDomain.OutcomeKind    `json:"outcome"`
	Rejection *stockDomain.StockRejected `json:"rejection,omitempty"`
}

// RunProcessPurchase reads a PurchaseConfirmed JSON document from path ("-" for
// reader) and reconciles it exactly like a broker delivery. Used to replay messages
// from the dead letter queue.
func RunProcessPurchase(
	ctx context.Context,
	useCase stockUseCase.ReconciliationUseCase,
	logger *slog.Logger,
	streams IOTuple,
	path string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	body, err := readInput(streams.Reader, path)
	if err != nil {
		return err
	}

	var event stockDomain.PurchaseConfirmed
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode purchase: %w", err)
	}

	outcome, err := useCase.Process(ctx, &event)
	if err != nil {
		return fmt.Errorf("failed to process purchase %s: %w", event.EventID, err)
	}

	logger.Info("purchase processed",
		slog.String("event_id", event.EventID),
		slog.String("outcome", string(outcome.Kind)),
	)

	if format == "json" {
		return writeJSON(streams.Writer, outcomeOutput{
			EventID:   event.EventID,
			Outcome:   outcome.Kind,
			Rejection: outcome.Rejection,
		})
	}

	if outcome.Rejection != nil {
		_, err = fmt.Fprintf(streams.Writer, "Purchase %s %s: %s (rejection event %s)\n",
			event.EventID, outcome.Kind, outcome.Rejection.ReasonCode, outcome.Rejection.EventID)
		return err
	}
	_, err = fmt.Fprintf(streams.Writer, "Purchase %s %s\n", event.EventID, outcome.Kind)
	return err
}

// RunCheckEvent reports whether an event id is recorded in the ledger.
func RunCheckEvent(
	ctx context.Context,
	useCase stockUseCase.ReconciliationUseCase,
	writer io.Writer,
	eventID string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	processed, err := useCase.IsProcessed(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"event_id":  eventID,
			"processed": processed,
		})
	}

	if processed {
		_, err = fmt.Fprintf(writer, "Event %s has been processed\n", eventID)
	} else {
		_, err = fmt.Fprintf(writer, "Event %s has not been processed\n", eventID)
	}
	return err
}

func readInput(reader io.Reader, path string) ([]byte, error) {
	if path == "-" {
		body, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read purchase from stdin: %w", err)
		}
		return body, nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read purchase file: %w", err)
	}
	return body, nil
}
