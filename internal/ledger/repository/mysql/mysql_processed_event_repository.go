// Package mysql implements the idempotency ledger on MySQL.
package mysql

import (
	"context"
	"database/sql"

	"github.com/almacen/catalog/internal/database"
	apperrors "github.com/almacen/catalog/internal/errors"
	ledgerDomain "github.com/almacen/catalog/internal/ledger/domain"
)

// MySQLProcessedEventRepository stores ledger rows in the processed_events table.
type MySQLProcessedEventRepository struct {
	db *sql.DB
}

// NewMySQLProcessedEventRepository creates a new MySQLProcessedEventRepository.
func NewMySQLProcessedEventRepository(db *sql.DB) *MySQLProcessedEventRepository {
	return &MySQLProcessedEventRepository{db: db}
}

// Exists reports whether eventID was already recorded.
func (r *MySQLProcessedEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = ?)`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, eventID).Scan(&exists); err != nil {
		return false, apperrors.Wrap(database.ClassifyError(err), "failed to check processed event")
	}
	return exists, nil
}

// Record inserts the ledger row. The primary key on event_id turns a concurrent
// duplicate into ErrEventAlreadyProcessed.
func (r *MySQLProcessedEventRepository) Record(ctx context.Context, event *ledgerDomain.ProcessedEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO processed_events (event_id, processed_at, source_system, purchase_id)
			  VALUES (?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		event.EventID,
		event.ProcessedAt,
		event.SourceSystem,
		event.PurchaseID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ledgerDomain.ErrEventAlreadyProcessed
		}
		return apperrors.Wrap(database.ClassifyError(err), "failed to record processed event")
	}
	return nil
}
