package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/almacen/catalog/internal/metrics"
	stockDomain "github.com/almacen/catalog/internal/stock/domain"
)

const metricsDomain = "stock"

// reconciliationUseCaseWithMetrics decorates ReconciliationUseCase with metrics instrumentation.
type reconciliationUseCaseWithMetrics struct {
	next    ReconciliationUseCase
	metrics metrics.BusinessMetrics
}

// NewReconciliationUseCaseWithMetrics wraps a ReconciliationUseCase with metrics recording.
// The status label is the outcome kind, or "error".
func NewReconciliationUseCaseWithMetrics(
	useCase ReconciliationUseCase,
	m metrics.BusinessMetrics,
) ReconciliationUseCase {
	return &reconciliationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Process records metrics for purchase reconciliation.
func (r *reconciliationUseCaseWithMetrics) Process(
	ctx context.Context,
	event *stockDomain.PurchaseConfirmed,
) (stockDomain.Outcome, error) {
	start := time.Now()
	outcome, err := r.next.Process(ctx, event)

	status := string(outcome.Kind)
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, metricsDomain, "purchase_reconcile", status)
	r.metrics.RecordDuration(ctx, metricsDomain, "purchase_reconcile", time.Since(start), status)
	if err == nil && outcome.Rejection != nil {
		r.metrics.RecordRejection(ctx, string(outcome.Rejection.ReasonCode))
	}

	return outcome, err
}

// IsProcessed records metrics for ledger lookups.
func (r *reconciliationUseCaseWithMetrics) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	start := time.Now()
	processed, err := r.next.IsProcessed(ctx, eventID)
	recordStatus(ctx, r.metrics, "ledger_lookup", start, err)
	return processed, err
}

// titleUseCaseWithMetrics decorates TitleUseCase with metrics instrumentation.
type titleUseCaseWithMetrics struct {
	next    TitleUseCase
	metrics metrics.BusinessMetrics
}

// NewTitleUseCaseWithMetrics wraps a TitleUseCase with metrics recording.
func NewTitleUseCaseWithMetrics(useCase TitleUseCase, m metrics.BusinessMetrics) TitleUseCase {
	return &titleUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Create records metrics for title creation.
func (t *titleUseCaseWithMetrics) Create(
	ctx context.Context,
	id int64,
	name string,
	initialStock decimal.Decimal,
) (*stockDomain.TitleStock, error) {
	start := time.Now()
	title, err := t.next.Create(ctx, id, name, initialStock)
	recordStatus(ctx, t.metrics, "title_create", start, err)
	return title, err
}

// Get records metrics for title retrieval.
func (t *titleUseCaseWithMetrics) Get(ctx context.Context, id int64) (*stockDomain.TitleStock, error) {
	start := time.Now()
	title, err := t.next.Get(ctx, id)
	recordStatus(ctx, t.metrics, "title_get", start, err)
	return title, err
}

// List records metrics for title listing.
func (t *titleUseCaseWithMetrics) List(ctx context.Context, offset, limit int) ([]*stockDomain.TitleStock, error) {
	start := time.Now()
	titles, err := t.next.List(ctx, offset, limit)
	recordStatus(ctx, t.metrics, "title_list", start, err)
	return titles, err
}

// Restock records metrics for restocking.
func (t *titleUseCaseWithMetrics) Restock(
	ctx context.Context,
	id int64,
	quantity decimal.Decimal,
) (*stockDomain.TitleStock, error) {
	start := time.Now()
	title, err := t.next.Restock(ctx, id, quantity)
	recordStatus(ctx, t.metrics, "title_restock", start, err)
	return title, err
}

// Retire records metrics for title retirement.
func (t *titleUseCaseWithMetrics) Retire(ctx context.Context, id int64) (*stockDomain.TitleStock, error) {
	start := time.Now()
	title, err := t.next.Retire(ctx, id)
	recordStatus(ctx, t.metrics, "title_retire", start, err)
	return title, err
}

type ratingUseCaseWithMetrics struct {
	next    RatingUseCase
	metrics metrics.BusinessMetrics
}

// NewRatingUseCaseWithMetrics wraps a RatingUseCase with metrics recording.
// Events that do not apply are counted as "ignored".
func NewRatingUseCaseWithMetrics(useCase RatingUseCase, m metrics.BusinessMetrics) RatingUseCase {
	return &ratingUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (r *ratingUseCaseWithMetrics) Apply(
	ctx context.Context,
	event *stockDomain.RatingUpdated,
) (*stockDomain.TitleStock, error) {
	start := time.Now()
	title, err := r.next.Apply(ctx, event)

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case title == nil:
		status = "ignored"
	}

	r.metrics.RecordOperation(ctx, metricsDomain, "rating_apply", status)
	r.metrics.RecordDuration(ctx, metricsDomain, "rating_apply", time.Since(start), status)
	return title, err
}

func recordStatus(
	ctx context.Context,
	m metrics.BusinessMetrics,
	operation string,
	start time.Time,
	err error,
) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.RecordOperation(ctx, metricsDomain, operation, status)
	m.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}
