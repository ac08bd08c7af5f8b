// Package usecase implements outbound event publication: the transactional
// publisher used by state-changing use cases and the outbox forwarder.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/almacen/catalog/internal/database"
	"github.com/almacen/catalog/internal/outbox/domain"
)

// Config holds outbox forwarder configuration
type Config struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// OutboxEventRepository defines outbox event repository operations
type OutboxEventRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	GetPendingEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, event *domain.OutboxEvent) error
	CountProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// EventProcessor handles a single outbox event. A nil error marks the event processed.
type EventProcessor interface {
	Process(ctx context.Context, event *domain.OutboxEvent) error
}

// UseCase is the forwarder surface used by the server and CLI commands.
type UseCase interface {
	Start(ctx context.Context) error
	ForwardPending(ctx context.Context) (int, error)
	CleanProcessed(ctx context.Context, days int, dryRun bool) (int64, error)
}

// OutboxUseCase forwards pending outbox events and prunes processed ones.
type OutboxUseCase struct {
	config         Config
	txManager      database.TxManager
	outboxRepo     OutboxEventRepository
	eventProcessor EventProcessor
	logger         *slog.Logger
	now            func() time.Time
}

// NewOutboxUseCase creates a new OutboxUseCase
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	eventProcessor EventProcessor,
	logger *slog.Logger,
) *OutboxUseCase {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OutboxUseCase{
		config:         config,
		txManager:      txManager,
		outboxRepo:     outboxRepo,
		eventProcessor: eventProcessor,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Start forwards pending events until ctx is cancelled. Each wake-up drains the
// outbox while full batches keep coming back, then waits Interval.
func (uc *OutboxUseCase) Start(ctx context.Context) error {
	uc.logger.Info("starting outbox forwarder",
		slog.Duration("interval", uc.config.Interval),
		slog.Int("batch_size", uc.config.BatchSize),
		slog.Int("max_retries", uc.config.MaxRetries),
	)

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			uc.logger.Info("stopping outbox forwarder")
			return err
		}

		uc.drain(ctx)

		select {
		case <-ctx.Done():
			uc.logger.Info("stopping outbox forwarder")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (uc *OutboxUseCase) drain(ctx context.Context) {
	for ctx.Err() == nil {
		forwarded, err := uc.ForwardPending(ctx)
		if err != nil {
			uc.logger.Error("outbox forwarding pass failed", slog.Any("error", err))
			return
		}
		if uc.config.BatchSize <= 0 || forwarded < uc.config.BatchSize {
			return
		}
	}
}

// ForwardPending locks one batch of pending events and dispatches them oldest
// first, returning how many were dispatched. The pass stops at the first failed
// dispatch so later events never overtake an earlier one; the failure is recorded
// on the event and is not returned as an error.
func (uc *OutboxUseCase) ForwardPending(ctx context.Context) (int, error) {
	forwarded := 0
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		forwarded = 0

		events, err := uc.outboxRepo.GetPendingEvents(ctx, uc.config.BatchSize)
		if err != nil {
			return err
		}

		for _, event := range events {
			if dispatchErr := uc.eventProcessor.Process(ctx, event); dispatchErr != nil {
				return uc.recordFailure(ctx, event, dispatchErr)
			}

			event.MarkProcessed(uc.now())
			if err := uc.outboxRepo.Update(ctx, event); err != nil {
				return err
			}
			forwarded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if forwarded > 0 {
		uc.logger.Debug("forwarded outbox events", slog.Int("count", forwarded))
	}
	return forwarded, nil
}

func (uc *OutboxUseCase) recordFailure(ctx context.Context, event *domain.OutboxEvent, cause error) error {
	exhausted := event.RecordFailure(cause, uc.config.MaxRetries, uc.now())

	attrs := []any{
		slog.String("event_id", event.ID.String()),
		slog.String("routing_key", event.EventType),
		slog.Int("retries", event.Retries),
		slog.Any("error", cause),
	}
	if exhausted {
		uc.logger.Error("outbox event exhausted its retries, parking as failed", attrs...)
	} else {
		uc.logger.Warn("outbox dispatch failed, will retry", attrs...)
	}

	return uc.outboxRepo.Update(ctx, event)
}

// CleanProcessed deletes processed events older than days. With dryRun it only
// counts them.
func (uc *OutboxUseCase) CleanProcessed(ctx context.Context, days int, dryRun bool) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("days must not be negative, got: %d", days)
	}

	before := uc.now().AddDate(0, 0, -days)
	if dryRun {
		return uc.outboxRepo.CountProcessedBefore(ctx, before)
	}
	return uc.outboxRepo.DeleteProcessedBefore(ctx, before)
}

// Dispatcher sends a message to the transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg domain.Message) error
}

// DispatchingEventProcessor forwards outbox events through a Dispatcher.
type DispatchingEventProcessor struct {
	dispatcher Dispatcher
}

// NewDispatchingEventProcessor creates a new DispatchingEventProcessor
func NewDispatchingEventProcessor(dispatcher Dispatcher) *DispatchingEventProcessor {
	return &DispatchingEventProcessor{dispatcher: dispatcher}
}

// Process dispatches the message stored in event.
func (p *DispatchingEventProcessor) Process(ctx context.Context, event *domain.OutboxEvent) error {
	return p.dispatcher.Dispatch(ctx, event.Message())
}
