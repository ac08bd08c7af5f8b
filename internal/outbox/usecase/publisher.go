package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/almacen/catalog/internal/database"
	"github.com/almacen/catalog/internal/outbox/domain"
)

// TransactionalPublisher publishes events so that they never escape a transaction
// that does not commit.
type TransactionalPublisher interface {
	PublishAfterCommit(ctx context.Context, msg domain.Message) error
}

// AfterCommitPublisher dispatches in-process once the transaction in ctx commits.
// Without a transaction it dispatches immediately. Dispatch failures are logged and
// dropped: the committed state is the source of truth, the notification is best effort.
type AfterCommitPublisher struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewAfterCommitPublisher creates a new AfterCommitPublisher
func NewAfterCommitPublisher(dispatcher Dispatcher, logger *slog.Logger) *AfterCommitPublisher {
	return &AfterCommitPublisher{dispatcher: dispatcher, logger: logger}
}

// PublishAfterCommit registers the dispatch as an after-commit hook, or dispatches
// right away when ctx carries no transaction. It always returns nil.
func (p *AfterCommitPublisher) PublishAfterCommit(ctx context.Context, msg domain.Message) error {
	if database.AfterCommit(ctx, func(ctx context.Context) { p.dispatch(ctx, msg) }) {
		return nil
	}

	p.dispatch(ctx, msg)
	return nil
}

func (p *AfterCommitPublisher) dispatch(ctx context.Context, msg domain.Message) {
	if err := p.dispatcher.Dispatch(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			slog.String("event_id", msg.ID.String()),
			slog.String("routing_key", msg.RoutingKey),
			slog.Any("error", err),
		)
		return
	}

	p.logger.Debug("event published",
		slog.String("event_id", msg.ID.String()),
		slog.String("routing_key", msg.RoutingKey),
	)
}

// OutboxPublisher writes the message to the outbox table through the transaction
// in ctx; the forwarder dispatches it later. Insert errors are returned so the
// caller's transaction rolls back.
type OutboxPublisher struct {
	outboxRepo OutboxEventRepository
}

// NewOutboxPublisher creates a new OutboxPublisher
func NewOutboxPublisher(outboxRepo OutboxEventRepository) *OutboxPublisher {
	return &OutboxPublisher{outboxRepo: outboxRepo}
}

// PublishAfterCommit stores msg as a pending outbox event.
func (p *OutboxPublisher) PublishAfterCommit(ctx context.Context, msg domain.Message) error {
	if err := p.outboxRepo.Create(ctx, domain.NewOutboxEvent(msg)); err != nil {
		return fmt.Errorf("failed to enqueue event %s: %w", msg.ID, err)
	}
	return nil
}
