// Package domain defines outbound messages and their durable outbox representation.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is an outbound event ready for a transport: the event id doubles as the
// transport message id so consumers can deduplicate.
type Message struct {
	ID         uuid.UUID
	RoutingKey string
	Payload    []byte
}

// NewMessage marshals v as JSON under the given event id and routing key.
func NewMessage(eventID, routingKey string, v any) (Message, error) {
	id, err := uuid.Parse(eventID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid event id %q: %w", eventID, err)
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal event %s: %w", eventID, err)
	}

	return Message{ID: id, RoutingKey: routingKey, Payload: payload}, nil
}

// OutboxEventStatus represents the status of an outbox event
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

// OutboxEvent is a Message persisted in the same transaction as the state change
// that produced it. EventType holds the routing key.
type OutboxEvent struct {
	ID          uuid.UUID
	EventType   string
	Payload     string
	Status      OutboxEventStatus
	Retries     int
	LastError   *string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOutboxEvent wraps msg in a pending outbox event.
func NewOutboxEvent(msg Message) *OutboxEvent {
	now := time.Now().UTC()
	return &OutboxEvent{
		ID:        msg.ID,
		EventType: msg.RoutingKey,
		Payload:   string(msg.Payload),
		Status:    OutboxEventStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Message returns the transport message stored in the event.
func (e *OutboxEvent) Message() Message {
	return Message{ID: e.ID, RoutingKey: e.EventType, Payload: []byte(e.Payload)}
}

// MarkProcessed records a successful dispatch at now.
func (e *OutboxEvent) MarkProcessed(now time.Time) {
	e.Status = OutboxEventStatusProcessed
	e.ProcessedAt = &now
	e.LastError = nil
	e.UpdatedAt = now
}

// RecordFailure counts a failed dispatch attempt and reports whether the event
// has run out of attempts. An exhausted event is parked as failed.
func (e *OutboxEvent) RecordFailure(cause error, maxRetries int, now time.Time) bool {
	e.Retries++
	msg := cause.Error()
	e.LastError = &msg
	e.UpdatedAt = now
	if maxRetries > 0 && e.Retries >= maxRetries {
		e.Status = OutboxEventStatusFailed
		return true
	}
	return false
}
