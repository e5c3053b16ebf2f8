package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
	Close() error
}

// TransferStatusChangedEvent is emitted after every successful transfer
// transition.
type TransferStatusChangedEvent struct {
	TransferID     uuid.UUID `json:"transfer_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ActorID        uuid.UUID `json:"actor_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// StockAdjustedEvent is emitted after a pickup decrement or a reception
// increment.
type StockAdjustedEvent struct {
	ChangeID       uuid.UUID `json:"change_id"`
	ReferenceCode  string    `json:"reference_code"`
	Size           string    `json:"size"`
	LocationID     uuid.UUID `json:"location_id"`
	ChangeType     string    `json:"change_type"`
	QuantityBefore int       `json:"quantity_before"`
	QuantityAfter  int       `json:"quantity_after"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// MovementReversedEvent is emitted when a prior inventory change is undone.
type MovementReversedEvent struct {
	ChangeID         uuid.UUID `json:"change_id"`
	OriginalChangeID uuid.UUID `json:"original_change_id"`
	ReferenceCode    string    `json:"reference_code"`
	Size             string    `json:"size"`
	LocationID       uuid.UUID `json:"location_id"`
	ActorID          uuid.UUID `json:"actor_id"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// NoopPublisher discards events. Used in tests and when no broker is
// configured.
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher creates a publisher that logs and drops every event.
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, event interface{}) error {
	p.logger.Debug("event dropped (no broker configured)", zap.Any("event", event))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
