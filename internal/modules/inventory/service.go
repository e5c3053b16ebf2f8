package inventory

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tustockya/tustockya-backend/internal/events"
	"github.com/tustockya/tustockya-backend/internal/modules/user"
	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

// Service defines the inventory operations exposed outside the ledger:
// availability checks, movement history, and administrative reversals.
type Service interface {
	// CheckAvailability reports the physical stock for a variant triple.
	// A missing variant is reported as zero stock, not an error.
	CheckAvailability(ctx context.Context, referenceCode, size string, locationID uuid.UUID) (*Availability, error)

	// MovementHistory lists the audit records for a variant triple.
	MovementHistory(ctx context.Context, referenceCode, size string, locationID uuid.UUID) ([]*InventoryChange, error)

	// ReverseMovement undoes a prior inventory change. Administrators only;
	// this is how a failed delivery's pickup decrement is restored.
	ReverseMovement(ctx context.Context, actor user.Actor, originalChangeID uuid.UUID, reason string) (*InventoryChange, error)
}

type service struct {
	ledger    Ledger
	publisher events.EventPublisher
	logger    *zap.Logger
}

// NewService creates a new inventory service.
func NewService(ledger Ledger, publisher events.EventPublisher, logger *zap.Logger) Service {
	return &service{ledger: ledger, publisher: publisher, logger: logger}
}

func (s *service) CheckAvailability(ctx context.Context, referenceCode, size string, locationID uuid.UUID) (*Availability, error) {
	a := &Availability{
		ReferenceCode: referenceCode,
		Size:          size,
		LocationID:    locationID,
	}
	v, err := s.ledger.GetVariant(ctx, referenceCode, size, locationID)
	if err != nil {
		if apperrors.HasCode(err, "NotFound") {
			return a, nil
		}
		return nil, err
	}
	a.PhysicalStock = v.Quantity
	a.Available = v.Quantity > 0
	return a, nil
}

func (s *service) MovementHistory(ctx context.Context, referenceCode, size string, locationID uuid.UUID) ([]*InventoryChange, error) {
	return s.ledger.ListChanges(ctx, referenceCode, size, locationID)
}

func (s *service) ReverseMovement(ctx context.Context, actor user.Actor, originalChangeID uuid.UUID, reason string) (*InventoryChange, error) {
	if actor.Role != user.RoleAdmin {
		return nil, apperrors.NewForbidden("only administrators may reverse inventory movements")
	}
	if reason == "" {
		return nil, apperrors.NewValidationError("reason is required", "reason")
	}

	change, err := s.ledger.Reverse(ctx, originalChangeID, actor.ID, reason)
	if err != nil {
		return nil, err
	}

	event := events.MovementReversedEvent{
		ChangeID:         change.ID,
		OriginalChangeID: originalChangeID,
		ReferenceCode:    change.ReferenceCode,
		Size:             change.Size,
		LocationID:       change.LocationID,
		ActorID:          actor.ID,
		OccurredAt:       change.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish movement reversed event",
			zap.String("change_id", change.ID.String()), zap.Error(err))
	}
	return change, nil
}
