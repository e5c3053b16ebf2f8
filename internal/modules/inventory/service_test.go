package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tustockya/tustockya-backend/internal/events"
	"github.com/tustockya/tustockya-backend/internal/modules/user"
	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

func newTestService(quantity int) (Service, *MemoryLedger, uuid.UUID) {
	ledger, location := seedLedger(quantity)
	svc := NewService(ledger, events.NewNoopPublisher(nil), zap.NewNop())
	return svc, ledger, location
}

func TestCheckAvailability(t *testing.T) {
	svc, _, location := newTestService(4)
	ctx := context.Background()

	a, err := svc.CheckAvailability(ctx, "NK-AF1-001", "42", location)
	require.NoError(t, err)
	assert.True(t, a.Available)
	assert.Equal(t, 4, a.PhysicalStock)

	// Unknown variants report zero stock rather than an error.
	a, err = svc.CheckAvailability(ctx, "NK-AF1-001", "43", location)
	require.NoError(t, err)
	assert.False(t, a.Available)
	assert.Equal(t, 0, a.PhysicalStock)
}

func TestReverseMovementRequiresAdmin(t *testing.T) {
	svc, ledger, location := newTestService(5)
	ctx := context.Background()

	change, err := ledger.Decrement(ctx, MovementParams{
		ReferenceCode: "NK-AF1-001", Size: "42", LocationID: location,
		Quantity: 2, ActorID: uuid.New(),
	})
	require.NoError(t, err)

	courier := user.Actor{ID: uuid.New(), Role: user.RoleCourier, LocationID: location}
	_, err = svc.ReverseMovement(ctx, courier, change.ID, "not my call")
	assert.True(t, apperrors.HasCode(err, "Forbidden"))

	admin := user.Actor{ID: uuid.New(), Role: user.RoleAdmin, LocationID: location}
	_, err = svc.ReverseMovement(ctx, admin, change.ID, "")
	assert.True(t, apperrors.HasCode(err, "ValidationError"))

	reversal, err := svc.ReverseMovement(ctx, admin, change.ID, "delivery failed")
	require.NoError(t, err)
	assert.Equal(t, ChangeReversal, reversal.ChangeType)

	v, err := ledger.GetVariant(ctx, "NK-AF1-001", "42", location)
	require.NoError(t, err)
	assert.Equal(t, 5, v.Quantity)
}

func TestMovementHistory(t *testing.T) {
	svc, ledger, location := newTestService(5)
	ctx := context.Background()

	_, err := ledger.Decrement(ctx, MovementParams{
		ReferenceCode: "NK-AF1-001", Size: "42", LocationID: location,
		Quantity: 1, ActorID: uuid.New(),
	})
	require.NoError(t, err)

	history, err := svc.MovementHistory(ctx, "NK-AF1-001", "42", location)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
