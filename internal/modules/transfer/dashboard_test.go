package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tustockya/tustockya-backend/internal/cache"
)

func TestAttentionNeeded(t *testing.T) {
	at := time.Now().UTC()
	recent := at.Add(-5 * time.Minute)
	stale := at.Add(-45 * time.Minute)
	veryStale := at.Add(-3 * time.Hour)

	transfers := []*TransferRequest{
		{ID: uuid.New(), Status: StatusPending, Purpose: PurposeClientPresent, RequestedAt: stale},
		{ID: uuid.New(), Status: StatusPending, Purpose: PurposeClientPresent, RequestedAt: recent},
		{ID: uuid.New(), Status: StatusPending, Purpose: PurposeRestock, RequestedAt: veryStale},
		{ID: uuid.New(), Status: StatusDelivered, DeliveredAt: &veryStale},
		{ID: uuid.New(), Status: StatusDelivered, DeliveredAt: &recent},
		{ID: uuid.New(), Status: StatusDeliveryFailed, UpdatedAt: recent},
	}

	items := attentionNeeded(transfers, at)
	require.Len(t, items, 3)

	reasons := make(map[string]int)
	for _, item := range items {
		reasons[item.Reason]++
	}
	assert.Equal(t, 1, reasons["client waiting, request unaccepted"])
	assert.Equal(t, 1, reasons["delivered but reception unconfirmed"])
	assert.Equal(t, 1, reasons["delivery failed, stock reversal pending"])
}

func TestSummarize(t *testing.T) {
	transfers := []*TransferRequest{
		{Status: StatusPending},
		{Status: StatusPending},
		{Status: StatusInTransit},
		{Status: StatusDeliveryFailed},
	}
	s := summarize(transfers)
	assert.Equal(t, 2, s.Pending)
	assert.Equal(t, 1, s.InTransit)
	assert.Equal(t, 1, s.DeliveryFailed)
	assert.Equal(t, 0, s.Completed)
}

func TestDashboardCaching(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	f.create(t, 2)

	c := cache.NewInMemoryCache()
	board := NewDashboardService(f.repo, stubAssignments{ids: []uuid.UUID{f.bodega}},
		c, time.Minute, zap.NewNop())

	first, err := board.ForActor(ctx, f.keeper)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Summary.Pending)

	// A second request inside the TTL is served from the cache and does not
	// observe new transfers.
	f.create(t, 1)
	second, err := board.ForActor(ctx, f.keeper)
	require.NoError(t, err)
	assert.Equal(t, first.GeneratedAt.Unix(), second.GeneratedAt.Unix())
	assert.Equal(t, 1, second.Summary.Pending)
}
