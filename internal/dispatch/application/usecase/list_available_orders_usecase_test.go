package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/domain"
)

func TestListAvailableOrdersFiltersTakenOnes(t *testing.T) {
	rid := "r9"
	taken := dispatchableOrder("o2")
	taken.RiderID = &rid
	taken.Status = domain.OrderStatusAssigned
	cancelled := dispatchableOrder("o3")
	cancelled.Status = domain.OrderStatusCancelled

	orders := newFakeOrderRepo(dispatchableOrder("o1"), taken, cancelled)
	tracker := NewTracker()
	svc := NewListAvailableOrdersService(orders, tracker, testLogger())

	summaries, err := svc.Execute(context.Background(), in.ListAvailableOrdersInput{RiderID: "r1"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "o1", summaries[0].ID)

	// Pulled orders count as offered for taken-event bookkeeping.
	assert.True(t, tracker.Settle("o1", "someone-else"))
}

func TestListAvailableOrdersLimitClamped(t *testing.T) {
	orders := newFakeOrderRepo(dispatchableOrder("o1"))
	svc := NewListAvailableOrdersService(orders, NewTracker(), testLogger())

	summaries, err := svc.Execute(context.Background(), in.ListAvailableOrdersInput{RiderID: "r1", Limit: -5})
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestTrackerSettleAndDrop(t *testing.T) {
	tr := NewTracker()
	tr.Offered("o1", []string{"r1", "r2"})

	// Winner among the offered set -> someone else must hear taken.
	assert.True(t, tr.Settle("o1", "r1"))
	// Already settled.
	assert.False(t, tr.Settle("o1", "r1"))

	tr.Offered("o2", []string{"r1"})
	tr.Drop("o2")
	assert.False(t, tr.Settle("o2", "r1"))

	// Sole offeree winning means nobody else to tell.
	tr.Offered("o3", []string{"r1"})
	assert.False(t, tr.Settle("o3", "r1"))
}
