package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLoggerWithWriter("dispatch-test", io.Discard)
}

func dispatchableOrder(id string) *domain.Order {
	return &domain.Order{
		ID:          id,
		OrderNumber: "ORD-" + id,
		BuyerID:     "buyer-1",
		SellerID:    "seller-1",
		Status:      domain.OrderStatusReady,
		CreatedAt:   time.Now(),
	}
}

func onlineRider(id string) *domain.RiderAvailability {
	return &domain.RiderAvailability{
		RiderID:     id,
		IsOnline:    true,
		IsAvailable: true,
		LastSeen:    time.Now(),
	}
}

func TestAcceptOrderSingleRider(t *testing.T) {
	orders := newFakeOrderRepo(dispatchableOrder("o1"))
	availability := newFakeAvailabilityRepo(onlineRider("r1"))
	notifier := newFakeNotifier()
	publisher := &fakePublisher{}
	svc := NewAcceptOrderService(orders, availability, notifier, publisher, NewTracker(), testLogger())

	result, err := svc.Execute(context.Background(), in.AcceptOrderInput{OrderID: "o1", RiderID: "r1"})
	require.NoError(t, err)
	require.True(t, result.Accepted)
	assert.Empty(t, result.Reason)
	require.NotNil(t, result.Order)
	require.NotNil(t, result.Delivery)
	assert.Equal(t, domain.OrderStatusAssigned, result.Order.Status)
	assert.Equal(t, domain.DeliveryStatusAssigned, result.Delivery.Status)
	assert.Equal(t, "r1", result.Delivery.RiderID)

	// Winner marked busy.
	assert.Equal(t, []string{"r1:o1"}, availability.busyCalls)

	// Fanout reached every party.
	assert.Contains(t, notifier.eventsFor("rider:r1"), domain.EventOrderAccepted)
	assert.Contains(t, notifier.eventsFor("available_orders"), domain.EventOrderTaken)
	assert.Contains(t, notifier.eventsFor("seller:seller-1"), domain.EventRiderAssigned)
	assert.Contains(t, notifier.eventsFor("buyer:buyer-1"), domain.EventOrderStatusUpdated)

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeOrderAssigned, events[0].EventType)
	assert.Equal(t, "r1", events[0].RiderID)
}

// The core guarantee: N riders racing for one order produce exactly one
// winner, and every loser gets already_taken, never an error.
func TestAcceptOrderConcurrentAtMostOneWinner(t *testing.T) {
	const riders = 32

	orders := newFakeOrderRepo(dispatchableOrder("o1"))
	var available []*domain.RiderAvailability
	for i := 0; i < riders; i++ {
		available = append(available, onlineRider(fmt.Sprintf("r%d", i)))
	}
	availability := newFakeAvailabilityRepo(available...)
	notifier := newFakeNotifier()
	publisher := &fakePublisher{}
	svc := NewAcceptOrderService(orders, availability, notifier, publisher, NewTracker(), testLogger())

	var wg sync.WaitGroup
	results := make([]*in.AcceptOrderOutput, riders)
	errs := make([]error, riders)

	start := make(chan struct{})
	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.Execute(context.Background(), in.AcceptOrderInput{
				OrderID: "o1",
				RiderID: fmt.Sprintf("r%d", i),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for i := 0; i < riders; i++ {
		require.NoError(t, errs[i], "rider %d", i)
		require.NotNil(t, results[i], "rider %d", i)
		if results[i].Accepted {
			winners++
		} else {
			assert.Equal(t, in.ReasonAlreadyTaken, results[i].Reason, "rider %d", i)
		}
	}
	assert.Equal(t, 1, winners)

	// Exactly one rider went busy, one assignment event out.
	assert.Len(t, availability.busyCalls, 1)
	assert.Len(t, publisher.published(), 1)
}

// When the order had been offered to several riders, the win is logged as
// contended so operators can see how hot the dispatch pool runs.
func TestAcceptOrderContendedWinLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLoggerWithWriter("dispatch-test", &buf)

	orders := newFakeOrderRepo(dispatchableOrder("o1"))
	availability := newFakeAvailabilityRepo(onlineRider("r1"), onlineRider("r2"))
	tracker := NewTracker()
	tracker.Offered("o1", []string{"r1", "r2"})
	svc := NewAcceptOrderService(orders, availability, newFakeNotifier(), &fakePublisher{}, tracker, log)

	result, err := svc.Execute(context.Background(), in.AcceptOrderInput{OrderID: "o1", RiderID: "r1"})
	require.NoError(t, err)
	require.True(t, result.Accepted)
	assert.Contains(t, buf.String(), "accept_order_contended")
}

// A solo offer settles quietly.
func TestAcceptOrderUncontendedWinNotLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLoggerWithWriter("dispatch-test", &buf)

	orders := newFakeOrderRepo(dispatchableOrder("o1"))
	availability := newFakeAvailabilityRepo(onlineRider("r1"))
	tracker := NewTracker()
	tracker.Offered("o1", []string{"r1"})
	svc := NewAcceptOrderService(orders, availability, newFakeNotifier(), &fakePublisher{}, tracker, log)

	result, err := svc.Execute(context.Background(), in.AcceptOrderInput{OrderID: "o1", RiderID: "r1"})
	require.NoError(t, err)
	require.True(t, result.Accepted)
	assert.NotContains(t, buf.String(), "accept_order_contended")
}

func TestAcceptOrderUnknownOrder(t *testing.T) {
	orders := newFakeOrderRepo()
	availability := newFakeAvailabilityRepo(onlineRider("r1"))
	svc := NewAcceptOrderService(orders, availability, newFakeNotifier(), &fakePublisher{}, NewTracker(), testLogger())

	result, err := svc.Execute(context.Background(), in.AcceptOrderInput{OrderID: "nope", RiderID: "r1"})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, in.ReasonNotFound, result.Reason)
}

func TestAcceptOrderIneligibleRider(t *testing.T) {
	orders := newFakeOrderRepo(dispatchableOrder("o1"))
	offline := onlineRider("r1")
	offline.IsOnline = false
	availability := newFakeAvailabilityRepo(offline)
	svc := NewAcceptOrderService(orders, availability, newFakeNotifier(), &fakePublisher{}, NewTracker(), testLogger())

	result, err := svc.Execute(context.Background(), in.AcceptOrderInput{OrderID: "o1", RiderID: "r1"})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, in.ReasonNotEligible, result.Reason)

	// Unknown rider is also not eligible.
	result, err = svc.Execute(context.Background(), in.AcceptOrderInput{OrderID: "o1", RiderID: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, in.ReasonNotEligible, result.Reason)
}

// Notification failures after commit must not undo or fail the acceptance.
func TestAcceptOrderNotificationFailureSwallowed(t *testing.T) {
	orders := newFakeOrderRepo(dispatchableOrder("o1"))
	availability := newFakeAvailabilityRepo(onlineRider("r1"))
	notifier := newFakeNotifier()
	notifier.fail["seller:seller-1"] = fmt.Errorf("socket gone")
	publisher := &fakePublisher{err: fmt.Errorf("broker down")}
	svc := NewAcceptOrderService(orders, availability, notifier, publisher, NewTracker(), testLogger())

	result, err := svc.Execute(context.Background(), in.AcceptOrderInput{OrderID: "o1", RiderID: "r1"})
	require.NoError(t, err)
	assert.True(t, result.Accepted)

	// The remaining channels still got their events.
	assert.Contains(t, notifier.eventsFor("rider:r1"), domain.EventOrderAccepted)
	assert.Contains(t, notifier.eventsFor("buyer:buyer-1"), domain.EventOrderStatusUpdated)
}

func TestAcceptOrderSecondAttemptAfterWin(t *testing.T) {
	orders := newFakeOrderRepo(dispatchableOrder("o1"))
	availability := newFakeAvailabilityRepo(onlineRider("r1"), onlineRider("r2"))
	svc := NewAcceptOrderService(orders, availability, newFakeNotifier(), &fakePublisher{}, NewTracker(), testLogger())

	first, err := svc.Execute(context.Background(), in.AcceptOrderInput{OrderID: "o1", RiderID: "r1"})
	require.NoError(t, err)
	require.True(t, first.Accepted)

	second, err := svc.Execute(context.Background(), in.AcceptOrderInput{OrderID: "o1", RiderID: "r2"})
	require.NoError(t, err)
	assert.False(t, second.Accepted)
	assert.Equal(t, in.ReasonAlreadyTaken, second.Reason)
}
