package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusReady, false},
		{OrderStatusConfirmed, OrderStatusReady, true},
		{OrderStatusConfirmed, OrderStatusAssigned, true},
		{OrderStatusReady, OrderStatusAssigned, true},
		{OrderStatusReady, OrderStatusDelivered, false},
		{OrderStatusAssigned, OrderStatusPickedUp, true},
		{OrderStatusAssigned, OrderStatusDelivered, false},
		{OrderStatusPickedUp, OrderStatusOnTheWay, true},
		{OrderStatusPickedUp, OrderStatusDelivered, true},
		{OrderStatusOnTheWay, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, true}, // admin restore
		{OrderStatusCancelled, OrderStatusConfirmed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestCancellableFromEveryNonTerminalState(t *testing.T) {
	nonTerminal := []string{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusReady,
		OrderStatusAssigned, OrderStatusPickedUp, OrderStatusOnTheWay,
	}
	for _, from := range nonTerminal {
		assert.True(t, CanTransition(from, OrderStatusCancelled), "cancel from %s", from)
	}
	assert.False(t, CanTransition(OrderStatusDelivered, OrderStatusCancelled))
}

func TestDispatchable(t *testing.T) {
	rider := "a0b1"
	cases := []struct {
		name  string
		order Order
		want  bool
	}{
		{"confirmed unassigned", Order{Status: OrderStatusConfirmed}, true},
		{"ready unassigned", Order{Status: OrderStatusReady}, true},
		{"pending", Order{Status: OrderStatusPending}, false},
		{"confirmed but assigned", Order{Status: OrderStatusConfirmed, RiderID: &rider}, false},
		{"cancelled", Order{Status: OrderStatusCancelled}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.order.Dispatchable())
		})
	}
}

func TestDeliveryTransitions(t *testing.T) {
	assert.True(t, CanTransitionDelivery(DeliveryStatusAssigned, DeliveryStatusPickedUp))
	assert.True(t, CanTransitionDelivery(DeliveryStatusAssigned, DeliveryStatusFailed))
	assert.True(t, CanTransitionDelivery(DeliveryStatusPickedUp, DeliveryStatusDelivered))
	assert.False(t, CanTransitionDelivery(DeliveryStatusAssigned, DeliveryStatusDelivered))
	assert.False(t, CanTransitionDelivery(DeliveryStatusDelivered, DeliveryStatusFailed))
	assert.False(t, CanTransitionDelivery(DeliveryStatusFailed, DeliveryStatusAssigned))
}

func TestOrderStatusFor(t *testing.T) {
	assert.Equal(t, OrderStatusPickedUp, OrderStatusFor(DeliveryStatusPickedUp))
	assert.Equal(t, OrderStatusOnTheWay, OrderStatusFor(DeliveryStatusOnTheWay))
	assert.Equal(t, OrderStatusDelivered, OrderStatusFor(DeliveryStatusDelivered))
	assert.Equal(t, OrderStatusCancelled, OrderStatusFor(DeliveryStatusFailed))
}

func TestRiderEligible(t *testing.T) {
	now := time.Now()
	stale := 10 * time.Minute
	busy := "some-order"

	cases := []struct {
		name  string
		rider RiderAvailability
		want  bool
	}{
		{"fresh and free", RiderAvailability{IsOnline: true, IsAvailable: true, LastSeen: now.Add(-time.Minute)}, true},
		{"exactly at window edge", RiderAvailability{IsOnline: true, IsAvailable: true, LastSeen: now.Add(-stale)}, true},
		{"stale heartbeat", RiderAvailability{IsOnline: true, IsAvailable: true, LastSeen: now.Add(-stale - time.Second)}, false},
		{"offline", RiderAvailability{IsOnline: false, IsAvailable: true, LastSeen: now}, false},
		{"on break", RiderAvailability{IsOnline: true, IsAvailable: false, LastSeen: now}, false},
		{"already busy", RiderAvailability{IsOnline: true, IsAvailable: true, CurrentOrderID: &busy, LastSeen: now}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.rider.Eligible(now, stale))
		})
	}
}

func TestLocationValid(t *testing.T) {
	assert.True(t, Location{Lat: 43.238949, Lng: 76.889709}.Valid())
	assert.True(t, Location{Lat: -90, Lng: 180}.Valid())
	assert.False(t, Location{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Location{Lat: 0, Lng: -181}.Valid())
}
