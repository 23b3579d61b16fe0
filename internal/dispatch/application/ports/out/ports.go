package out

import (
	"context"
	"time"

	"pawfect/internal/dispatch/domain"
)

// OrderRepository owns the orders table and the atomic assignment primitive.
type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (*domain.Order, error)

	// AcceptOrder is the atomic accept: one transaction that locks the order
	// row (bounded wait), verifies it is still dispatchable, assigns the
	// rider and creates the delivery record. Returns ErrOrderAlreadyTaken
	// when the guard fails or the lock cannot be acquired in time, and
	// ErrOrderNotFound when no such order exists.
	AcceptOrder(ctx context.Context, orderID, riderID, actor string) (*domain.Order, *domain.Delivery, error)

	// AssignRider is the seller/admin manual path: same locked update, no
	// eligibility check. Without force the guard requires an unassigned order
	// and an assigned one fails with ErrOrderAlreadyTaken, no matter how
	// recently the assignment landed. With force an existing active delivery
	// is superseded (marked failed) in the same transaction. The returned
	// string is the rider the locked row held before the change, "" when it
	// was unassigned.
	AssignRider(ctx context.Context, orderID, riderID, actor, notes string, force bool) (*domain.Order, *domain.Delivery, string, error)

	// TransitionStatus is the single owner of order status changes outside
	// assignment. It validates against the state machine, stamps the
	// matching timestamp column and appends to the status log.
	TransitionStatus(ctx context.Context, orderID, newStatus, actor string) (*domain.Order, error)

	// ListDispatchable returns unassigned orders riders may still accept,
	// newest first.
	ListDispatchable(ctx context.Context, limit int) ([]domain.Order, error)
}

// DeliveryRepository reads and advances delivery records.
type DeliveryRepository interface {
	FindActiveByOrderID(ctx context.Context, orderID string) (*domain.Delivery, error)
	FindCurrentByRiderID(ctx context.Context, riderID string) (*domain.Delivery, error)
	ListForRider(ctx context.Context, riderID string, limit int) ([]domain.Delivery, error)

	// UpdateStatus advances the active delivery for the order, stamping the
	// per-status timestamp. Fails with ErrNotAssignedRider when riderID does
	// not hold the assignment.
	UpdateStatus(ctx context.Context, orderID, riderID, status, notes string) (*domain.Delivery, error)
}

// AvailabilityRepository owns rider presence. All writes are idempotent
// upserts; a heartbeat after the staleness window is a fresh online
// transition, not an error.
type AvailabilityRepository interface {
	Heartbeat(ctx context.Context, riderID string, online bool, loc *domain.Location) error
	SetAvailable(ctx context.Context, riderID string, available bool) error
	ListEligible(ctx context.Context, staleAfter time.Duration) ([]domain.RiderAvailability, error)
	MarkBusy(ctx context.Context, riderID, orderID string) error
	MarkFree(ctx context.Context, riderID string) error
	FindByRiderID(ctx context.Context, riderID string) (*domain.RiderAvailability, error)
}

// EventPublisher emits dispatch events to the message broker for the
// order-management collaborator.
type EventPublisher interface {
	PublishDispatchEvent(ctx context.Context, event domain.DispatchEvent) error
}

// Notifier fans events out to connected client sessions. Implementations are
// best-effort: a missing subscriber is a no-op, a failed delivery is logged
// and swallowed, never propagated into assignment logic.
type Notifier interface {
	NotifyRider(ctx context.Context, riderID, event string, payload any) error
	NotifySeller(ctx context.Context, sellerID, event string, payload any) error
	NotifyBuyer(ctx context.Context, buyerID, event string, payload any) error
	BroadcastAvailableOrders(ctx context.Context, event string, payload any) error
}
