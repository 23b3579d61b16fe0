package in

import (
	"context"

	"pawfect/internal/dispatch/domain"
)

// Accept rejection reasons returned to rider clients. Losing a race is a
// normal negative result, not a server error.
const (
	ReasonAlreadyTaken = "already_taken"
	ReasonNotFound     = "not_found"
	ReasonNotEligible  = "not_eligible"
)

// NotifyOrderReadyUseCase reacts to an order becoming eligible for delivery:
// it fans an opportunity out to every eligible rider.
type NotifyOrderReadyUseCase interface {
	Execute(ctx context.Context, input NotifyOrderReadyInput) (*NotifyOrderReadyOutput, error)
}

type NotifyOrderReadyInput struct {
	OrderID string
}

type NotifyOrderReadyOutput struct {
	OrderID        string
	NotifiedRiders int
}

// AcceptOrderUseCase arbitrates concurrent accept attempts into exactly one
// winner.
type AcceptOrderUseCase interface {
	Execute(ctx context.Context, input AcceptOrderInput) (*AcceptOrderOutput, error)
}

type AcceptOrderInput struct {
	OrderID string
	RiderID string
}

type AcceptOrderOutput struct {
	Accepted bool             `json:"accepted"`
	Reason   string           `json:"reason,omitempty"`
	Order    *domain.Order    `json:"order,omitempty"`
	Delivery *domain.Delivery `json:"delivery,omitempty"`
}

// ManualAssignUseCase is the seller/admin fallback path: same atomic guard,
// no availability-eligibility check.
type ManualAssignUseCase interface {
	Execute(ctx context.Context, input ManualAssignInput) (*ManualAssignOutput, error)
}

type ManualAssignInput struct {
	OrderID string
	RiderID string
	Actor   string // user id of the seller/admin performing the assignment
	Notes   string

	// Force allows taking the order away from a rider who already holds it.
	// Admin override only; without it an assigned order is rejected.
	Force bool
}

type ManualAssignOutput struct {
	Order    *domain.Order    `json:"order"`
	Delivery *domain.Delivery `json:"delivery"`
}

// HeartbeatUseCase upserts rider presence.
type HeartbeatUseCase interface {
	Execute(ctx context.Context, input HeartbeatInput) error
}

type HeartbeatInput struct {
	RiderID  string
	Online   bool
	Location *domain.Location
}

// SetAvailabilityUseCase toggles a rider's explicit availability flag.
type SetAvailabilityUseCase interface {
	Execute(ctx context.Context, input SetAvailabilityInput) error
}

type SetAvailabilityInput struct {
	RiderID   string
	Available bool
}

// ListAvailableOrdersUseCase is the pull query for newly-online riders.
type ListAvailableOrdersUseCase interface {
	Execute(ctx context.Context, input ListAvailableOrdersInput) ([]domain.OrderSummary, error)
}

type ListAvailableOrdersInput struct {
	RiderID string
	Limit   int
}

// UpdateDeliveryStatusUseCase advances a rider's active delivery
// (picked_up, on_the_way, delivered, failed) and mirrors the change onto the
// order.
type UpdateDeliveryStatusUseCase interface {
	Execute(ctx context.Context, input UpdateDeliveryStatusInput) (*UpdateDeliveryStatusOutput, error)
}

type UpdateDeliveryStatusInput struct {
	OrderID string
	RiderID string
	Status  string
	Notes   string
}

type UpdateDeliveryStatusOutput struct {
	Delivery *domain.Delivery `json:"delivery"`
	Order    *domain.Order    `json:"order"`
}

// TransitionOrderUseCase is the seller/admin order lifecycle path: confirm,
// mark ready, cancel, restore.
type TransitionOrderUseCase interface {
	Execute(ctx context.Context, input TransitionOrderInput) (*domain.Order, error)
}

type TransitionOrderInput struct {
	OrderID   string
	NewStatus string
	Actor     string
}

// RiderDeliveriesUseCase returns a rider's current delivery and history.
type RiderDeliveriesUseCase interface {
	Current(ctx context.Context, riderID string) (*domain.Delivery, error)
	History(ctx context.Context, riderID string, limit int) ([]domain.Delivery, error)
}
