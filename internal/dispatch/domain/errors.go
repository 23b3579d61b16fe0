package domain

import "errors"

var (
	// ErrOrderNotFound: no such order, or it is not in a dispatchable state.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderAlreadyTaken: another rider holds the assignment. Expected and
	// frequent under contention; never an error-level event.
	ErrOrderAlreadyTaken = errors.New("order already taken")

	// ErrRiderNotEligible: the rider is offline, unavailable or stale.
	ErrRiderNotEligible = errors.New("rider not eligible for new orders")

	// ErrRiderNotFound: no availability record for the rider.
	ErrRiderNotFound = errors.New("rider not found")

	// ErrDeliveryNotFound: no active delivery for the order/rider pair.
	ErrDeliveryNotFound = errors.New("delivery not found")

	// ErrNotAssignedRider: the caller does not hold the order's assignment.
	ErrNotAssignedRider = errors.New("order assigned to different rider")

	// ErrInvalidTransition: the status change violates the state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)
