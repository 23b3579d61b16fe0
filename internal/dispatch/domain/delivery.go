package domain

import "time"

// Delivery statuses. A delivery record is the audit trail of one assignment;
// records are never deleted, a failed one is superseded on re-assignment.
const (
	DeliveryStatusAssigned  = "assigned"
	DeliveryStatusPickedUp  = "picked_up"
	DeliveryStatusOnTheWay  = "on_the_way"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
)

// Delivery is created atomically with the order's transition into
// assigned_to_rider and mutated only by rider status updates.
type Delivery struct {
	ID          string     `json:"id" db:"id"`
	OrderID     string     `json:"order_id" db:"order_id"`
	RiderID     string     `json:"rider_id" db:"rider_id"`
	Status      string     `json:"status" db:"status"`
	Notes       string     `json:"notes" db:"notes"`
	AssignedAt  time.Time  `json:"assigned_at" db:"assigned_at"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty" db:"picked_up_at"`
	OnTheWayAt  *time.Time `json:"on_the_way_at,omitempty" db:"on_the_way_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
}

// Active reports whether the delivery is still in flight.
func (d *Delivery) Active() bool {
	switch d.Status {
	case DeliveryStatusAssigned, DeliveryStatusPickedUp, DeliveryStatusOnTheWay:
		return true
	}
	return false
}

// deliveryNext maps each delivery status to its allowed successors.
var deliveryNext = map[string][]string{
	DeliveryStatusAssigned:  {DeliveryStatusPickedUp, DeliveryStatusFailed},
	DeliveryStatusPickedUp:  {DeliveryStatusOnTheWay, DeliveryStatusDelivered, DeliveryStatusFailed},
	DeliveryStatusOnTheWay:  {DeliveryStatusDelivered, DeliveryStatusFailed},
	DeliveryStatusDelivered: {},
	DeliveryStatusFailed:    {},
}

// CanTransitionDelivery validates a delivery status change.
func CanTransitionDelivery(from, to string) bool {
	for _, s := range deliveryNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderStatusFor maps a delivery status onto the order status it implies.
func OrderStatusFor(deliveryStatus string) string {
	switch deliveryStatus {
	case DeliveryStatusPickedUp:
		return OrderStatusPickedUp
	case DeliveryStatusOnTheWay:
		return OrderStatusOnTheWay
	case DeliveryStatusDelivered:
		return OrderStatusDelivered
	case DeliveryStatusFailed:
		return OrderStatusCancelled
	default:
		return OrderStatusAssigned
	}
}
