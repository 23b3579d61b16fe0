package domain

import "time"

// Order statuses. The dispatch engine consumes orders from checkout in
// 'pending' and drives them to a terminal state.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusReady     = "ready_for_delivery"
	OrderStatusAssigned  = "assigned_to_rider"
	OrderStatusPickedUp  = "picked_up"
	OrderStatusOnTheWay  = "on_the_way"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order is a single-seller shipment.
type Order struct {
	ID              string     `json:"id" db:"id"`
	OrderNumber     string     `json:"order_number" db:"order_number"`
	BuyerID         string     `json:"buyer_id" db:"buyer_id"`
	SellerID        string     `json:"seller_id" db:"seller_id"`
	RiderID         *string    `json:"rider_id,omitempty" db:"rider_id"`
	Status          string     `json:"status" db:"status"`
	TotalAmount     float64    `json:"total_amount" db:"total_amount"`
	ItemsCount      int        `json:"items_count" db:"items_count"`
	PickupAddress   string     `json:"pickup_address" db:"pickup_address"`
	ShippingAddress string     `json:"shipping_address" db:"shipping_address"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	ReadyAt         *time.Time `json:"ready_at,omitempty" db:"ready_at"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`
	PickedUpAt      *time.Time `json:"picked_up_at,omitempty" db:"picked_up_at"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// OrderSummary is what riders see in an opportunity: enough to decide,
// nothing more.
type OrderSummary struct {
	ID              string    `json:"order_id"`
	OrderNumber     string    `json:"order_number"`
	PickupAddress   string    `json:"pickup_address"`
	ShippingAddress string    `json:"shipping_address"`
	ItemsCount      int       `json:"items_count"`
	TotalAmount     float64   `json:"total_amount"`
	CreatedAt       time.Time `json:"created_at"`
}

func (o *Order) Summary() OrderSummary {
	return OrderSummary{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		PickupAddress:   o.PickupAddress,
		ShippingAddress: o.ShippingAddress,
		ItemsCount:      o.ItemsCount,
		TotalAmount:     o.TotalAmount,
		CreatedAt:       o.CreatedAt,
	}
}

// Dispatchable reports whether the order can still be offered to riders.
func (o *Order) Dispatchable() bool {
	return o.RiderID == nil &&
		(o.Status == OrderStatusConfirmed || o.Status == OrderStatusReady)
}

// Terminal reports whether the order reached a final state.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

// nextStatuses is the order state machine. cancelled is reachable from every
// non-terminal state; restore (admin only) returns cancelled to pending.
var nextStatuses = map[string][]string{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusReady, OrderStatusAssigned, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusAssigned, OrderStatusCancelled},
	OrderStatusAssigned:  {OrderStatusPickedUp, OrderStatusCancelled},
	OrderStatusPickedUp:  {OrderStatusOnTheWay, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusOnTheWay:  {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {OrderStatusPending}, // admin restore
}

// CanTransition validates a status change against the state machine.
func CanTransition(from, to string) bool {
	for _, s := range nextStatuses[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	_, ok := nextStatuses[s]
	return ok
}
