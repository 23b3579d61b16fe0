package domain

// WebSocket event names pushed to client sessions. The names are part of the
// client protocol and must not change without a client release.
const (
	EventNewDeliveryOpportunity = "new_delivery_opportunity"
	EventOrderAccepted          = "order_accepted"
	EventAcceptOrderError       = "accept_order_error"
	EventOrderTaken             = "order_taken"
	EventRiderAssigned          = "rider_assigned"
	EventOrderStatusUpdated     = "order_status_updated"
	EventDeliveryStatusUpdate   = "delivery_status_update"
)

// AMQP event types published to the order topic exchange for the
// order-management collaborator (stock restore, ledger and reporting).
const (
	EventTypeOrderReady     = "ORDER_READY"
	EventTypeOrderAssigned  = "ORDER_ASSIGNED"
	EventTypeOrderDelivered = "ORDER_DELIVERED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
)

// DispatchEvent is the envelope published to RabbitMQ.
type DispatchEvent struct {
	OrderID   string         `json:"order_id"`
	EventType string         `json:"event_type"`
	RiderID   string         `json:"rider_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}
