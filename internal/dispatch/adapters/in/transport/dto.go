package transport

import "pawfect/internal/dispatch/domain"

type acceptOrderResponse struct {
	Accepted bool             `json:"accepted"`
	Reason   string           `json:"reason,omitempty"`
	Order    *domain.Order    `json:"order,omitempty"`
	Delivery *domain.Delivery `json:"delivery,omitempty"`
}

type assignRiderRequest struct {
	RiderID string `json:"rider_id"`
	Notes   string `json:"notes,omitempty"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

type heartbeatRequest struct {
	Location *domain.Location `json:"location,omitempty"`
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

type deliveryStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type availableOrdersResponse struct {
	Orders []domain.OrderSummary `json:"orders"`
}

type deliveriesResponse struct {
	Deliveries []domain.Delivery `json:"deliveries"`
}
