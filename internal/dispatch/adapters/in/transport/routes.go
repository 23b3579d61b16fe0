package transport

import "net/http"

// Routes builds the service mux. wsHandler serves the session socket; it
// does its own token handshake inside the connection.
func (h *Handler) Routes(wsPath string, wsHandler http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET "+wsPath, wsHandler)

	mux.HandleFunc("GET /api/v1/orders/available",
		h.requireRole(h.handleListAvailable, RoleRider))
	mux.HandleFunc("POST /api/v1/orders/{id}/accept",
		h.requireRole(h.handleAcceptOrder, RoleRider))
	mux.HandleFunc("POST /api/v1/orders/{id}/assign",
		h.requireRole(h.handleAssignRider, RoleSeller))
	mux.HandleFunc("PATCH /api/v1/orders/{id}/status",
		h.requireRole(h.handleTransitionOrder, RoleSeller))

	mux.HandleFunc("POST /api/v1/deliveries/{order_id}/status",
		h.requireRole(h.handleUpdateDeliveryStatus, RoleRider))
	mux.HandleFunc("GET /api/v1/deliveries/current",
		h.requireRole(h.handleCurrentDelivery, RoleRider))
	mux.HandleFunc("GET /api/v1/deliveries/history",
		h.requireRole(h.handleDeliveryHistory, RoleRider))

	mux.HandleFunc("POST /api/v1/riders/heartbeat",
		h.requireRole(h.handleHeartbeat, RoleRider))
	mux.HandleFunc("POST /api/v1/riders/availability",
		h.requireRole(h.handleSetAvailability, RoleRider))

	return withRequestID(mux)
}
