package transport

import (
	"errors"
	"net/http"
	"strconv"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/auth"
	"pawfect/internal/shared/logger"
)

// Handler is the HTTP surface of the dispatch service. The socket carries
// the latency-sensitive rider flow; these endpoints back the seller/admin
// dashboards and serve as the rider app's fallback when the socket is down.
type Handler struct {
	accept       in.AcceptOrderUseCase
	manualAssign in.ManualAssignUseCase
	transition   in.TransitionOrderUseCase
	listOrders   in.ListAvailableOrdersUseCase
	updateStatus in.UpdateDeliveryStatusUseCase
	deliveries   in.RiderDeliveriesUseCase
	heartbeat    in.HeartbeatUseCase
	availability in.SetAvailabilityUseCase
	jwt          *auth.JWTService
	log          *logger.Logger
}

func NewHandler(
	accept in.AcceptOrderUseCase,
	manualAssign in.ManualAssignUseCase,
	transition in.TransitionOrderUseCase,
	listOrders in.ListAvailableOrdersUseCase,
	updateStatus in.UpdateDeliveryStatusUseCase,
	deliveries in.RiderDeliveriesUseCase,
	heartbeat in.HeartbeatUseCase,
	availability in.SetAvailabilityUseCase,
	jwt *auth.JWTService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		accept:       accept,
		manualAssign: manualAssign,
		transition:   transition,
		listOrders:   listOrders,
		updateStatus: updateStatus,
		deliveries:   deliveries,
		heartbeat:    heartbeat,
		availability: availability,
		jwt:          jwt,
		log:          log,
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/v1/orders/available
func (h *Handler) handleListAvailable(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	summaries, err := h.listOrders.Execute(r.Context(), in.ListAvailableOrdersInput{
		RiderID: claims.UserID,
		Limit:   limit,
	})
	if err != nil {
		h.serverError(w, r, "list_available_failed", err)
		return
	}
	if summaries == nil {
		summaries = []domain.OrderSummary{}
	}
	respondJSON(w, http.StatusOK, availableOrdersResponse{Orders: summaries})
}

// POST /api/v1/orders/{id}/accept
func (h *Handler) handleAcceptOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	orderID := r.PathValue("id")

	result, err := h.accept.Execute(r.Context(), in.AcceptOrderInput{
		OrderID: orderID,
		RiderID: claims.UserID,
	})
	if err != nil {
		h.serverError(w, r, "accept_failed", err)
		return
	}

	resp := acceptOrderResponse{
		Accepted: result.Accepted,
		Reason:   result.Reason,
		Order:    result.Order,
		Delivery: result.Delivery,
	}
	if !result.Accepted {
		// Losing the race is a conflict, not a server error.
		status := http.StatusConflict
		if result.Reason == in.ReasonNotFound {
			status = http.StatusNotFound
		}
		respondJSON(w, status, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// POST /api/v1/orders/{id}/assign
func (h *Handler) handleAssignRider(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	orderID := r.PathValue("id")

	var req assignRiderRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RiderID == "" {
		respondError(w, http.StatusBadRequest, "rider_id required")
		return
	}

	result, err := h.manualAssign.Execute(r.Context(), in.ManualAssignInput{
		OrderID: orderID,
		RiderID: req.RiderID,
		Actor:   claims.UserID,
		Notes:   req.Notes,
		// Only admins may take an order away from its current rider.
		Force: claims.Role == RoleAdmin,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			respondError(w, http.StatusNotFound, "order not found or not assignable")
		case errors.Is(err, domain.ErrOrderAlreadyTaken):
			respondError(w, http.StatusConflict, "order already has a rider")
		default:
			h.serverError(w, r, "manual_assign_failed", err)
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// PATCH /api/v1/orders/{id}/status
func (h *Handler) handleTransitionOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	orderID := r.PathValue("id")

	var req transitionRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Restore from cancelled is admin-only.
	if req.Status == domain.OrderStatusPending && claims.Role != RoleAdmin {
		respondError(w, http.StatusForbidden, "restore requires admin")
		return
	}

	order, err := h.transition.Execute(r.Context(), in.TransitionOrderInput{
		OrderID:   orderID,
		NewStatus: req.Status,
		Actor:     claims.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			respondError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrInvalidTransition):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.serverError(w, r, "transition_failed", err)
		}
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/deliveries/{order_id}/status
func (h *Handler) handleUpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	orderID := r.PathValue("order_id")

	var req deliveryStatusRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.updateStatus.Execute(r.Context(), in.UpdateDeliveryStatusInput{
		OrderID: orderID,
		RiderID: claims.UserID,
		Status:  req.Status,
		Notes:   req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDeliveryNotFound):
			respondError(w, http.StatusNotFound, "no active delivery for order")
		case errors.Is(err, domain.ErrNotAssignedRider):
			respondError(w, http.StatusForbidden, "order assigned to different rider")
		case errors.Is(err, domain.ErrInvalidTransition):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.serverError(w, r, "delivery_update_failed", err)
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GET /api/v1/deliveries/current
func (h *Handler) handleCurrentDelivery(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	delivery, err := h.deliveries.Current(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrDeliveryNotFound) {
			respondError(w, http.StatusNotFound, "no active delivery")
			return
		}
		h.serverError(w, r, "current_delivery_failed", err)
		return
	}
	respondJSON(w, http.StatusOK, delivery)
}

// GET /api/v1/deliveries/history
func (h *Handler) handleDeliveryHistory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.deliveries.History(r.Context(), claims.UserID, limit)
	if err != nil {
		h.serverError(w, r, "delivery_history_failed", err)
		return
	}
	if list == nil {
		list = []domain.Delivery{}
	}
	respondJSON(w, http.StatusOK, deliveriesResponse{Deliveries: list})
}

// POST /api/v1/riders/heartbeat
func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var req heartbeatRequest
	if r.ContentLength > 0 {
		if err := readJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if err := h.heartbeat.Execute(r.Context(), in.HeartbeatInput{
		RiderID:  claims.UserID,
		Online:   true,
		Location: req.Location,
	}); err != nil {
		h.serverError(w, r, "heartbeat_failed", err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// POST /api/v1/riders/availability
func (h *Handler) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var req availabilityRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.availability.Execute(r.Context(), in.SetAvailabilityInput{
		RiderID:   claims.UserID,
		Available: req.Available,
	}); err != nil {
		h.serverError(w, r, "set_availability_failed", err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, action string, err error) {
	h.log.Error(logger.Entry{
		Action:    action,
		Message:   "request failed",
		RequestID: requestIDFrom(r),
		Error:     &logger.ErrObj{Msg: err.Error()},
	})
	respondError(w, http.StatusInternalServerError, "internal error")
}
