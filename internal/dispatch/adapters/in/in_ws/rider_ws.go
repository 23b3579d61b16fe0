package in_ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
	"pawfect/internal/shared/ws"
)

// Client message types. Mirrored by the mobile rider app.
const (
	MsgHeartbeat       = "heartbeat"
	MsgAcceptOrder     = "accept_order"
	MsgUpdateStatus    = "update_status"
	MsgSetAvailability = "set_availability"
	MsgGetOrders       = "get_available_orders"
)

const handlerTimeout = 10 * time.Second

type heartbeatMsg struct {
	Location *domain.Location `json:"location,omitempty"`
}

type acceptOrderMsg struct {
	OrderID string `json:"order_id"`
}

type updateStatusMsg struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Notes   string `json:"notes,omitempty"`
}

type setAvailabilityMsg struct {
	Available bool `json:"available"`
}

// RiderWSHandler translates rider socket messages into use case calls and
// writes the direct responses back on the same connection. Fanout to other
// parties rides on the use cases themselves.
type RiderWSHandler struct {
	accept       in.AcceptOrderUseCase
	heartbeat    in.HeartbeatUseCase
	updateStatus in.UpdateDeliveryStatusUseCase
	availability in.SetAvailabilityUseCase
	listOrders   in.ListAvailableOrdersUseCase
	log          *logger.Logger
}

func NewRiderWSHandler(
	accept in.AcceptOrderUseCase,
	heartbeat in.HeartbeatUseCase,
	updateStatus in.UpdateDeliveryStatusUseCase,
	availability in.SetAvailabilityUseCase,
	listOrders in.ListAvailableOrdersUseCase,
	log *logger.Logger,
) *RiderWSHandler {
	return &RiderWSHandler{
		accept:       accept,
		heartbeat:    heartbeat,
		updateStatus: updateStatus,
		availability: availability,
		listOrders:   listOrders,
		log:          log,
	}
}

// Handle is plugged into the hub as its MessageHandler.
func (h *RiderWSHandler) Handle(client *ws.Client, messageType string, data json.RawMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch messageType {
	case MsgHeartbeat:
		return h.onHeartbeat(ctx, client, data)
	case MsgAcceptOrder:
		return h.onAcceptOrder(ctx, client, data)
	case MsgUpdateStatus:
		return h.onUpdateStatus(ctx, client, data)
	case MsgSetAvailability:
		return h.onSetAvailability(ctx, client, data)
	case MsgGetOrders:
		return h.onGetOrders(ctx, client)
	default:
		return fmt.Errorf("unknown message type %q", messageType)
	}
}

// OnPresence is the hub's presence callback: connecting marks a rider
// online, the last connection closing marks them offline. Only riders have
// presence-driven availability.
func (h *RiderWSHandler) OnPresence(userID, role string, online bool) {
	if role != "RIDER" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := h.heartbeat.Execute(ctx, in.HeartbeatInput{RiderID: userID, Online: online}); err != nil {
		h.log.Error(logger.Entry{
			Action:     "presence_heartbeat_failed",
			Message:    "could not record presence change",
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"rider_id": userID, "online": online},
		})
	}
}

func (h *RiderWSHandler) onHeartbeat(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var msg heartbeatMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("heartbeat payload: %w", err)
		}
	}
	return h.heartbeat.Execute(ctx, in.HeartbeatInput{
		RiderID:  client.UserID,
		Online:   true,
		Location: msg.Location,
	})
}

func (h *RiderWSHandler) onAcceptOrder(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var msg acceptOrderMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("accept_order payload: %w", err)
	}
	if msg.OrderID == "" {
		return client.Send(domain.EventAcceptOrderError, map[string]any{
			"reason": "order_id required",
		})
	}

	result, err := h.accept.Execute(ctx, in.AcceptOrderInput{
		OrderID: msg.OrderID,
		RiderID: client.UserID,
	})
	if err != nil {
		// Transient failure: tell the rider to retry, nothing was assigned.
		h.log.Error(logger.Entry{
			Action:  "accept_order_failed",
			Message: "accept attempt failed",
			OrderID: msg.OrderID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return client.Send(domain.EventAcceptOrderError, map[string]any{
			"order_id": msg.OrderID,
			"reason":   "internal_error",
			"retry":    true,
		})
	}
	if !result.Accepted {
		return client.Send(domain.EventAcceptOrderError, map[string]any{
			"order_id": msg.OrderID,
			"reason":   result.Reason,
		})
	}
	// The winner already got order_accepted through the fanout; nothing more
	// to send here.
	return nil
}

func (h *RiderWSHandler) onUpdateStatus(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var msg updateStatusMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("update_status payload: %w", err)
	}

	result, err := h.updateStatus.Execute(ctx, in.UpdateDeliveryStatusInput{
		OrderID: msg.OrderID,
		RiderID: client.UserID,
		Status:  msg.Status,
		Notes:   msg.Notes,
	})
	if err != nil {
		return client.Send(domain.EventDeliveryStatusUpdate, map[string]any{
			"order_id": msg.OrderID,
			"ok":       false,
			"error":    err.Error(),
		})
	}
	return client.Send(domain.EventDeliveryStatusUpdate, map[string]any{
		"order_id": result.Order.ID,
		"ok":       true,
		"status":   result.Delivery.Status,
	})
}

func (h *RiderWSHandler) onSetAvailability(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var msg setAvailabilityMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("set_availability payload: %w", err)
	}
	return h.availability.Execute(ctx, in.SetAvailabilityInput{
		RiderID:   client.UserID,
		Available: msg.Available,
	})
}

func (h *RiderWSHandler) onGetOrders(ctx context.Context, client *ws.Client) error {
	summaries, err := h.listOrders.Execute(ctx, in.ListAvailableOrdersInput{RiderID: client.UserID})
	if err != nil {
		return fmt.Errorf("get_available_orders: %w", err)
	}
	return client.Send(domain.EventNewDeliveryOpportunity, map[string]any{
		"orders": summaries,
	})
}
