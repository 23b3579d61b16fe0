package usecase

import (
	"context"
	"fmt"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
)

// transitionOrderService drives the seller/admin lifecycle moves: confirm,
// mark ready for delivery, cancel, restore. Assignment goes through its own
// use cases and never through here.
type transitionOrderService struct {
	orders       out.OrderRepository
	deliveries   out.DeliveryRepository
	availability out.AvailabilityRepository
	notifier     out.Notifier
	events       out.EventPublisher
	notifyReady  in.NotifyOrderReadyUseCase
	tracker      *Tracker
	log          *logger.Logger
}

func NewTransitionOrderService(
	orders out.OrderRepository,
	deliveries out.DeliveryRepository,
	availability out.AvailabilityRepository,
	notifier out.Notifier,
	events out.EventPublisher,
	notifyReady in.NotifyOrderReadyUseCase,
	tracker *Tracker,
	log *logger.Logger,
) in.TransitionOrderUseCase {
	return &transitionOrderService{
		orders:       orders,
		deliveries:   deliveries,
		availability: availability,
		notifier:     notifier,
		events:       events,
		notifyReady:  notifyReady,
		tracker:      tracker,
		log:          log,
	}
}

func (s *transitionOrderService) Execute(ctx context.Context, input in.TransitionOrderInput) (*domain.Order, error) {
	if !domain.ValidStatus(input.NewStatus) {
		return nil, domain.ErrInvalidTransition
	}
	if input.NewStatus == domain.OrderStatusAssigned {
		return nil, domain.ErrInvalidTransition
	}

	order, err := s.orders.TransitionStatus(ctx, input.OrderID, input.NewStatus, input.Actor)
	if err != nil {
		return nil, fmt.Errorf("transition order: %w", err)
	}

	s.log.Info(logger.Entry{
		Action:  "order_transitioned",
		Message: "order status changed",
		OrderID: order.ID,
		Additional: map[string]any{
			"status": order.Status,
			"actor":  input.Actor,
		},
	})

	switch order.Status {
	case domain.OrderStatusConfirmed, domain.OrderStatusReady:
		if _, err := s.notifyReady.Execute(ctx, in.NotifyOrderReadyInput{OrderID: order.ID}); err != nil {
			s.log.Warn(logger.Entry{
				Action:  "notify_failed",
				Message: "opportunity fanout after transition failed",
				OrderID: order.ID,
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
	case domain.OrderStatusCancelled:
		s.onCancelled(ctx, order, input.Actor)
	}

	if err := s.notifier.NotifyBuyer(ctx, order.BuyerID, domain.EventOrderStatusUpdated, map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
	}); err != nil {
		s.log.Warn(logger.Entry{
			Action:     "notify_failed",
			Message:    "notification delivery failed",
			OrderID:    order.ID,
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"target": "buyer"},
		})
	}

	return order, nil
}

// onCancelled unwinds an in-flight assignment: the delivery record fails,
// the rider goes free, subscribers drop the opportunity. The cancelled order
// no longer names its rider, so the live delivery record is the source.
func (s *transitionOrderService) onCancelled(ctx context.Context, order *domain.Order, actor string) {
	s.tracker.Drop(order.ID)

	if active, err := s.deliveries.FindActiveByOrderID(ctx, order.ID); err == nil {
		riderID := active.RiderID
		if _, err := s.deliveries.UpdateStatus(ctx, order.ID, riderID, domain.DeliveryStatusFailed, "order cancelled"); err != nil {
			s.log.Error(logger.Entry{
				Action:  "delivery_fail_failed",
				Message: "could not fail delivery on cancel",
				OrderID: order.ID,
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
		if err := s.availability.MarkFree(ctx, riderID); err != nil {
			s.log.Error(logger.Entry{
				Action:  "mark_free_failed",
				Message: "could not free rider on cancel",
				OrderID: order.ID,
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
		if err := s.notifier.NotifyRider(ctx, riderID, domain.EventOrderTaken, map[string]any{
			"order_id": order.ID,
			"reason":   "cancelled",
		}); err != nil {
			s.log.Warn(logger.Entry{
				Action:     "notify_failed",
				Message:    "notification delivery failed",
				OrderID:    order.ID,
				Error:      &logger.ErrObj{Msg: err.Error()},
				Additional: map[string]any{"target": "rider"},
			})
		}
	}

	if err := s.notifier.BroadcastAvailableOrders(ctx, domain.EventOrderTaken, map[string]any{
		"order_id": order.ID,
		"reason":   "cancelled",
	}); err != nil {
		s.log.Warn(logger.Entry{
			Action:     "notify_failed",
			Message:    "notification delivery failed",
			OrderID:    order.ID,
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"target": "available_orders"},
		})
	}

	if err := s.events.PublishDispatchEvent(ctx, domain.DispatchEvent{
		OrderID:   order.ID,
		EventType: domain.EventTypeOrderCancelled,
		Data:      map[string]any{"actor": actor},
	}); err != nil {
		s.log.Error(logger.Entry{
			Action:  "publish_event_failed",
			Message: "could not publish ORDER_CANCELLED",
			OrderID: order.ID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
}
