package usecase

import (
	"context"
	"fmt"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
)

// updateDeliveryStatusService advances the rider's active delivery and
// mirrors the change onto the order. Terminal statuses free the rider.
type updateDeliveryStatusService struct {
	deliveries   out.DeliveryRepository
	orders       out.OrderRepository
	availability out.AvailabilityRepository
	notifier     out.Notifier
	events       out.EventPublisher
	log          *logger.Logger
}

func NewUpdateDeliveryStatusService(
	deliveries out.DeliveryRepository,
	orders out.OrderRepository,
	availability out.AvailabilityRepository,
	notifier out.Notifier,
	events out.EventPublisher,
	log *logger.Logger,
) in.UpdateDeliveryStatusUseCase {
	return &updateDeliveryStatusService{
		deliveries:   deliveries,
		orders:       orders,
		availability: availability,
		notifier:     notifier,
		events:       events,
		log:          log,
	}
}

func (s *updateDeliveryStatusService) Execute(ctx context.Context, input in.UpdateDeliveryStatusInput) (*in.UpdateDeliveryStatusOutput, error) {
	delivery, err := s.deliveries.UpdateStatus(ctx, input.OrderID, input.RiderID, input.Status, input.Notes)
	if err != nil {
		return nil, fmt.Errorf("update delivery status: %w", err)
	}

	order, err := s.orders.TransitionStatus(ctx, input.OrderID, domain.OrderStatusFor(input.Status), input.RiderID)
	if err != nil {
		// The delivery row already moved; surface the mismatch loudly, the
		// status log keeps enough to reconcile by hand.
		s.log.Error(logger.Entry{
			Action:  "order_mirror_failed",
			Message: "delivery advanced but order transition failed",
			OrderID: input.OrderID,
			Error:   &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{
				"delivery_status": input.Status,
			},
		})
		return nil, fmt.Errorf("update delivery status: mirror order: %w", err)
	}

	s.log.Info(logger.Entry{
		Action:  "delivery_status_updated",
		Message: "delivery advanced",
		OrderID: order.ID,
		Additional: map[string]any{
			"rider_id": input.RiderID,
			"status":   delivery.Status,
		},
	})

	if !delivery.Active() {
		if err := s.availability.MarkFree(ctx, input.RiderID); err != nil {
			s.log.Error(logger.Entry{
				Action:  "mark_free_failed",
				Message: "could not free rider after terminal delivery",
				OrderID: order.ID,
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
	}

	s.fanout(ctx, order, delivery)

	return &in.UpdateDeliveryStatusOutput{Delivery: delivery, Order: order}, nil
}

func (s *updateDeliveryStatusService) fanout(ctx context.Context, order *domain.Order, delivery *domain.Delivery) {
	payload := map[string]any{
		"order_id":        order.ID,
		"order_number":    order.OrderNumber,
		"status":          order.Status,
		"delivery_status": delivery.Status,
	}
	if err := s.notifier.NotifyBuyer(ctx, order.BuyerID, domain.EventDeliveryStatusUpdate, payload); err != nil {
		s.warnNotify(order.ID, "buyer", err)
	}
	if err := s.notifier.NotifySeller(ctx, order.SellerID, domain.EventOrderStatusUpdated, payload); err != nil {
		s.warnNotify(order.ID, "seller", err)
	}

	switch delivery.Status {
	case domain.DeliveryStatusDelivered:
		if err := s.events.PublishDispatchEvent(ctx, domain.DispatchEvent{
			OrderID:   order.ID,
			EventType: domain.EventTypeOrderDelivered,
			RiderID:   delivery.RiderID,
		}); err != nil {
			s.warnPublish(order.ID, domain.EventTypeOrderDelivered, err)
		}
	case domain.DeliveryStatusFailed:
		if err := s.events.PublishDispatchEvent(ctx, domain.DispatchEvent{
			OrderID:   order.ID,
			EventType: domain.EventTypeOrderCancelled,
			RiderID:   delivery.RiderID,
			Data:      map[string]any{"reason": "delivery_failed"},
		}); err != nil {
			s.warnPublish(order.ID, domain.EventTypeOrderCancelled, err)
		}
	}
}

func (s *updateDeliveryStatusService) warnNotify(orderID, target string, err error) {
	s.log.Warn(logger.Entry{
		Action:     "notify_failed",
		Message:    "notification delivery failed",
		OrderID:    orderID,
		Error:      &logger.ErrObj{Msg: err.Error()},
		Additional: map[string]any{"target": target},
	})
}

func (s *updateDeliveryStatusService) warnPublish(orderID, eventType string, err error) {
	s.log.Error(logger.Entry{
		Action:     "publish_event_failed",
		Message:    "could not publish dispatch event",
		OrderID:    orderID,
		Error:      &logger.ErrObj{Msg: err.Error()},
		Additional: map[string]any{"event_type": eventType},
	})
}
