package usecase

import (
	"context"
	"fmt"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
)

// manualAssignService is the seller/admin fallback when no rider self-accepts
// or a stuck assignment must move to another rider. It bypasses the
// eligibility check on purpose; the person clicking the button has already
// talked to the rider.
type manualAssignService struct {
	orders       out.OrderRepository
	availability out.AvailabilityRepository
	notifier     out.Notifier
	events       out.EventPublisher
	tracker      *Tracker
	log          *logger.Logger
}

func NewManualAssignService(
	orders out.OrderRepository,
	availability out.AvailabilityRepository,
	notifier out.Notifier,
	events out.EventPublisher,
	tracker *Tracker,
	log *logger.Logger,
) in.ManualAssignUseCase {
	return &manualAssignService{
		orders:       orders,
		availability: availability,
		notifier:     notifier,
		events:       events,
		tracker:      tracker,
		log:          log,
	}
}

func (s *manualAssignService) Execute(ctx context.Context, input in.ManualAssignInput) (*in.ManualAssignOutput, error) {
	// The force precondition is enforced inside the assignment transaction;
	// checking here first would leave a window for a concurrent accept to
	// land between the read and the write. The repository reports who held
	// the order so a force-reassign can free them after commit.
	order, delivery, prevRider, err := s.orders.AssignRider(ctx, input.OrderID, input.RiderID, input.Actor, input.Notes, input.Force)
	if err != nil {
		return nil, fmt.Errorf("manual assign: %w", err)
	}

	if prevRider != "" && prevRider != input.RiderID {
		if err := s.availability.MarkFree(ctx, prevRider); err != nil {
			s.log.Error(logger.Entry{
				Action:  "mark_free_failed",
				Message: "could not free superseded rider",
				OrderID: order.ID,
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
		if err := s.notifier.NotifyRider(ctx, prevRider, domain.EventOrderTaken, map[string]any{
			"order_id": order.ID,
			"reason":   "reassigned",
		}); err != nil {
			s.warnNotify(order.ID, "previous_rider", err)
		}
	}

	if err := s.availability.MarkBusy(ctx, input.RiderID, order.ID); err != nil {
		s.log.Error(logger.Entry{
			Action:  "mark_busy_failed",
			Message: "could not mark assignee busy",
			OrderID: order.ID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	contended := s.tracker.Settle(order.ID, input.RiderID)
	s.log.Info(logger.Entry{
		Action:  "order_assigned_manually",
		Message: "rider assigned by operator",
		OrderID: order.ID,
		Additional: map[string]any{
			"rider_id":  input.RiderID,
			"actor":     input.Actor,
			"contended": contended,
		},
	})

	s.notify(ctx, order, delivery)

	return &in.ManualAssignOutput{Order: order, Delivery: delivery}, nil
}

func (s *manualAssignService) notify(ctx context.Context, order *domain.Order, delivery *domain.Delivery) {
	if err := s.notifier.NotifyRider(ctx, delivery.RiderID, domain.EventOrderAccepted, map[string]any{
		"order":    order,
		"delivery": delivery,
		"manual":   true,
	}); err != nil {
		s.warnNotify(order.ID, "rider", err)
	}
	if err := s.notifier.BroadcastAvailableOrders(ctx, domain.EventOrderTaken, map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"rider_id":     delivery.RiderID,
	}); err != nil {
		s.warnNotify(order.ID, "available_orders", err)
	}
	if err := s.notifier.NotifySeller(ctx, order.SellerID, domain.EventRiderAssigned, map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"rider_id":     delivery.RiderID,
	}); err != nil {
		s.warnNotify(order.ID, "seller", err)
	}
	if err := s.notifier.NotifyBuyer(ctx, order.BuyerID, domain.EventOrderStatusUpdated, map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
	}); err != nil {
		s.warnNotify(order.ID, "buyer", err)
	}
	if err := s.events.PublishDispatchEvent(ctx, domain.DispatchEvent{
		OrderID:   order.ID,
		EventType: domain.EventTypeOrderAssigned,
		RiderID:   delivery.RiderID,
		Data:      map[string]any{"manual": true},
	}); err != nil {
		s.log.Error(logger.Entry{
			Action:  "publish_event_failed",
			Message: "could not publish ORDER_ASSIGNED",
			OrderID: order.ID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
}

func (s *manualAssignService) warnNotify(orderID, target string, err error) {
	s.log.Warn(logger.Entry{
		Action:     "notify_failed",
		Message:    "notification delivery failed",
		OrderID:    orderID,
		Error:      &logger.ErrObj{Msg: err.Error()},
		Additional: map[string]any{"target": target},
	})
}
