package usecase

import (
	"context"
	"errors"
	"fmt"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
)

// acceptOrderService arbitrates concurrent accepts. All correctness lives in
// OrderRepository.AcceptOrder (one locked transaction); everything after a
// successful commit is best-effort fanout.
type acceptOrderService struct {
	orders       out.OrderRepository
	availability out.AvailabilityRepository
	notifier     out.Notifier
	events       out.EventPublisher
	tracker      *Tracker
	log          *logger.Logger
}

func NewAcceptOrderService(
	orders out.OrderRepository,
	availability out.AvailabilityRepository,
	notifier out.Notifier,
	events out.EventPublisher,
	tracker *Tracker,
	log *logger.Logger,
) in.AcceptOrderUseCase {
	return &acceptOrderService{
		orders:       orders,
		availability: availability,
		notifier:     notifier,
		events:       events,
		tracker:      tracker,
		log:          log,
	}
}

func (s *acceptOrderService) Execute(ctx context.Context, input in.AcceptOrderInput) (*in.AcceptOrderOutput, error) {
	rider, err := s.availability.FindByRiderID(ctx, input.RiderID)
	if err != nil {
		if errors.Is(err, domain.ErrRiderNotFound) {
			return &in.AcceptOrderOutput{Accepted: false, Reason: in.ReasonNotEligible}, nil
		}
		return nil, fmt.Errorf("accept order: load rider: %w", err)
	}
	if !rider.IsOnline || !rider.IsAvailable {
		s.log.Debug(logger.Entry{
			Action:  "accept_order_rejected",
			Message: "rider not eligible",
			OrderID: input.OrderID,
			Additional: map[string]any{
				"rider_id":     input.RiderID,
				"is_online":    rider.IsOnline,
				"is_available": rider.IsAvailable,
			},
		})
		return &in.AcceptOrderOutput{Accepted: false, Reason: in.ReasonNotEligible}, nil
	}

	order, delivery, err := s.orders.AcceptOrder(ctx, input.OrderID, input.RiderID, input.RiderID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderAlreadyTaken):
			// Losing the race is the normal outcome for N-1 of N riders.
			s.log.Debug(logger.Entry{
				Action:     "accept_order_lost",
				Message:    "order already taken",
				OrderID:    input.OrderID,
				Additional: map[string]any{"rider_id": input.RiderID},
			})
			return &in.AcceptOrderOutput{Accepted: false, Reason: in.ReasonAlreadyTaken}, nil
		case errors.Is(err, domain.ErrOrderNotFound):
			return &in.AcceptOrderOutput{Accepted: false, Reason: in.ReasonNotFound}, nil
		default:
			return nil, fmt.Errorf("accept order: %w", err)
		}
	}

	// Commit happened; the rider owns the order regardless of what fails
	// below.
	if err := s.availability.MarkBusy(ctx, input.RiderID, order.ID); err != nil {
		s.log.Error(logger.Entry{
			Action:  "mark_busy_failed",
			Message: "could not mark winner busy",
			OrderID: order.ID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	s.log.Info(logger.Entry{
		Action:  "order_accepted",
		Message: "rider won assignment",
		OrderID: order.ID,
		Additional: map[string]any{
			"rider_id":     input.RiderID,
			"order_number": order.OrderNumber,
		},
	})

	s.fanout(ctx, order, delivery)

	return &in.AcceptOrderOutput{
		Accepted: true,
		Order:    order,
		Delivery: delivery,
	}, nil
}

// fanout pushes the post-assignment notifications. Every failure here is
// logged and swallowed: the assignment is already durable.
func (s *acceptOrderService) fanout(ctx context.Context, order *domain.Order, delivery *domain.Delivery) {
	riderID := delivery.RiderID

	if err := s.notifier.NotifyRider(ctx, riderID, domain.EventOrderAccepted, map[string]any{
		"order":    order,
		"delivery": delivery,
	}); err != nil {
		s.notifyFailed(order.ID, "rider", err)
	}

	// Settle clears opportunity bookkeeping. The taken broadcast goes out
	// even when nobody else was offered the order: subscribers may hold a
	// stale list from the pull query, and an unknown order id is a client
	// no-op.
	if contended := s.tracker.Settle(order.ID, riderID); contended {
		s.log.Debug(logger.Entry{
			Action:     "accept_order_contended",
			Message:    "other riders had been offered this order",
			OrderID:    order.ID,
			Additional: map[string]any{"winner": riderID},
		})
	}
	if err := s.notifier.BroadcastAvailableOrders(ctx, domain.EventOrderTaken, map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"rider_id":     riderID,
	}); err != nil {
		s.notifyFailed(order.ID, "available_orders", err)
	}

	if err := s.notifier.NotifySeller(ctx, order.SellerID, domain.EventRiderAssigned, map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"rider_id":     riderID,
	}); err != nil {
		s.notifyFailed(order.ID, "seller", err)
	}

	if err := s.notifier.NotifyBuyer(ctx, order.BuyerID, domain.EventOrderStatusUpdated, map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
	}); err != nil {
		s.notifyFailed(order.ID, "buyer", err)
	}

	if err := s.events.PublishDispatchEvent(ctx, domain.DispatchEvent{
		OrderID:   order.ID,
		EventType: domain.EventTypeOrderAssigned,
		RiderID:   riderID,
	}); err != nil {
		s.log.Error(logger.Entry{
			Action:  "publish_event_failed",
			Message: "could not publish ORDER_ASSIGNED",
			OrderID: order.ID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
}

func (s *acceptOrderService) notifyFailed(orderID, target string, err error) {
	s.log.Warn(logger.Entry{
		Action:     "notify_failed",
		Message:    "notification delivery failed",
		OrderID:    orderID,
		Error:      &logger.ErrObj{Msg: err.Error()},
		Additional: map[string]any{"target": target},
	})
}
