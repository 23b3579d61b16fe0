package usecase

import (
	"context"
	"fmt"
	"time"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
)

// notifyOrderReadyService fans a delivery opportunity out to every eligible
// rider. Triggered by the order.ready consumer and by the confirm/ready
// transitions on the HTTP path.
type notifyOrderReadyService struct {
	orders       out.OrderRepository
	availability out.AvailabilityRepository
	notifier     out.Notifier
	tracker      *Tracker
	staleAfter   time.Duration
	log          *logger.Logger
}

func NewNotifyOrderReadyService(
	orders out.OrderRepository,
	availability out.AvailabilityRepository,
	notifier out.Notifier,
	tracker *Tracker,
	staleAfter time.Duration,
	log *logger.Logger,
) in.NotifyOrderReadyUseCase {
	return &notifyOrderReadyService{
		orders:       orders,
		availability: availability,
		notifier:     notifier,
		tracker:      tracker,
		staleAfter:   staleAfter,
		log:          log,
	}
}

func (s *notifyOrderReadyService) Execute(ctx context.Context, input in.NotifyOrderReadyInput) (*in.NotifyOrderReadyOutput, error) {
	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, fmt.Errorf("notify order ready: %w", err)
	}
	if !order.Dispatchable() {
		// Already taken or cancelled between the trigger and now. Nothing to
		// announce.
		s.log.Debug(logger.Entry{
			Action:     "notify_skipped",
			Message:    "order no longer dispatchable",
			OrderID:    order.ID,
			Additional: map[string]any{"status": order.Status},
		})
		return &in.NotifyOrderReadyOutput{OrderID: order.ID}, nil
	}

	riders, err := s.availability.ListEligible(ctx, s.staleAfter)
	if err != nil {
		return nil, fmt.Errorf("notify order ready: list riders: %w", err)
	}

	summary := order.Summary()
	notified := make([]string, 0, len(riders))
	for i := range riders {
		riderID := riders[i].RiderID
		if err := s.notifier.NotifyRider(ctx, riderID, domain.EventNewDeliveryOpportunity, summary); err != nil {
			s.log.Warn(logger.Entry{
				Action:     "notify_failed",
				Message:    "opportunity push failed",
				OrderID:    order.ID,
				Error:      &logger.ErrObj{Msg: err.Error()},
				Additional: map[string]any{"rider_id": riderID},
			})
			continue
		}
		notified = append(notified, riderID)
	}
	s.tracker.Offered(order.ID, notified)

	// The shared topic catches riders who connect after the per-rider pushes.
	if err := s.notifier.BroadcastAvailableOrders(ctx, domain.EventNewDeliveryOpportunity, summary); err != nil {
		s.log.Warn(logger.Entry{
			Action:  "notify_failed",
			Message: "available_orders broadcast failed",
			OrderID: order.ID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	s.log.Info(logger.Entry{
		Action:  "opportunity_sent",
		Message: "delivery opportunity fanned out",
		OrderID: order.ID,
		Additional: map[string]any{
			"order_number":    order.OrderNumber,
			"notified_riders": len(notified),
		},
	})

	return &in.NotifyOrderReadyOutput{
		OrderID:        order.ID,
		NotifiedRiders: len(notified),
	}, nil
}
