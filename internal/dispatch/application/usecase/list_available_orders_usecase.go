package usecase

import (
	"context"
	"fmt"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
)

const defaultListLimit = 50

// listAvailableOrdersService is the pull counterpart to opportunity pushes:
// a rider coming online asks for everything currently dispatchable.
type listAvailableOrdersService struct {
	orders  out.OrderRepository
	tracker *Tracker
	log     *logger.Logger
}

func NewListAvailableOrdersService(orders out.OrderRepository, tracker *Tracker, log *logger.Logger) in.ListAvailableOrdersUseCase {
	return &listAvailableOrdersService{orders: orders, tracker: tracker, log: log}
}

func (s *listAvailableOrdersService) Execute(ctx context.Context, input in.ListAvailableOrdersInput) ([]domain.OrderSummary, error) {
	limit := input.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	orders, err := s.orders.ListDispatchable(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list available orders: %w", err)
	}
	summaries := make([]domain.OrderSummary, 0, len(orders))
	for i := range orders {
		summaries = append(summaries, orders[i].Summary())
		s.tracker.Offered(orders[i].ID, []string{input.RiderID})
	}
	return summaries, nil
}
