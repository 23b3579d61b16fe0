package usecase

import (
	"context"
	"fmt"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/dispatch/domain"
)

const defaultHistoryLimit = 20

type riderDeliveriesService struct {
	deliveries out.DeliveryRepository
}

func NewRiderDeliveriesService(deliveries out.DeliveryRepository) in.RiderDeliveriesUseCase {
	return &riderDeliveriesService{deliveries: deliveries}
}

func (s *riderDeliveriesService) Current(ctx context.Context, riderID string) (*domain.Delivery, error) {
	delivery, err := s.deliveries.FindCurrentByRiderID(ctx, riderID)
	if err != nil {
		return nil, fmt.Errorf("current delivery: %w", err)
	}
	return delivery, nil
}

func (s *riderDeliveriesService) History(ctx context.Context, riderID string, limit int) ([]domain.Delivery, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}
	list, err := s.deliveries.ListForRider(ctx, riderID, limit)
	if err != nil {
		return nil, fmt.Errorf("delivery history: %w", err)
	}
	return list, nil
}
