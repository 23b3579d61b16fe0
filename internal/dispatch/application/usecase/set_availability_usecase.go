package usecase

import (
	"context"
	"fmt"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/shared/logger"
)

// setAvailabilityService flips the explicit "taking orders" switch. Distinct
// from presence: an online rider on a break stays connected but unavailable.
type setAvailabilityService struct {
	availability out.AvailabilityRepository
	log          *logger.Logger
}

func NewSetAvailabilityService(availability out.AvailabilityRepository, log *logger.Logger) in.SetAvailabilityUseCase {
	return &setAvailabilityService{availability: availability, log: log}
}

func (s *setAvailabilityService) Execute(ctx context.Context, input in.SetAvailabilityInput) error {
	if err := s.availability.SetAvailable(ctx, input.RiderID, input.Available); err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	s.log.Info(logger.Entry{
		Action:     "availability_changed",
		Message:    "rider availability updated",
		Additional: map[string]any{"rider_id": input.RiderID, "available": input.Available},
	})
	return nil
}
