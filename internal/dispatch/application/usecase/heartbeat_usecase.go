package usecase

import (
	"context"
	"fmt"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/shared/logger"
)

// heartbeatService records rider presence. Heartbeats are idempotent; a
// rider returning after any silence simply becomes fresh again.
type heartbeatService struct {
	availability out.AvailabilityRepository
	log          *logger.Logger
}

func NewHeartbeatService(availability out.AvailabilityRepository, log *logger.Logger) in.HeartbeatUseCase {
	return &heartbeatService{availability: availability, log: log}
}

func (s *heartbeatService) Execute(ctx context.Context, input in.HeartbeatInput) error {
	loc := input.Location
	if loc != nil && !loc.Valid() {
		// Bad coordinates do not invalidate the heartbeat itself.
		s.log.Debug(logger.Entry{
			Action:     "heartbeat_location_dropped",
			Message:    "coordinates out of range",
			Additional: map[string]any{"rider_id": input.RiderID, "lat": loc.Lat, "lng": loc.Lng},
		})
		loc = nil
	}
	if err := s.availability.Heartbeat(ctx, input.RiderID, input.Online, loc); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}
