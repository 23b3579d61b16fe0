package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
)

const availabilityColumns = `rider_id, is_online, is_available,
	current_order_id, current_lat, current_lng, last_seen`

type AvailabilityPgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewAvailabilityPgRepository(pool *pgxpool.Pool, log *logger.Logger) out.AvailabilityRepository {
	return &AvailabilityPgRepository{pool: pool, log: log}
}

// Heartbeat upserts presence. Deliberately does not touch is_available or
// current_order_id: a heartbeat is a liveness signal, not a state change.
func (r *AvailabilityPgRepository) Heartbeat(ctx context.Context, riderID string, online bool, loc *domain.Location) error {
	var lat, lng *float64
	if loc != nil {
		lat, lng = &loc.Lat, &loc.Lng
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rider_availability (rider_id, is_online, current_lat, current_lng, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (rider_id) DO UPDATE SET
			is_online   = EXCLUDED.is_online,
			current_lat = COALESCE(EXCLUDED.current_lat, rider_availability.current_lat),
			current_lng = COALESCE(EXCLUDED.current_lng, rider_availability.current_lng),
			last_seen   = EXCLUDED.last_seen`,
		riderID, online, lat, lng, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("heartbeat upsert: %w", err)
	}
	return nil
}

// SetAvailable flips the explicit switch. It also drops a current_order_id
// that no live delivery backs any more, so a rider wedged by a missed
// MarkFree gets back into rotation by toggling availability.
func (r *AvailabilityPgRepository) SetAvailable(ctx context.Context, riderID string, available bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rider_availability (rider_id, is_online, is_available, last_seen)
		VALUES ($1, true, $2, $3)
		ON CONFLICT (rider_id) DO UPDATE SET
			is_available = EXCLUDED.is_available,
			last_seen    = EXCLUDED.last_seen,
			current_order_id = CASE WHEN EXISTS (
					SELECT 1 FROM deliveries d
					WHERE d.rider_id = rider_availability.rider_id
					  AND d.status IN ('assigned', 'picked_up', 'on_the_way'))
				THEN rider_availability.current_order_id
				ELSE NULL END`,
		riderID, available, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set available: %w", err)
	}
	return nil
}

// ListEligible applies the full eligibility predicate in SQL so callers see
// only riders an opportunity may go to.
func (r *AvailabilityPgRepository) ListEligible(ctx context.Context, staleAfter time.Duration) ([]domain.RiderAvailability, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)
	rows, err := r.pool.Query(ctx, `
		SELECT `+availabilityColumns+`
		FROM rider_availability
		WHERE is_online
		  AND is_available
		  AND current_order_id IS NULL
		  AND last_seen >= $1
		ORDER BY last_seen DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list eligible: %w", err)
	}
	defer rows.Close()

	var riders []domain.RiderAvailability
	for rows.Next() {
		ra, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("list eligible: scan: %w", err)
		}
		riders = append(riders, *ra)
	}
	return riders, rows.Err()
}

// MarkBusy pins the rider to the order. available drops with it: a rider
// holding an order is never offered another one.
func (r *AvailabilityPgRepository) MarkBusy(ctx context.Context, riderID, orderID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rider_availability (rider_id, is_online, is_available, current_order_id, last_seen)
		VALUES ($1, true, false, $2, $3)
		ON CONFLICT (rider_id) DO UPDATE SET
			is_available     = false,
			current_order_id = EXCLUDED.current_order_id,
			last_seen        = EXCLUDED.last_seen`,
		riderID, orderID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark busy: %w", err)
	}
	return nil
}

// MarkFree returns the rider to the rotation after a terminal delivery.
func (r *AvailabilityPgRepository) MarkFree(ctx context.Context, riderID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE rider_availability
		SET current_order_id = NULL, is_available = true
		WHERE rider_id = $1`, riderID)
	if err != nil {
		return fmt.Errorf("mark free: %w", err)
	}
	return nil
}

func (r *AvailabilityPgRepository) FindByRiderID(ctx context.Context, riderID string) (*domain.RiderAvailability, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+availabilityColumns+` FROM rider_availability WHERE rider_id = $1`, riderID)
	ra, err := scanAvailability(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRiderNotFound
		}
		return nil, fmt.Errorf("find rider: %w", err)
	}
	return ra, nil
}

func scanAvailability(row pgx.Row) (*domain.RiderAvailability, error) {
	var ra domain.RiderAvailability
	err := row.Scan(
		&ra.RiderID, &ra.IsOnline, &ra.IsAvailable,
		&ra.CurrentOrderID, &ra.CurrentLat, &ra.CurrentLng, &ra.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	return &ra, nil
}
