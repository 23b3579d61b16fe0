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

const deliveryColumns = `id, order_id, rider_id, status, notes,
	assigned_at, picked_up_at, on_the_way_at, delivered_at`

type DeliveryPgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewDeliveryPgRepository(pool *pgxpool.Pool, log *logger.Logger) out.DeliveryRepository {
	return &DeliveryPgRepository{pool: pool, log: log}
}

func (r *DeliveryPgRepository) FindActiveByOrderID(ctx context.Context, orderID string) (*domain.Delivery, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE order_id = $1
		  AND status IN ('assigned', 'picked_up', 'on_the_way')`, orderID)
	return scanDeliveryOrNotFound(row)
}

func (r *DeliveryPgRepository) FindCurrentByRiderID(ctx context.Context, riderID string) (*domain.Delivery, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE rider_id = $1
		  AND status IN ('assigned', 'picked_up', 'on_the_way')
		ORDER BY assigned_at DESC
		LIMIT 1`, riderID)
	return scanDeliveryOrNotFound(row)
}

func (r *DeliveryPgRepository) ListForRider(ctx context.Context, riderID string, limit int) ([]domain.Delivery, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE rider_id = $1
		ORDER BY assigned_at DESC
		LIMIT $2`, riderID, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var list []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("list deliveries: scan: %w", err)
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

// UpdateStatus advances the active delivery under a row lock. The rider
// guard and the transition check both run against the locked row, so two
// racing updates serialize cleanly.
func (r *DeliveryPgRepository) UpdateStatus(ctx context.Context, orderID, riderID, status, notes string) (*domain.Delivery, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("update delivery: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE order_id = $1
		  AND status IN ('assigned', 'picked_up', 'on_the_way')
		FOR UPDATE`, orderID)
	delivery, err := scanDelivery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("update delivery: lock: %w", err)
	}

	if delivery.RiderID != riderID {
		return nil, domain.ErrNotAssignedRider
	}
	if !domain.CanTransitionDelivery(delivery.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, delivery.Status, status)
	}

	now := time.Now().UTC()
	set := `status = $2`
	args := []any{delivery.ID, status}
	switch status {
	case domain.DeliveryStatusPickedUp:
		set += `, picked_up_at = $3`
		args = append(args, now)
	case domain.DeliveryStatusOnTheWay:
		set += `, on_the_way_at = $3`
		args = append(args, now)
	case domain.DeliveryStatusDelivered:
		set += `, delivered_at = $3`
		args = append(args, now)
	}
	if notes != "" {
		set += fmt.Sprintf(`, notes = $%d`, len(args)+1)
		args = append(args, notes)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE deliveries SET `+set+` WHERE id = $1`, args...); err != nil {
		return nil, fmt.Errorf("update delivery: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update delivery: commit: %w", err)
	}

	delivery.Status = status
	if notes != "" {
		delivery.Notes = notes
	}
	switch status {
	case domain.DeliveryStatusPickedUp:
		delivery.PickedUpAt = &now
	case domain.DeliveryStatusOnTheWay:
		delivery.OnTheWayAt = &now
	case domain.DeliveryStatusDelivered:
		delivery.DeliveredAt = &now
	}
	return delivery, nil
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	err := row.Scan(
		&d.ID, &d.OrderID, &d.RiderID, &d.Status, &d.Notes,
		&d.AssignedAt, &d.PickedUpAt, &d.OnTheWayAt, &d.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDeliveryOrNotFound(row pgx.Row) (*domain.Delivery, error) {
	d, err := scanDelivery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("find delivery: %w", err)
	}
	return d, nil
}
