package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/logger"
)

const orderColumns = `id, order_number, buyer_id, seller_id, rider_id, status,
	total_amount, items_count, pickup_address, shipping_address,
	created_at, confirmed_at, ready_at, assigned_at, picked_up_at,
	delivered_at, cancelled_at, updated_at`

// sqlstateLockNotAvailable is what FOR UPDATE NOWAIT raises when another
// transaction holds the row lock.
const sqlstateLockNotAvailable = "55P03"

type OrderPgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewOrderPgRepository(pool *pgxpool.Pool, log *logger.Logger) out.OrderRepository {
	return &OrderPgRepository{pool: pool, log: log}
}

func (r *OrderPgRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

// AcceptOrder implements first-accept-wins. The row lock is taken with
// NOWAIT: a rider queueing behind the winner would only find the guard
// failed after the wait, so losing the lock immediately means losing the
// race and is reported as already taken.
func (r *OrderPgRepository) AcceptOrder(ctx context.Context, orderID, riderID, actor string) (*domain.Order, *domain.Delivery, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("accept order: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		  AND rider_id IS NULL
		  AND status IN ('confirmed', 'ready_for_delivery')
		FOR UPDATE NOWAIT`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if lockNotAvailable(err) {
			return nil, nil, domain.ErrOrderAlreadyTaken
		}
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the order does not exist or the guard failed. One more
			// read to tell a loss apart from a bad id.
			var exists bool
			if qerr := r.pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); qerr == nil && !exists {
				return nil, nil, domain.ErrOrderNotFound
			}
			return nil, nil, domain.ErrOrderAlreadyTaken
		}
		return nil, nil, fmt.Errorf("accept order: lock: %w", err)
	}

	now := time.Now().UTC()
	delivery := &domain.Delivery{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		RiderID:    riderID,
		Status:     domain.DeliveryStatusAssigned,
		AssignedAt: now,
	}

	if err := assignInTx(ctx, tx, order, delivery, actor, ""); err != nil {
		return nil, nil, fmt.Errorf("accept order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("accept order: commit: %w", err)
	}
	return order, delivery, nil
}

// AssignRider is the operator path. The force precondition lives inside the
// locked transaction: a non-force call races against concurrent accepts
// exactly like a rider does, so an accept committing a moment earlier makes
// it lose with ErrOrderAlreadyTaken instead of clobbering the winner.
func (r *OrderPgRepository) AssignRider(ctx context.Context, orderID, riderID, actor, notes string, force bool) (*domain.Order, *domain.Delivery, string, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, "", fmt.Errorf("assign rider: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	guard := `status IN ('confirmed', 'ready_for_delivery', 'assigned_to_rider')`
	if !force {
		guard += ` AND rider_id IS NULL`
	}
	row := tx.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		  AND `+guard+`
		FOR UPDATE`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Tell an assigned order apart from a missing or terminal one.
			var assigned bool
			if qerr := r.pool.QueryRow(ctx,
				`SELECT rider_id IS NOT NULL FROM orders WHERE id = $1`, orderID).Scan(&assigned); qerr == nil && assigned {
				return nil, nil, "", domain.ErrOrderAlreadyTaken
			}
			return nil, nil, "", domain.ErrOrderNotFound
		}
		return nil, nil, "", fmt.Errorf("assign rider: lock: %w", err)
	}

	// The locked row is the only trustworthy source for who held the order.
	var prevRider string
	if order.RiderID != nil {
		prevRider = *order.RiderID
	}

	if prevRider != "" {
		// Supersede the live delivery before the unique index would reject
		// the new one.
		if _, err := tx.Exec(ctx, `
			UPDATE deliveries
			SET status = 'failed', notes = 'superseded by manual assignment'
			WHERE order_id = $1
			  AND status IN ('assigned', 'picked_up', 'on_the_way')`, orderID); err != nil {
			return nil, nil, "", fmt.Errorf("assign rider: supersede: %w", err)
		}
	}

	now := time.Now().UTC()
	delivery := &domain.Delivery{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		RiderID:    riderID,
		Status:     domain.DeliveryStatusAssigned,
		Notes:      notes,
		AssignedAt: now,
	}

	if err := assignInTx(ctx, tx, order, delivery, actor, notes); err != nil {
		return nil, nil, "", fmt.Errorf("assign rider: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, "", fmt.Errorf("assign rider: commit: %w", err)
	}
	return order, delivery, prevRider, nil
}

// assignInTx performs the shared tail of both assignment paths: order update,
// delivery insert and status log append, all on the caller's transaction.
// Mutates order in place to the post-assignment state.
func assignInTx(ctx context.Context, tx pgx.Tx, order *domain.Order, delivery *domain.Delivery, actor, notes string) error {
	now := delivery.AssignedAt
	if _, err := tx.Exec(ctx, `
		UPDATE orders
		SET rider_id = $2, status = $3, assigned_at = $4, updated_at = $4
		WHERE id = $1`,
		order.ID, delivery.RiderID, domain.OrderStatusAssigned, now); err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO deliveries (id, order_id, rider_id, status, notes, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		delivery.ID, delivery.OrderID, delivery.RiderID, delivery.Status, delivery.Notes, now); err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at, notes)
		VALUES ($1, $2, $3, $4, $5)`,
		order.ID, domain.OrderStatusAssigned, actor, now, notes); err != nil {
		return fmt.Errorf("append status log: %w", err)
	}

	rid := delivery.RiderID
	order.RiderID = &rid
	order.Status = domain.OrderStatusAssigned
	order.AssignedAt = &now
	order.UpdatedAt = now
	return nil
}

// TransitionStatus validates against the state machine under a row lock and
// stamps the matching timestamp column.
func (r *OrderPgRepository) TransitionStatus(ctx context.Context, orderID, newStatus, actor string) (*domain.Order, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, domain.ErrInvalidTransition
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("transition: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("transition: lock: %w", err)
	}

	if !domain.CanTransition(order.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, newStatus)
	}

	now := time.Now().UTC()
	set := `status = $2, updated_at = $3`
	switch newStatus {
	case domain.OrderStatusConfirmed:
		set += `, confirmed_at = $3`
	case domain.OrderStatusReady:
		set += `, ready_at = $3`
	case domain.OrderStatusPickedUp:
		set += `, picked_up_at = $3`
	case domain.OrderStatusDelivered:
		set += `, delivered_at = $3`
	case domain.OrderStatusCancelled:
		// The delivery record keeps the audit trail; the order itself holds a
		// rider only while the assignment is live.
		set += `, cancelled_at = $3, rider_id = NULL, assigned_at = NULL`
	case domain.OrderStatusPending:
		// Restore clears the assignment and the cancel mark.
		set += `, cancelled_at = NULL, rider_id = NULL, assigned_at = NULL`
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET `+set+` WHERE id = $1`, orderID, newStatus, now); err != nil {
		return nil, fmt.Errorf("transition: update: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4)`, orderID, newStatus, actor, now); err != nil {
		return nil, fmt.Errorf("transition: append status log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("transition: commit: %w", err)
	}

	order.Status = newStatus
	order.UpdatedAt = now
	switch newStatus {
	case domain.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case domain.OrderStatusReady:
		order.ReadyAt = &now
	case domain.OrderStatusPickedUp:
		order.PickedUpAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		order.CancelledAt = &now
		order.RiderID = nil
		order.AssignedAt = nil
	case domain.OrderStatusPending:
		order.CancelledAt = nil
		order.RiderID = nil
		order.AssignedAt = nil
	}
	return order, nil
}

func (r *OrderPgRepository) ListDispatchable(ctx context.Context, limit int) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE rider_id IS NULL
		  AND status IN ('confirmed', 'ready_for_delivery')
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatchable: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list dispatchable: scan: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.BuyerID, &o.SellerID, &o.RiderID, &o.Status,
		&o.TotalAmount, &o.ItemsCount, &o.PickupAddress, &o.ShippingAddress,
		&o.CreatedAt, &o.ConfirmedAt, &o.ReadyAt, &o.AssignedAt, &o.PickedUpAt,
		&o.DeliveredAt, &o.CancelledAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func lockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlstateLockNotAvailable
}
