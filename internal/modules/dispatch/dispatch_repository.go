package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mf-eats-backend/internal/models"
	"mf-eats-backend/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the store operations the coordinator needs.
// ClaimDriver and AssignDelivery are the two contention points; both are
// written so the loser of a race gets a typed error instead of corrupt
// state.
type RepositoryInterface interface {
	FindOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListEligibleDrivers(ctx context.Context) ([]*models.Driver, error)
	// ClaimDriver takes the driver's availability with a conditional
	// update. The second concurrent caller gets ErrAlreadyClaimed.
	ClaimDriver(ctx context.Context, driverID string) error
	UnclaimDriver(ctx context.Context, driverID string) error
	// AssignDelivery creates the delivery row, pins orders.driver_id and
	// advances ready->in_delivery, all in one transaction. A concurrent
	// dispatch of the same order gets ErrAlreadyDispatched.
	AssignDelivery(ctx context.Context, orderID, driverID string) (*models.Delivery, error)
	// ListExpiredAssigned returns deliveries still waiting for the
	// driver's acknowledgement past the cutoff.
	ListExpiredAssigned(ctx context.Context, cutoff time.Time) ([]*models.Delivery, error)
	// Release reverts one timed-out assignment: delivery released, order
	// back to ready with no driver, driver freed.
	Release(ctx context.Context, deliveryID string) error
	// ListReadyUnassigned feeds the dispatch sweep.
	ListReadyUnassigned(ctx context.Context, limit int) ([]string, error)
}

// Repository implements RepositoryInterface over PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

func (r *Repository) FindOrder(ctx context.Context, orderID string) (*models.Order, error) {
	const query = `
		SELECT id, customer_id, restaurant_id, driver_id, status, total_amount,
			delivery_fee, payment_method, delivery_address, delivery_latitude,
			delivery_longitude, customer_notes, created_at, updated_at
		FROM orders
		WHERE id = $1`
	var o models.Order
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&o.ID, &o.CustomerID, &o.RestaurantID, &o.DriverID, &o.Status,
		&o.TotalAmount, &o.DeliveryFee, &o.PaymentMethod, &o.DeliveryAddress,
		&o.DeliveryLatitude, &o.DeliveryLongitude, &o.CustomerNotes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindOrder: %w", err)
	}
	return &o, nil
}

func (r *Repository) ListEligibleDrivers(ctx context.Context) ([]*models.Driver, error) {
	const query = `
		SELECT id, user_id, vehicle_type, license_number, is_available, is_approved,
			current_latitude, current_longitude, total_deliveries, rating, created_at, updated_at
		FROM drivers
		WHERE is_available AND is_approved`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository.ListEligibleDrivers: %w", err)
	}
	defer rows.Close()

	var drivers []*models.Driver
	for rows.Next() {
		var d models.Driver
		if err := rows.Scan(&d.ID, &d.UserID, &d.VehicleType, &d.LicenseNumber,
			&d.IsAvailable, &d.IsApproved, &d.CurrentLatitude, &d.CurrentLongitude,
			&d.TotalDeliveries, &d.Rating, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository.ListEligibleDrivers: %w", err)
		}
		drivers = append(drivers, &d)
	}
	return drivers, rows.Err()
}

// ClaimDriver is the only write contended by concurrent dispatches of
// different orders: first writer wins, the WHERE clause makes everyone else
// a zero-row update.
func (r *Repository) ClaimDriver(ctx context.Context, driverID string) error {
	const query = `
		UPDATE drivers
		SET is_available = false, updated_at = NOW()
		WHERE id = $1 AND is_available AND is_approved`
	tag, err := r.db.Exec(ctx, query, driverID)
	if err != nil {
		return fmt.Errorf("repository.ClaimDriver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAlreadyClaimed
	}
	return nil
}

func (r *Repository) UnclaimDriver(ctx context.Context, driverID string) error {
	const query = `UPDATE drivers SET is_available = true, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, driverID); err != nil {
		return fmt.Errorf("repository.UnclaimDriver: %w", err)
	}
	return nil
}

func (r *Repository) AssignDelivery(ctx context.Context, orderID, driverID string) (*models.Delivery, error) {
	var d models.Delivery
	err := storage.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const advanceOrder = `
			UPDATE orders
			SET driver_id = $2, status = 'in_delivery', updated_at = NOW()
			WHERE id = $1 AND status = 'ready' AND driver_id IS NULL`
		tag, err := tx.Exec(ctx, advanceOrder, orderID, driverID)
		if err != nil {
			return fmt.Errorf("repository.AssignDelivery: order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrAlreadyDispatched
		}

		const insertDelivery = `
			INSERT INTO deliveries (order_id, driver_id, status)
			VALUES ($1, $2, 'assigned')
			RETURNING id, order_id, driver_id, status, picked_up_at, delivered_at, created_at, updated_at`
		err = tx.QueryRow(ctx, insertDelivery, orderID, driverID).Scan(
			&d.ID, &d.OrderID, &d.DriverID, &d.Status,
			&d.PickedUpAt, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			// The partial unique index over live deliveries per order backs
			// up the conditional update above.
			if storage.IsUniqueViolation(err) {
				return models.ErrAlreadyDispatched
			}
			return fmt.Errorf("repository.AssignDelivery: delivery: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) ListExpiredAssigned(ctx context.Context, cutoff time.Time) ([]*models.Delivery, error) {
	const query = `
		SELECT id, order_id, driver_id, status, picked_up_at, delivered_at, created_at, updated_at
		FROM deliveries
		WHERE status = 'assigned' AND created_at < $1`
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("repository.ListExpiredAssigned: %w", err)
	}
	defer rows.Close()

	var out []*models.Delivery
	for rows.Next() {
		var d models.Delivery
		if err := rows.Scan(&d.ID, &d.OrderID, &d.DriverID, &d.Status,
			&d.PickedUpAt, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository.ListExpiredAssigned: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *Repository) Release(ctx context.Context, deliveryID string) error {
	return storage.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const releaseDelivery = `
			UPDATE deliveries
			SET status = 'released', updated_at = NOW()
			WHERE id = $1 AND status = 'assigned'
			RETURNING order_id, driver_id`
		var orderID, driverID string
		if err := tx.QueryRow(ctx, releaseDelivery, deliveryID).Scan(&orderID, &driverID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// The driver accepted between the sweep's read and now.
				return models.ErrInvalidTransition
			}
			return fmt.Errorf("repository.Release: delivery: %w", err)
		}

		const revertOrder = `
			UPDATE orders
			SET driver_id = NULL, status = 'ready', updated_at = NOW()
			WHERE id = $1 AND status = 'in_delivery' AND driver_id = $2`
		if _, err := tx.Exec(ctx, revertOrder, orderID, driverID); err != nil {
			return fmt.Errorf("repository.Release: order: %w", err)
		}

		const freeDriver = `UPDATE drivers SET is_available = true, updated_at = NOW() WHERE id = $1`
		if _, err := tx.Exec(ctx, freeDriver, driverID); err != nil {
			return fmt.Errorf("repository.Release: driver: %w", err)
		}
		return nil
	})
}

func (r *Repository) ListReadyUnassigned(ctx context.Context, limit int) ([]string, error) {
	const query = `
		SELECT id FROM orders
		WHERE status = 'ready' AND driver_id IS NULL
		ORDER BY updated_at
		LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("repository.ListReadyUnassigned: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repository.ListReadyUnassigned: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
