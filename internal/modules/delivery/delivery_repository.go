package delivery

import (
	"context"
	"errors"
	"fmt"

	"mf-eats-backend/internal/models"
	"mf-eats-backend/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the store operations for the delivery
// aggregate. Like orders, every status change is a conditional update.
type RepositoryInterface interface {
	FindByID(ctx context.Context, deliveryID string) (*models.Delivery, error)
	// FindActiveByOrder returns the live delivery of an order, ignoring
	// released and delivered rows.
	FindActiveByOrder(ctx context.Context, orderID string) (*models.Delivery, error)
	FindActiveByDriverUser(ctx context.Context, userID string) (*models.Delivery, error)
	// IsDriverUser reports whether the driver row belongs to the principal.
	IsDriverUser(ctx context.Context, driverID, userID string) (bool, error)
	FindOrder(ctx context.Context, orderID string) (*models.Order, error)
	// AdvanceStatus performs one conditional driver transition. Entering
	// picked_up stamps picked_up_at; the guard on the previous status makes
	// the stamp happen at most once.
	AdvanceStatus(ctx context.Context, deliveryID string, from, to models.DeliveryStatus) error
	// MarkDelivered closes the delivery and settles the order in a single
	// transaction: delivery in_transit->delivered, order
	// in_delivery->delivered, settlement row, driver freed with its
	// counter bumped. Either everything lands or nothing does.
	MarkDelivered(ctx context.Context, deliveryID string, settlement models.Transaction) error
}

// Repository implements RepositoryInterface over PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const deliveryColumns = `id, order_id, driver_id, status, picked_up_at, delivered_at, created_at, updated_at`

func scanDelivery(row pgx.Row) (*models.Delivery, error) {
	var d models.Delivery
	err := row.Scan(&d.ID, &d.OrderID, &d.DriverID, &d.Status,
		&d.PickedUpAt, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) FindByID(ctx context.Context, deliveryID string) (*models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`
	d, err := scanDelivery(r.db.QueryRow(ctx, query, deliveryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return d, nil
}

func (r *Repository) FindActiveByOrder(ctx context.Context, orderID string) (*models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE order_id = $1 AND status NOT IN ('delivered', 'released')`
	d, err := scanDelivery(r.db.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindActiveByOrder: %w", err)
	}
	return d, nil
}

func (r *Repository) FindActiveByDriverUser(ctx context.Context, userID string) (*models.Delivery, error) {
	const q = `
		SELECT d.id, d.order_id, d.driver_id, d.status, d.picked_up_at, d.delivered_at, d.created_at, d.updated_at
		FROM deliveries d
		JOIN drivers dr ON dr.id = d.driver_id
		WHERE dr.user_id = $1 AND d.status NOT IN ('delivered', 'released')`
	d, err := scanDelivery(r.db.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindActiveByDriverUser: %w", err)
	}
	return d, nil
}

func (r *Repository) IsDriverUser(ctx context.Context, driverID, userID string) (bool, error) {
	var ok bool
	const query = `SELECT EXISTS (SELECT 1 FROM drivers WHERE id = $1 AND user_id = $2)`
	if err := r.db.QueryRow(ctx, query, driverID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("repository.IsDriverUser: %w", err)
	}
	return ok, nil
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

func (r *Repository) AdvanceStatus(ctx context.Context, deliveryID string, from, to models.DeliveryStatus) error {
	query := `
		UPDATE deliveries
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`
	if to == models.DeliveryPickedUp {
		query = `
			UPDATE deliveries
			SET status = $3, picked_up_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = $2`
	}
	tag, err := r.db.Exec(ctx, query, deliveryID, from, to)
	if err != nil {
		return fmt.Errorf("repository.AdvanceStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deliveries WHERE id = $1)`, deliveryID).Scan(&exists); err != nil {
			return fmt.Errorf("repository.AdvanceStatus: %w", err)
		}
		if !exists {
			return models.ErrNotFound
		}
		return models.ErrInvalidTransition
	}
	return nil
}

func (r *Repository) MarkDelivered(ctx context.Context, deliveryID string, settlement models.Transaction) error {
	return storage.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const closeDelivery = `
			UPDATE deliveries
			SET status = 'delivered', delivered_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = 'in_transit'
			RETURNING order_id, driver_id`
		var orderID, driverID string
		if err := tx.QueryRow(ctx, closeDelivery, deliveryID).Scan(&orderID, &driverID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrInvalidTransition
			}
			return fmt.Errorf("repository.MarkDelivered: delivery: %w", err)
		}

		const closeOrder = `
			UPDATE orders
			SET status = 'delivered', updated_at = NOW()
			WHERE id = $1 AND status = 'in_delivery'`
		tag, err := tx.Exec(ctx, closeOrder, orderID)
		if err != nil {
			return fmt.Errorf("repository.MarkDelivered: order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// An in_transit delivery implies an in_delivery order; anything
			// else means the two aggregates disagree.
			return fmt.Errorf("repository.MarkDelivered: order %s: %w", orderID, models.ErrIntegrityViolation)
		}

		const insertSettlement = `
			INSERT INTO transactions (order_id, restaurant_id, driver_id, transaction_type,
				amount, commission_rate, commission_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (order_id, transaction_type) DO NOTHING`
		if _, err := tx.Exec(ctx, insertSettlement,
			settlement.OrderID, settlement.RestaurantID, settlement.DriverID, settlement.TransactionType,
			settlement.Amount, settlement.CommissionRate, settlement.CommissionAmount,
		); err != nil {
			return fmt.Errorf("repository.MarkDelivered: settlement: %w", err)
		}

		const freeDriver = `
			UPDATE drivers
			SET is_available = true, total_deliveries = total_deliveries + 1, updated_at = NOW()
			WHERE id = $1`
		if _, err := tx.Exec(ctx, freeDriver, driverID); err != nil {
			return fmt.Errorf("repository.MarkDelivered: driver: %w", err)
		}
		return nil
	})
}
