package ledger

import (
	"context"
	"fmt"

	"mf-eats-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the ledger store. The ledger is append-only:
// there is no update or delete anywhere in this interface.
type RepositoryInterface interface {
	// InsertSettlement writes the settlement row if none exists yet for the
	// order. Returns false when the row was already there.
	InsertSettlement(ctx context.Context, t models.Transaction) (bool, error)
	// ListUnsettledDelivered returns delivered orders that have no
	// settlement row, the repair set for Reconcile.
	ListUnsettledDelivered(ctx context.Context, limit int) ([]*models.Order, error)
	ListByOrder(ctx context.Context, orderID string) ([]*models.Transaction, error)
	Summary(ctx context.Context) (*models.LedgerSummary, error)
}

// Repository implements RepositoryInterface over PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

// InsertSettlement leans on the unique index over
// (order_id, transaction_type): a concurrent writer makes this a no-op
// instead of a duplicate.
func (r *Repository) InsertSettlement(ctx context.Context, t models.Transaction) (bool, error) {
	const query = `
		INSERT INTO transactions (order_id, restaurant_id, driver_id, transaction_type,
			amount, commission_rate, commission_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id, transaction_type) DO NOTHING`
	tag, err := r.db.Exec(ctx, query,
		t.OrderID, t.RestaurantID, t.DriverID, t.TransactionType,
		t.Amount, t.CommissionRate, t.CommissionAmount,
	)
	if err != nil {
		return false, fmt.Errorf("repository.InsertSettlement: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListUnsettledDelivered(ctx context.Context, limit int) ([]*models.Order, error) {
	const query = `
		SELECT o.id, o.customer_id, o.restaurant_id, o.driver_id, o.status, o.total_amount,
			o.delivery_fee, o.payment_method, o.delivery_address, o.delivery_latitude,
			o.delivery_longitude, o.customer_notes, o.created_at, o.updated_at
		FROM orders o
		LEFT JOIN transactions t
			ON t.order_id = o.id AND t.transaction_type = $1
		WHERE o.status = 'delivered' AND t.id IS NULL
		ORDER BY o.updated_at
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, models.TransactionTypeSettlement, limit)
	if err != nil {
		return nil, fmt.Errorf("repository.ListUnsettledDelivered: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(
			&o.ID, &o.CustomerID, &o.RestaurantID, &o.DriverID, &o.Status,
			&o.TotalAmount, &o.DeliveryFee, &o.PaymentMethod, &o.DeliveryAddress,
			&o.DeliveryLatitude, &o.DeliveryLongitude, &o.CustomerNotes,
			&o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("repository.ListUnsettledDelivered: %w", err)
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]*models.Transaction, error) {
	const query = `
		SELECT id, order_id, restaurant_id, driver_id, transaction_type,
			amount, commission_rate, commission_amount, created_at
		FROM transactions
		WHERE order_id = $1
		ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListByOrder: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.OrderID, &t.RestaurantID, &t.DriverID, &t.TransactionType,
			&t.Amount, &t.CommissionRate, &t.CommissionAmount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.ListByOrder: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *Repository) Summary(ctx context.Context) (*models.LedgerSummary, error) {
	const query = `
		SELECT COUNT(*), COALESCE(SUM(amount), 0), COALESCE(SUM(commission_amount), 0)
		FROM transactions
		WHERE transaction_type = $1`
	var s models.LedgerSummary
	if err := r.db.QueryRow(ctx, query, models.TransactionTypeSettlement).
		Scan(&s.Settlements, &s.GrossVolume, &s.TotalCommission); err != nil {
		return nil, fmt.Errorf("repository.Summary: %w", err)
	}
	return &s, nil
}
