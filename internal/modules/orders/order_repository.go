package orders

import (
	"context"
	"errors"
	"fmt"

	"mf-eats-backend/internal/models"
	"mf-eats-backend/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the store operations the order aggregate
// needs. Status changes are conditional updates on the expected current
// status; a zero-row update against an existing order means the state moved
// underneath the caller and surfaces as ErrInvalidTransition.
type RepositoryInterface interface {
	// CreateOrder inserts the order and its line items in one transaction
	// and fills in generated fields on o.
	CreateOrder(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID string, page, limit int) ([]*models.Order, int, error)
	// ListByRestaurant is the kitchen inbox; status filters when non-nil.
	ListByRestaurant(ctx context.Context, restaurantID string, status *models.OrderStatus, page, limit int) ([]*models.Order, int, error)
	// AdvanceStatus moves the order from exactly the observed status to the
	// next one.
	AdvanceStatus(ctx context.Context, orderID string, from, to models.OrderStatus) error

	// Checkout support: the aggregate snapshots menu data at order time.
	FindActiveRestaurant(ctx context.Context, restaurantID string) (*models.Restaurant, error)
	FindAvailableMenuItems(ctx context.Context, restaurantID string, ids []string) (map[string]*models.MenuItem, error)
	IsRestaurantOwner(ctx context.Context, restaurantID, userID string) (bool, error)
	// IsAssignedDriver reports whether userID's driver record holds the
	// order's assignment.
	IsAssignedDriver(ctx context.Context, orderID, userID string) (bool, error)
	FindCustomerEmail(ctx context.Context, customerID string) (string, error)
}

// Repository implements RepositoryInterface over PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const orderColumns = `id, customer_id, restaurant_id, driver_id, status, total_amount,
	delivery_fee, payment_method, delivery_address, delivery_latitude,
	delivery_longitude, customer_notes, created_at, updated_at`

func (r *Repository) CreateOrder(ctx context.Context, o *models.Order) error {
	return storage.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const insertOrder = `
			INSERT INTO orders (customer_id, restaurant_id, status, total_amount, delivery_fee,
				payment_method, delivery_address, delivery_latitude, delivery_longitude, customer_notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, insertOrder,
			o.CustomerID, o.RestaurantID, o.Status, o.TotalAmount, o.DeliveryFee,
			o.PaymentMethod, o.DeliveryAddress, o.DeliveryLatitude, o.DeliveryLongitude, o.CustomerNotes,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("repository.CreateOrder: %w", err)
		}

		const insertItem = `
			INSERT INTO order_items (order_id, menu_item_id, menu_item_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`
		for i := range o.Items {
			item := &o.Items[i]
			item.OrderID = o.ID
			if err := tx.QueryRow(ctx, insertItem,
				o.ID, item.MenuItemID, item.MenuItemName, item.Quantity, item.UnitPrice,
			).Scan(&item.ID); err != nil {
				return fmt.Errorf("repository.CreateOrder: line item: %w", err)
			}
		}
		return nil
	})
}

func (r *Repository) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.db.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}

	items, err := r.itemsFor(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	o.Items = items
	return o, nil
}

func (r *Repository) itemsFor(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	const query = `
		SELECT id, order_id, menu_item_id, menu_item_name, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.MenuItemName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) ListByCustomer(ctx context.Context, customerID string, page, limit int) ([]*models.Order, int, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	orders, err := r.listOrders(ctx, query, customerID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByCustomer: %w", err)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id = $1`, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.ListByCustomer: count: %w", err)
	}
	return orders, total, nil
}

func (r *Repository) ListByRestaurant(ctx context.Context, restaurantID string, status *models.OrderStatus, page, limit int) ([]*models.Order, int, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE restaurant_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.db.Query(ctx, query, restaurantID, status, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByRestaurant: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByRestaurant: %w", err)
	}

	var total int
	const count = `SELECT COUNT(*) FROM orders WHERE restaurant_id = $1 AND ($2::text IS NULL OR status = $2)`
	if err := r.db.QueryRow(ctx, count, restaurantID, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.ListByRestaurant: count: %w", err)
	}
	return orders, total, nil
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]*models.Order, error) {
	defer rows.Close()
	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.RestaurantID, &o.DriverID, &o.Status,
		&o.TotalAmount, &o.DeliveryFee, &o.PaymentMethod, &o.DeliveryAddress,
		&o.DeliveryLatitude, &o.DeliveryLongitude, &o.CustomerNotes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// AdvanceStatus is the conditional update at the heart of the state
// machine: the WHERE clause pins the expected current status, so a
// concurrent writer makes this a zero-row update instead of a lost update.
func (r *Repository) AdvanceStatus(ctx context.Context, orderID string, from, to models.OrderStatus) error {
	const query = `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`
	tag, err := r.db.Exec(ctx, query, orderID, from, to)
	if err != nil {
		return fmt.Errorf("repository.AdvanceStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return fmt.Errorf("repository.AdvanceStatus: %w", err)
		}
		if !exists {
			return models.ErrNotFound
		}
		// The order moved between read and write.
		return models.ErrInvalidTransition
	}
	return nil
}

func (r *Repository) FindActiveRestaurant(ctx context.Context, restaurantID string) (*models.Restaurant, error) {
	const query = `
		SELECT id, owner_id, name, description, address, phone, latitude, longitude, is_active, created_at, updated_at
		FROM restaurants
		WHERE id = $1 AND is_active`
	var rest models.Restaurant
	err := r.db.QueryRow(ctx, query, restaurantID).Scan(
		&rest.ID, &rest.OwnerID, &rest.Name, &rest.Description, &rest.Address,
		&rest.Phone, &rest.Latitude, &rest.Longitude, &rest.IsActive,
		&rest.CreatedAt, &rest.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindActiveRestaurant: %w", err)
	}
	return &rest, nil
}

func (r *Repository) FindAvailableMenuItems(ctx context.Context, restaurantID string, ids []string) (map[string]*models.MenuItem, error) {
	const query = `
		SELECT id, restaurant_id, name, description, category, price, is_available, created_at, updated_at
		FROM menu_items
		WHERE restaurant_id = $1 AND is_available AND id = ANY($2)`
	rows, err := r.db.Query(ctx, query, restaurantID, ids)
	if err != nil {
		return nil, fmt.Errorf("repository.FindAvailableMenuItems: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.MenuItem, len(ids))
	for rows.Next() {
		var mi models.MenuItem
		if err := rows.Scan(&mi.ID, &mi.RestaurantID, &mi.Name, &mi.Description, &mi.Category,
			&mi.Price, &mi.IsAvailable, &mi.CreatedAt, &mi.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository.FindAvailableMenuItems: %w", err)
		}
		out[mi.ID] = &mi
	}
	return out, rows.Err()
}

func (r *Repository) IsRestaurantOwner(ctx context.Context, restaurantID, userID string) (bool, error) {
	var owner bool
	const query = `SELECT EXISTS (SELECT 1 FROM restaurants WHERE id = $1 AND owner_id = $2)`
	if err := r.db.QueryRow(ctx, query, restaurantID, userID).Scan(&owner); err != nil {
		return false, fmt.Errorf("repository.IsRestaurantOwner: %w", err)
	}
	return owner, nil
}

func (r *Repository) IsAssignedDriver(ctx context.Context, orderID, userID string) (bool, error) {
	var assigned bool
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN drivers d ON d.id = o.driver_id
			WHERE o.id = $1 AND d.user_id = $2
		)`
	if err := r.db.QueryRow(ctx, query, orderID, userID).Scan(&assigned); err != nil {
		return false, fmt.Errorf("repository.IsAssignedDriver: %w", err)
	}
	return assigned, nil
}

func (r *Repository) FindCustomerEmail(ctx context.Context, customerID string) (string, error) {
	var email string
	err := r.db.QueryRow(ctx, `SELECT email FROM profiles WHERE id = $1`, customerID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("repository.FindCustomerEmail: %w", err)
	}
	return email, nil
}
