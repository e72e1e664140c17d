package restaurants

import (
	"context"
	"errors"
	"fmt"

	"mf-eats-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the store operations for restaurants and
// their menus.
type RepositoryInterface interface {
	Create(ctx context.Context, r *models.Restaurant) error
	FindByID(ctx context.Context, id string) (*models.Restaurant, error)
	FindByOwner(ctx context.Context, ownerID string) (*models.Restaurant, error)
	ListActive(ctx context.Context, page, limit int) ([]*models.Restaurant, int, error)
	SetActive(ctx context.Context, id string, active bool) error

	InsertMenuItem(ctx context.Context, mi *models.MenuItem) error
	UpdateMenuItem(ctx context.Context, mi *models.MenuItem) error
	ListMenu(ctx context.Context, restaurantID string, availableOnly bool) ([]*models.MenuItem, error)
	FindMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
}

// Repository implements RepositoryInterface over PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const restaurantColumns = `id, owner_id, name, description, address, phone, latitude, longitude, is_active, created_at, updated_at`

func scanRestaurant(row pgx.Row) (*models.Restaurant, error) {
	var r models.Restaurant
	err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Description, &r.Address,
		&r.Phone, &r.Latitude, &r.Longitude, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Repository) Create(ctx context.Context, rest *models.Restaurant) error {
	const query = `
		INSERT INTO restaurants (owner_id, name, description, address, phone, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_active, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		rest.OwnerID, rest.Name, rest.Description, rest.Address, rest.Phone, rest.Latitude, rest.Longitude,
	).Scan(&rest.ID, &rest.IsActive, &rest.CreatedAt, &rest.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Create: %w", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*models.Restaurant, error) {
	query := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = $1`
	rest, err := scanRestaurant(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return rest, nil
}

func (r *Repository) FindByOwner(ctx context.Context, ownerID string) (*models.Restaurant, error) {
	query := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE owner_id = $1`
	rest, err := scanRestaurant(r.db.QueryRow(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindByOwner: %w", err)
	}
	return rest, nil
}

func (r *Repository) ListActive(ctx context.Context, page, limit int) ([]*models.Restaurant, int, error) {
	query := `SELECT ` + restaurantColumns + `
		FROM restaurants
		WHERE is_active
		ORDER BY name
		LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListActive: %w", err)
	}
	defer rows.Close()

	var out []*models.Restaurant
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListActive: %w", err)
		}
		out = append(out, rest)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository.ListActive: %w", err)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM restaurants WHERE is_active`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.ListActive: count: %w", err)
	}
	return out, total, nil
}

func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE restaurants SET is_active = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("repository.SetActive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

const menuColumns = `id, restaurant_id, name, description, category, price, is_available, created_at, updated_at`

func scanMenuItem(row pgx.Row) (*models.MenuItem, error) {
	var mi models.MenuItem
	err := row.Scan(&mi.ID, &mi.RestaurantID, &mi.Name, &mi.Description, &mi.Category,
		&mi.Price, &mi.IsAvailable, &mi.CreatedAt, &mi.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &mi, nil
}

func (r *Repository) InsertMenuItem(ctx context.Context, mi *models.MenuItem) error {
	const query = `
		INSERT INTO menu_items (restaurant_id, name, description, category, price, is_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		mi.RestaurantID, mi.Name, mi.Description, mi.Category, mi.Price, mi.IsAvailable,
	).Scan(&mi.ID, &mi.CreatedAt, &mi.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.InsertMenuItem: %w", err)
	}
	return nil
}

func (r *Repository) UpdateMenuItem(ctx context.Context, mi *models.MenuItem) error {
	const query = `
		UPDATE menu_items
		SET name = $2, description = $3, category = $4, price = $5, is_available = $6, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, mi.ID, mi.Name, mi.Description, mi.Category, mi.Price, mi.IsAvailable)
	if err != nil {
		return fmt.Errorf("repository.UpdateMenuItem: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) ListMenu(ctx context.Context, restaurantID string, availableOnly bool) ([]*models.MenuItem, error) {
	query := `SELECT ` + menuColumns + `
		FROM menu_items
		WHERE restaurant_id = $1 AND ($2 = false OR is_available)
		ORDER BY category NULLS LAST, name`
	rows, err := r.db.Query(ctx, query, restaurantID, availableOnly)
	if err != nil {
		return nil, fmt.Errorf("repository.ListMenu: %w", err)
	}
	defer rows.Close()

	var out []*models.MenuItem
	for rows.Next() {
		mi, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ListMenu: %w", err)
		}
		out = append(out, mi)
	}
	return out, rows.Err()
}

func (r *Repository) FindMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	query := `SELECT ` + menuColumns + ` FROM menu_items WHERE id = $1`
	mi, err := scanMenuItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindMenuItem: %w", err)
	}
	return mi, nil
}
