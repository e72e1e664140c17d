package drivers

import (
	"context"
	"errors"
	"fmt"

	"mf-eats-backend/internal/models"
	"mf-eats-backend/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the store operations for driver profiles.
type RepositoryInterface interface {
	Create(ctx context.Context, d *models.Driver) error
	FindByUserID(ctx context.Context, userID string) (*models.Driver, error)
	// HasActiveDelivery reports whether the driver currently holds an
	// assignment that is neither delivered nor released.
	HasActiveDelivery(ctx context.Context, driverID string) (bool, error)
	SetAvailability(ctx context.Context, driverID string, available bool) error
	UpdateLocation(ctx context.Context, driverID string, lat, lon float64) error
	Approve(ctx context.Context, driverID string) error
	ListPendingApproval(ctx context.Context) ([]*models.Driver, error)
}

// Repository implements RepositoryInterface over PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const driverColumns = `id, user_id, vehicle_type, license_number, is_available, is_approved,
	current_latitude, current_longitude, total_deliveries, rating, created_at, updated_at`

func scanDriver(row pgx.Row) (*models.Driver, error) {
	var d models.Driver
	err := row.Scan(&d.ID, &d.UserID, &d.VehicleType, &d.LicenseNumber,
		&d.IsAvailable, &d.IsApproved, &d.CurrentLatitude, &d.CurrentLongitude,
		&d.TotalDeliveries, &d.Rating, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) Create(ctx context.Context, d *models.Driver) error {
	const query = `
		INSERT INTO drivers (user_id, vehicle_type, license_number)
		VALUES ($1, $2, $3)
		RETURNING id, is_available, is_approved, total_deliveries, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, d.UserID, d.VehicleType, d.LicenseNumber).
		Scan(&d.ID, &d.IsAvailable, &d.IsApproved, &d.TotalDeliveries, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return models.ErrConflict
		}
		return fmt.Errorf("repository.Create: %w", err)
	}
	return nil
}

func (r *Repository) FindByUserID(ctx context.Context, userID string) (*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE user_id = $1`
	d, err := scanDriver(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindByUserID: %w", err)
	}
	return d, nil
}

func (r *Repository) HasActiveDelivery(ctx context.Context, driverID string) (bool, error) {
	var active bool
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM deliveries
			WHERE driver_id = $1 AND status NOT IN ('delivered', 'released')
		)`
	if err := r.db.QueryRow(ctx, query, driverID).Scan(&active); err != nil {
		return false, fmt.Errorf("repository.HasActiveDelivery: %w", err)
	}
	return active, nil
}

func (r *Repository) SetAvailability(ctx context.Context, driverID string, available bool) error {
	const query = `UPDATE drivers SET is_available = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, driverID, available)
	if err != nil {
		return fmt.Errorf("repository.SetAvailability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateLocation(ctx context.Context, driverID string, lat, lon float64) error {
	const query = `
		UPDATE drivers
		SET current_latitude = $2, current_longitude = $3, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, driverID, lat, lon)
	if err != nil {
		return fmt.Errorf("repository.UpdateLocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) Approve(ctx context.Context, driverID string) error {
	const query = `UPDATE drivers SET is_approved = true, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, driverID)
	if err != nil {
		return fmt.Errorf("repository.Approve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) ListPendingApproval(ctx context.Context) ([]*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE NOT is_approved ORDER BY created_at`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository.ListPendingApproval: %w", err)
	}
	defer rows.Close()

	var out []*models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ListPendingApproval: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
