package identity

import (
	"context"
	"errors"
	"fmt"

	"mf-eats-backend/internal/models"
	"mf-eats-backend/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the store operations the identity module
// needs: profile CRUD, credential lookup and the role row.
type RepositoryInterface interface {
	CreateProfile(ctx context.Context, p *models.Profile, passwordHash string, role models.Role) error
	FindProfileByID(ctx context.Context, id string) (*models.Profile, error)
	// FindCredentialsByEmail returns the profile and its password hash.
	FindCredentialsByEmail(ctx context.Context, email string) (*models.Profile, string, error)
	// FindRole returns the principal's role, or "" with no error when no
	// role row exists. A missing role row is a normal state, not a failure.
	FindRole(ctx context.Context, userID string) (models.Role, error)
	// UpsertRole assigns or reassigns a role (admin out-of-band operation).
	UpsertRole(ctx context.Context, userID string, role models.Role) error
}

// Repository implements RepositoryInterface over PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

// CreateProfile inserts the profile and, when a role was chosen at signup,
// its role row, in one transaction. A profile without a role row is valid.
func (r *Repository) CreateProfile(ctx context.Context, p *models.Profile, passwordHash string, role models.Role) error {
	return storage.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const insertProfile = `
			INSERT INTO profiles (full_name, email, phone, password_hash)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, insertProfile, p.FullName, p.Email, p.Phone, passwordHash).
			Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			if storage.IsUniqueViolation(err) {
				return models.ErrEmailTaken
			}
			return fmt.Errorf("repository.CreateProfile: %w", err)
		}

		if role == "" {
			return nil
		}
		const insertRole = `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`
		if _, err := tx.Exec(ctx, insertRole, p.ID, role); err != nil {
			return fmt.Errorf("repository.CreateProfile: role row: %w", err)
		}
		return nil
	})
}

func (r *Repository) FindProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	const query = `
		SELECT id, full_name, email, phone, avatar_url, created_at, updated_at
		FROM profiles
		WHERE id = $1`
	p := &models.Profile{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.FullName, &p.Email, &p.Phone, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindProfileByID: %w", err)
	}
	return p, nil
}

func (r *Repository) FindCredentialsByEmail(ctx context.Context, email string) (*models.Profile, string, error) {
	const query = `
		SELECT id, full_name, email, phone, avatar_url, password_hash, created_at, updated_at
		FROM profiles
		WHERE email = $1`
	p := &models.Profile{}
	var hash string
	err := r.db.QueryRow(ctx, query, email).Scan(
		&p.ID, &p.FullName, &p.Email, &p.Phone, &p.AvatarURL, &hash, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", models.ErrNotFound
		}
		return nil, "", fmt.Errorf("repository.FindCredentialsByEmail: %w", err)
	}
	return p, hash, nil
}

func (r *Repository) FindRole(ctx context.Context, userID string) (models.Role, error) {
	const query = `SELECT role FROM user_roles WHERE user_id = $1`
	var role models.Role
	err := r.db.QueryRow(ctx, query, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("repository.FindRole: %w", err)
	}
	return role, nil
}

func (r *Repository) UpsertRole(ctx context.Context, userID string, role models.Role) error {
	const query = `
		INSERT INTO user_roles (user_id, role)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`
	if _, err := r.db.Exec(ctx, query, userID, role); err != nil {
		return fmt.Errorf("repository.UpsertRole: %w", err)
	}
	return nil
}
