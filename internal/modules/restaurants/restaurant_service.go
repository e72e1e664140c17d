package restaurants

import (
	"context"
	"fmt"

	"mf-eats-backend/internal/models"
	"mf-eats-backend/pkg/logger"

	"github.com/shopspring/decimal"
)

// ServiceInterface is the restaurant and menu management contract. Public
// reads are unrestricted; every mutation is owner-only.
type ServiceInterface interface {
	Create(ctx context.Context, ownerID string, req models.CreateRestaurantRequest) (*models.Restaurant, error)
	Mine(ctx context.Context, ownerID string) (*models.Restaurant, error)
	Get(ctx context.Context, id string) (*models.Restaurant, error)
	ListActive(ctx context.Context, page, limit int) ([]*models.Restaurant, int, error)
	SetActive(ctx context.Context, ownerID, restaurantID string, active bool) error

	AddMenuItem(ctx context.Context, ownerID, restaurantID string, req models.UpsertMenuItemRequest) (*models.MenuItem, error)
	UpdateMenuItem(ctx context.Context, ownerID, itemID string, req models.UpsertMenuItemRequest) (*models.MenuItem, error)
	// Menu lists a restaurant's items; owners see everything, everyone
	// else only what is available.
	Menu(ctx context.Context, actorID, restaurantID string) ([]*models.MenuItem, error)
}

// Service implements ServiceInterface.
type Service struct {
	repo RepositoryInterface
	log  *logger.Logger
}

func NewService(repo RepositoryInterface, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) Create(ctx context.Context, ownerID string, req models.CreateRestaurantRequest) (*models.Restaurant, error) {
	rest := &models.Restaurant{
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		Phone:       req.Phone,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if err := s.repo.Create(ctx, rest); err != nil {
		return nil, fmt.Errorf("service.Create: %w", err)
	}
	s.log.Info().Str("restaurant_id", rest.ID).Str("owner_id", ownerID).Msg("restaurant created")
	return rest, nil
}

func (s *Service) Mine(ctx context.Context, ownerID string) (*models.Restaurant, error) {
	return s.repo.FindByOwner(ctx, ownerID)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Restaurant, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ListActive(ctx context.Context, page, limit int) ([]*models.Restaurant, int, error) {
	return s.repo.ListActive(ctx, page, limit)
}

func (s *Service) SetActive(ctx context.Context, ownerID, restaurantID string, active bool) error {
	if err := s.requireOwner(ctx, ownerID, restaurantID); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, restaurantID, active); err != nil {
		return fmt.Errorf("service.SetActive: %w", err)
	}
	return nil
}

func (s *Service) AddMenuItem(ctx context.Context, ownerID, restaurantID string, req models.UpsertMenuItemRequest) (*models.MenuItem, error) {
	if err := s.requireOwner(ctx, ownerID, restaurantID); err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return nil, fmt.Errorf("service.AddMenuItem: invalid price %q", req.Price)
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	mi := &models.MenuItem{
		RestaurantID: restaurantID,
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		Price:        price,
		IsAvailable:  available,
	}
	if err := s.repo.InsertMenuItem(ctx, mi); err != nil {
		return nil, fmt.Errorf("service.AddMenuItem: %w", err)
	}
	return mi, nil
}

func (s *Service) UpdateMenuItem(ctx context.Context, ownerID, itemID string, req models.UpsertMenuItemRequest) (*models.MenuItem, error) {
	mi, err := s.repo.FindMenuItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("service.UpdateMenuItem: %w", err)
	}
	if err := s.requireOwner(ctx, ownerID, mi.RestaurantID); err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return nil, fmt.Errorf("service.UpdateMenuItem: invalid price %q", req.Price)
	}

	mi.Name = req.Name
	mi.Description = req.Description
	mi.Category = req.Category
	mi.Price = price
	if req.IsAvailable != nil {
		mi.IsAvailable = *req.IsAvailable
	}
	if err := s.repo.UpdateMenuItem(ctx, mi); err != nil {
		return nil, fmt.Errorf("service.UpdateMenuItem: %w", err)
	}
	return mi, nil
}

func (s *Service) Menu(ctx context.Context, actorID, restaurantID string) ([]*models.MenuItem, error) {
	rest, err := s.repo.FindByID(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("service.Menu: %w", err)
	}
	availableOnly := rest.OwnerID != actorID
	return s.repo.ListMenu(ctx, restaurantID, availableOnly)
}

func (s *Service) requireOwner(ctx context.Context, ownerID, restaurantID string) error {
	rest, err := s.repo.FindByID(ctx, restaurantID)
	if err != nil {
		return fmt.Errorf("service.requireOwner: %w", err)
	}
	if rest.OwnerID != ownerID {
		return models.ErrForbidden
	}
	return nil
}
