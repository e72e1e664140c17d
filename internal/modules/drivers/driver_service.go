package drivers

import (
	"context"
	"fmt"

	"mf-eats-backend/internal/models"
	"mf-eats-backend/pkg/logger"
)

// ServiceInterface is the driver profile contract.
type ServiceInterface interface {
	// Apply registers the principal as a driver pending admin approval.
	Apply(ctx context.Context, userID string, req models.DriverApplication) (*models.Driver, error)
	Me(ctx context.Context, userID string) (*models.Driver, error)
	// SetAvailability toggles whether the driver accepts assignments. Going
	// available (or unavailable) is refused while a delivery is in flight:
	// the dispatch claim owns the flag until the delivery closes.
	SetAvailability(ctx context.Context, userID string, available bool) (*models.Driver, error)
	Ping(ctx context.Context, userID string, loc models.LocationPing) error
	Approve(ctx context.Context, driverID string) error
	ListPendingApproval(ctx context.Context) ([]*models.Driver, error)
}

// Service implements ServiceInterface.
type Service struct {
	repo RepositoryInterface
	log  *logger.Logger
}

func NewService(repo RepositoryInterface, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) Apply(ctx context.Context, userID string, req models.DriverApplication) (*models.Driver, error) {
	d := &models.Driver{
		UserID:        userID,
		VehicleType:   &req.VehicleType,
		LicenseNumber: &req.LicenseNumber,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("service.Apply: %w", err)
	}
	s.log.Info().Str("driver_id", d.ID).Str("user_id", userID).Msg("driver application received")
	return d, nil
}

func (s *Service) Me(ctx context.Context, userID string) (*models.Driver, error) {
	return s.repo.FindByUserID(ctx, userID)
}

func (s *Service) SetAvailability(ctx context.Context, userID string, available bool) (*models.Driver, error) {
	d, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service.SetAvailability: %w", err)
	}

	active, err := s.repo.HasActiveDelivery(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("service.SetAvailability: %w", err)
	}
	if active {
		return nil, models.ErrDriverUnavailableToggle
	}

	if err := s.repo.SetAvailability(ctx, d.ID, available); err != nil {
		return nil, fmt.Errorf("service.SetAvailability: %w", err)
	}
	d.IsAvailable = available
	return d, nil
}

func (s *Service) Ping(ctx context.Context, userID string, loc models.LocationPing) error {
	d, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service.Ping: %w", err)
	}
	if err := s.repo.UpdateLocation(ctx, d.ID, loc.Latitude, loc.Longitude); err != nil {
		return fmt.Errorf("service.Ping: %w", err)
	}
	return nil
}

func (s *Service) Approve(ctx context.Context, driverID string) error {
	if err := s.repo.Approve(ctx, driverID); err != nil {
		return fmt.Errorf("service.Approve: %w", err)
	}
	s.log.Info().Str("driver_id", driverID).Msg("driver approved")
	return nil
}

func (s *Service) ListPendingApproval(ctx context.Context) ([]*models.Driver, error) {
	return s.repo.ListPendingApproval(ctx)
}
