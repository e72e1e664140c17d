package delivery

import (
	"context"
	"errors"
	"fmt"

	"mf-eats-backend/internal/events"
	"mf-eats-backend/internal/models"
	"mf-eats-backend/internal/modules/ledger"
	"mf-eats-backend/internal/statemachine"
	"mf-eats-backend/pkg/logger"

	"github.com/shopspring/decimal"
)

// ServiceInterface is the delivery aggregate's contract. All transitions
// here are driver transitions; releasing a timed-out assignment belongs to
// the dispatch coordinator, not to this interface.
type ServiceInterface interface {
	// Advance moves the caller's delivery one step forward. Entering
	// delivered atomically settles the order.
	Advance(ctx context.Context, driverUserID, deliveryID string, to models.DeliveryStatus) (*models.Delivery, error)
	// Active returns the caller's in-flight delivery, if any.
	Active(ctx context.Context, driverUserID string) (*models.Delivery, error)
	// Track returns the live delivery of an order for its customer, the
	// assigned driver or an admin.
	Track(ctx context.Context, actorID string, role models.Role, orderID string) (*models.Delivery, error)
}

// Service implements ServiceInterface.
type Service struct {
	repo           RepositoryInterface
	bus            *events.Bus
	log            *logger.Logger
	commissionRate decimal.Decimal
}

func NewService(repo RepositoryInterface, bus *events.Bus, log *logger.Logger, commissionRate decimal.Decimal) *Service {
	return &Service{repo: repo, bus: bus, log: log, commissionRate: commissionRate}
}

func (s *Service) Advance(ctx context.Context, driverUserID, deliveryID string, to models.DeliveryStatus) (*models.Delivery, error) {
	d, err := s.repo.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("service.Advance: %w", err)
	}

	owns, err := s.repo.IsDriverUser(ctx, d.DriverID, driverUserID)
	if err != nil {
		return nil, fmt.Errorf("service.Advance: %w", err)
	}
	if !owns {
		return nil, models.ErrForbidden
	}
	if err := statemachine.CanAdvanceDelivery(d.Status, to, statemachine.ActorDriver); err != nil {
		return nil, err
	}

	if to == models.DeliveryDelivered {
		return s.markDelivered(ctx, d)
	}

	if err := s.repo.AdvanceStatus(ctx, deliveryID, d.Status, to); err != nil {
		return nil, fmt.Errorf("service.Advance: %w", err)
	}
	d.Status = to
	s.bus.Publish(events.Event{Topic: events.TopicDeliveriesChanged, Key: d.ID})
	return d, nil
}

// markDelivered performs the handoff-closing transaction. The settlement row
// is computed up front from the order and written inside the same
// transaction as both status changes, so a crash can never leave a
// delivered order without its ledger entry or vice versa.
func (s *Service) markDelivered(ctx context.Context, d *models.Delivery) (*models.Delivery, error) {
	order, err := s.repo.FindOrder(ctx, d.OrderID)
	if err != nil {
		return nil, fmt.Errorf("service.markDelivered: %w", err)
	}

	settlement := ledger.BuildSettlement(order, s.commissionRate)
	if err := s.repo.MarkDelivered(ctx, d.ID, settlement); err != nil {
		if errors.Is(err, models.ErrIntegrityViolation) {
			s.log.Error().
				Str("delivery_id", d.ID).
				Str("order_id", d.OrderID).
				Msg("delivery and order state disagree, transaction rolled back")
		}
		return nil, fmt.Errorf("service.markDelivered: %w", err)
	}

	s.bus.Publish(events.Event{Topic: events.TopicDeliveriesChanged, Key: d.ID})
	s.bus.Publish(events.Event{Topic: events.TopicOrdersChanged, Key: d.OrderID})

	return s.repo.FindByID(ctx, d.ID)
}

func (s *Service) Active(ctx context.Context, driverUserID string) (*models.Delivery, error) {
	return s.repo.FindActiveByDriverUser(ctx, driverUserID)
}

func (s *Service) Track(ctx context.Context, actorID string, role models.Role, orderID string) (*models.Delivery, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.Track: %w", err)
	}

	switch role {
	case models.RoleAdmin:
	case models.RoleClient:
		if order.CustomerID != actorID {
			return nil, models.ErrForbidden
		}
	case models.RoleDriver:
		if order.DriverID == nil {
			return nil, models.ErrForbidden
		}
		owns, err := s.repo.IsDriverUser(ctx, *order.DriverID, actorID)
		if err != nil {
			return nil, fmt.Errorf("service.Track: %w", err)
		}
		if !owns {
			return nil, models.ErrForbidden
		}
	default:
		return nil, models.ErrForbidden
	}

	return s.repo.FindActiveByOrder(ctx, orderID)
}
