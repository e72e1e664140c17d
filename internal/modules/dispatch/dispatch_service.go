package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mf-eats-backend/internal/events"
	"mf-eats-backend/internal/models"
	"mf-eats-backend/pkg/logger"
)

// ServiceInterface is the dispatch coordinator's contract.
type ServiceInterface interface {
	// Dispatch hands one ready order to a driver. Concurrency outcomes are
	// typed: ErrAlreadyDispatched when the order was taken, ErrNoDriverAvailable
	// when every eligible driver was claimed away.
	Dispatch(ctx context.Context, orderID string) (*models.Delivery, error)
	// DispatchReady sweeps every ready unassigned order once, returning how
	// many were handed off. Orders with no available driver stay ready.
	DispatchReady(ctx context.Context) (int, error)
	// ReleaseExpired returns timed-out assignments to the pool.
	ReleaseExpired(ctx context.Context, window time.Duration) (int, error)
}

// Service implements ServiceInterface.
type Service struct {
	repo     RepositoryInterface
	strategy SelectionStrategy
	bus      *events.Bus
	log      *logger.Logger
}

func NewService(repo RepositoryInterface, strategy SelectionStrategy, bus *events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, strategy: strategy, bus: bus, log: log}
}

func (s *Service) Dispatch(ctx context.Context, orderID string) (*models.Delivery, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.Dispatch: %w", err)
	}
	switch order.Status {
	case models.OrderReady:
	case models.OrderInDelivery:
		return nil, models.ErrAlreadyDispatched
	default:
		return nil, models.ErrInvalidTransition
	}

	candidates, err := s.repo.ListEligibleDrivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.Dispatch: %w", err)
	}
	if len(candidates) == 0 {
		return nil, models.ErrNoDriverAvailable
	}

	for _, driver := range s.strategy.Rank(order, candidates) {
		if err := s.repo.ClaimDriver(ctx, driver.ID); err != nil {
			if errors.Is(err, models.ErrAlreadyClaimed) {
				// Lost the race for this driver, try the next one.
				continue
			}
			return nil, fmt.Errorf("service.Dispatch: %w", err)
		}

		delivery, err := s.repo.AssignDelivery(ctx, orderID, driver.ID)
		if err != nil {
			// The claim must not leak regardless of why assignment failed.
			if uerr := s.repo.UnclaimDriver(ctx, driver.ID); uerr != nil {
				s.log.Error().Err(uerr).Str("driver_id", driver.ID).Msg("dispatch: unclaim failed")
			}
			if errors.Is(err, models.ErrAlreadyDispatched) {
				return nil, models.ErrAlreadyDispatched
			}
			return nil, fmt.Errorf("service.Dispatch: %w", err)
		}

		s.log.Info().
			Str("order_id", orderID).
			Str("driver_id", driver.ID).
			Str("delivery_id", delivery.ID).
			Msg("order dispatched")
		s.bus.Publish(events.Event{Topic: events.TopicOrdersChanged, Key: orderID})
		s.bus.Publish(events.Event{Topic: events.TopicDeliveriesChanged, Key: delivery.ID})
		return delivery, nil
	}

	// Everyone eligible was claimed by concurrent dispatches.
	return nil, models.ErrNoDriverAvailable
}

func (s *Service) DispatchReady(ctx context.Context) (int, error) {
	ids, err := s.repo.ListReadyUnassigned(ctx, 50)
	if err != nil {
		return 0, fmt.Errorf("service.DispatchReady: %w", err)
	}

	dispatched := 0
	for _, id := range ids {
		if _, err := s.Dispatch(ctx, id); err != nil {
			if errors.Is(err, models.ErrNoDriverAvailable) {
				// The pool is drained; later orders cannot do better now.
				break
			}
			if errors.Is(err, models.ErrAlreadyDispatched) || errors.Is(err, models.ErrInvalidTransition) {
				continue
			}
			return dispatched, err
		}
		dispatched++
	}
	return dispatched, nil
}

func (s *Service) ReleaseExpired(ctx context.Context, window time.Duration) (int, error) {
	expired, err := s.repo.ListExpiredAssigned(ctx, time.Now().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("service.ReleaseExpired: %w", err)
	}

	released := 0
	for _, d := range expired {
		if err := s.repo.Release(ctx, d.ID); err != nil {
			if errors.Is(err, models.ErrInvalidTransition) {
				// The driver accepted in the meantime; leave it alone.
				continue
			}
			return released, fmt.Errorf("service.ReleaseExpired: delivery %s: %w", d.ID, err)
		}
		released++
		s.log.Warn().
			Str("delivery_id", d.ID).
			Str("order_id", d.OrderID).
			Str("driver_id", d.DriverID).
			Msg("assignment timed out, order returned to pool")
		s.bus.Publish(events.Event{Topic: events.TopicOrdersChanged, Key: d.OrderID})
		s.bus.Publish(events.Event{Topic: events.TopicDeliveriesChanged, Key: d.ID})
	}
	return released, nil
}
