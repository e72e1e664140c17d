package ledger

import (
	"context"
	"fmt"

	"mf-eats-backend/internal/models"
	"mf-eats-backend/pkg/logger"

	"github.com/shopspring/decimal"
)

// BuildSettlement derives the immutable settlement row for a delivered
// order. The commission is rounded to 2 decimal places; amount and rate are
// recorded alongside so the row stays auditable if the configured rate
// changes later.
func BuildSettlement(order *models.Order, rate decimal.Decimal) models.Transaction {
	restaurantID := order.RestaurantID
	return models.Transaction{
		OrderID:          order.ID,
		RestaurantID:     &restaurantID,
		DriverID:         order.DriverID,
		TransactionType:  models.TransactionTypeSettlement,
		Amount:           order.TotalAmount,
		CommissionRate:   rate,
		CommissionAmount: order.TotalAmount.Mul(rate).Round(2),
	}
}

// ServiceInterface is the ledger recorder's contract.
type ServiceInterface interface {
	// RecordSettlement writes the settlement for a delivered order.
	// Idempotent: replays and races collapse into the single existing row.
	RecordSettlement(ctx context.Context, order *models.Order) error
	// Reconcile repairs delivered orders whose settlement insert was lost,
	// returning how many rows it wrote. Safe to run on a ticker.
	Reconcile(ctx context.Context) (int, error)
	OrderHistory(ctx context.Context, orderID string) ([]*models.Transaction, error)
	Summary(ctx context.Context) (*models.LedgerSummary, error)
}

// Service implements ServiceInterface.
type Service struct {
	repo RepositoryInterface
	log  *logger.Logger
	rate decimal.Decimal
}

func NewService(repo RepositoryInterface, log *logger.Logger, commissionRate decimal.Decimal) *Service {
	return &Service{repo: repo, log: log, rate: commissionRate}
}

func (s *Service) RecordSettlement(ctx context.Context, order *models.Order) error {
	if order.Status != models.OrderDelivered {
		return fmt.Errorf("service.RecordSettlement: order %s is %s, not delivered: %w",
			order.ID, order.Status, models.ErrInvalidTransition)
	}
	inserted, err := s.repo.InsertSettlement(ctx, BuildSettlement(order, s.rate))
	if err != nil {
		return fmt.Errorf("service.RecordSettlement: %w", err)
	}
	if !inserted {
		s.log.Debug().Str("order_id", order.ID).Msg("settlement already recorded")
	}
	return nil
}

func (s *Service) Reconcile(ctx context.Context) (int, error) {
	orders, err := s.repo.ListUnsettledDelivered(ctx, 100)
	if err != nil {
		return 0, fmt.Errorf("service.Reconcile: %w", err)
	}

	repaired := 0
	for _, order := range orders {
		inserted, err := s.repo.InsertSettlement(ctx, BuildSettlement(order, s.rate))
		if err != nil {
			return repaired, fmt.Errorf("service.Reconcile: order %s: %w", order.ID, err)
		}
		if inserted {
			repaired++
			s.log.Info().Str("order_id", order.ID).Msg("reconcile: settlement repaired")
		}
	}
	return repaired, nil
}

func (s *Service) OrderHistory(ctx context.Context, orderID string) ([]*models.Transaction, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *Service) Summary(ctx context.Context) (*models.LedgerSummary, error) {
	return s.repo.Summary(ctx)
}
