package ledger

import (
	"context"
	"testing"

	"mf-eats-backend/internal/models"
	"mf-eats-backend/pkg/logger"

	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	settlements map[string]models.Transaction // keyed by order id
	delivered   []*models.Order
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{settlements: make(map[string]models.Transaction)}
}

func (f *fakeRepo) InsertSettlement(ctx context.Context, t models.Transaction) (bool, error) {
	if _, exists := f.settlements[t.OrderID]; exists {
		return false, nil
	}
	f.settlements[t.OrderID] = t
	return true, nil
}

func (f *fakeRepo) ListUnsettledDelivered(ctx context.Context, limit int) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range f.delivered {
		if _, settled := f.settlements[o.ID]; !settled {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByOrder(ctx context.Context, orderID string) ([]*models.Transaction, error) {
	t, ok := f.settlements[orderID]
	if !ok {
		return nil, nil
	}
	return []*models.Transaction{&t}, nil
}

func (f *fakeRepo) Summary(ctx context.Context) (*models.LedgerSummary, error) {
	s := &models.LedgerSummary{GrossVolume: decimal.Zero, TotalCommission: decimal.Zero}
	for _, t := range f.settlements {
		s.Settlements++
		s.GrossVolume = s.GrossVolume.Add(t.Amount)
		s.TotalCommission = s.TotalCommission.Add(t.CommissionAmount)
	}
	return s, nil
}

func newTestService(repo *fakeRepo) *Service {
	log := logger.New(logger.Config{Env: "test", Level: "error"})
	return NewService(repo, log, decimal.RequireFromString("0.15"))
}

func deliveredOrder(id string) *models.Order {
	driver := "driver-1"
	return &models.Order{
		ID:           id,
		CustomerID:   "client-1",
		RestaurantID: "rest-1",
		DriverID:     &driver,
		Status:       models.OrderDelivered,
		TotalAmount:  decimal.NewFromInt(6700),
		DeliveryFee:  decimal.NewFromInt(500),
	}
}

func TestBuildSettlementCommission(t *testing.T) {
	tr := BuildSettlement(deliveredOrder("order-1"), decimal.RequireFromString("0.15"))

	if tr.TransactionType != models.TransactionTypeSettlement {
		t.Fatalf("type = %s", tr.TransactionType)
	}
	if !tr.Amount.Equal(decimal.NewFromInt(6700)) {
		t.Fatalf("amount = %s, want 6700", tr.Amount)
	}
	// 6700 * 0.15 = 1005
	if !tr.CommissionAmount.Equal(decimal.NewFromInt(1005)) {
		t.Fatalf("commission = %s, want 1005", tr.CommissionAmount)
	}
}

func TestBuildSettlementRoundsCommission(t *testing.T) {
	order := deliveredOrder("order-1")
	order.TotalAmount = decimal.RequireFromString("3333")

	tr := BuildSettlement(order, decimal.RequireFromString("0.15"))
	// 3333 * 0.15 = 499.95, already at 2 places; a third place must never
	// appear in the ledger.
	if !tr.CommissionAmount.Equal(decimal.RequireFromString("499.95")) {
		t.Fatalf("commission = %s, want 499.95", tr.CommissionAmount)
	}
	if tr.CommissionAmount.Exponent() < -2 {
		t.Fatalf("commission has more than 2 decimal places: %s", tr.CommissionAmount)
	}
}

func TestRecordSettlementIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	order := deliveredOrder("order-1")

	for i := 0; i < 3; i++ {
		if err := svc.RecordSettlement(context.Background(), order); err != nil {
			t.Fatalf("RecordSettlement #%d: %v", i+1, err)
		}
	}
	if len(repo.settlements) != 1 {
		t.Fatalf("settlements = %d, want exactly 1", len(repo.settlements))
	}
}

func TestRecordSettlementRequiresDelivered(t *testing.T) {
	svc := newTestService(newFakeRepo())
	order := deliveredOrder("order-1")
	order.Status = models.OrderInDelivery

	if err := svc.RecordSettlement(context.Background(), order); err == nil {
		t.Fatal("RecordSettlement: expected error for undelivered order")
	}
}

func TestReconcileRepairsMissingSettlements(t *testing.T) {
	repo := newFakeRepo()
	repo.delivered = []*models.Order{deliveredOrder("order-1"), deliveredOrder("order-2")}
	svc := newTestService(repo)

	// One of the two already has its row.
	if err := svc.RecordSettlement(context.Background(), repo.delivered[0]); err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}

	repaired, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("Reconcile: repaired = %d, want 1", repaired)
	}

	// A second sweep finds nothing to do.
	repaired, err = svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if repaired != 0 {
		t.Fatalf("Reconcile replay: repaired = %d, want 0", repaired)
	}
}

func TestSummaryAggregates(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	if err := svc.RecordSettlement(context.Background(), deliveredOrder("order-1")); err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}
	if err := svc.RecordSettlement(context.Background(), deliveredOrder("order-2")); err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}

	s, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.Settlements != 2 {
		t.Fatalf("Summary: settlements = %d, want 2", s.Settlements)
	}
	if !s.GrossVolume.Equal(decimal.NewFromInt(13400)) {
		t.Fatalf("Summary: gross = %s, want 13400", s.GrossVolume)
	}
	if !s.TotalCommission.Equal(decimal.NewFromInt(2010)) {
		t.Fatalf("Summary: commission = %s, want 2010", s.TotalCommission)
	}
}
