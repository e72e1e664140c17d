package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"mf-eats-backend/internal/events"
	"mf-eats-backend/internal/models"
	"mf-eats-backend/pkg/logger"

	"github.com/shopspring/decimal"
)

type fakeDriver struct {
	userID          string
	isAvailable     bool
	totalDeliveries int
}

// fakeRepo mimics the real repository, including the all-or-nothing
// semantics of MarkDelivered.
type fakeRepo struct {
	deliveries  map[string]*models.Delivery
	orders      map[string]*models.Order
	drivers     map[string]*fakeDriver
	settlements map[string]models.Transaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		deliveries:  make(map[string]*models.Delivery),
		orders:      make(map[string]*models.Order),
		drivers:     make(map[string]*fakeDriver),
		settlements: make(map[string]models.Transaction),
	}
}

func (f *fakeRepo) FindByID(ctx context.Context, id string) (*models.Delivery, error) {
	d, ok := f.deliveries[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeRepo) FindActiveByOrder(ctx context.Context, orderID string) (*models.Delivery, error) {
	for _, d := range f.deliveries {
		if d.OrderID == orderID && d.Status.Active() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeRepo) FindActiveByDriverUser(ctx context.Context, userID string) (*models.Delivery, error) {
	for _, d := range f.deliveries {
		if !d.Status.Active() {
			continue
		}
		if dr, ok := f.drivers[d.DriverID]; ok && dr.userID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeRepo) IsDriverUser(ctx context.Context, driverID, userID string) (bool, error) {
	dr, ok := f.drivers[driverID]
	return ok && dr.userID == userID, nil
}

func (f *fakeRepo) FindOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeRepo) AdvanceStatus(ctx context.Context, deliveryID string, from, to models.DeliveryStatus) error {
	d, ok := f.deliveries[deliveryID]
	if !ok {
		return models.ErrNotFound
	}
	if d.Status != from {
		return models.ErrInvalidTransition
	}
	d.Status = to
	if to == models.DeliveryPickedUp && d.PickedUpAt == nil {
		now := time.Now()
		d.PickedUpAt = &now
	}
	return nil
}

func (f *fakeRepo) MarkDelivered(ctx context.Context, deliveryID string, settlement models.Transaction) error {
	d, ok := f.deliveries[deliveryID]
	if !ok || d.Status != models.DeliveryInTransit {
		return models.ErrInvalidTransition
	}
	o, ok := f.orders[d.OrderID]
	if !ok || o.Status != models.OrderInDelivery {
		return models.ErrIntegrityViolation
	}

	d.Status = models.DeliveryDelivered
	now := time.Now()
	d.DeliveredAt = &now
	o.Status = models.OrderDelivered
	if _, exists := f.settlements[settlement.OrderID]; !exists {
		f.settlements[settlement.OrderID] = settlement
	}
	if dr, ok := f.drivers[d.DriverID]; ok {
		dr.isAvailable = true
		dr.totalDeliveries++
	}
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	log := logger.New(logger.Config{Env: "test", Level: "error"})
	return NewService(repo, events.NewBus(), log, decimal.RequireFromString("0.15"))
}

// seedHandoff sets up an order mid-delivery: driver claimed, delivery
// assigned, order in_delivery.
func seedHandoff(repo *fakeRepo, status models.DeliveryStatus) {
	driverRow := "driver-1"
	repo.drivers[driverRow] = &fakeDriver{userID: "user-driver-1"}
	repo.orders["order-1"] = &models.Order{
		ID: "order-1", CustomerID: "client-1", RestaurantID: "rest-1",
		DriverID: &driverRow, Status: models.OrderInDelivery,
		TotalAmount: decimal.NewFromInt(6700), DeliveryFee: decimal.NewFromInt(500),
		PaymentMethod: models.PayWave,
	}
	repo.deliveries["dlv-1"] = &models.Delivery{
		ID: "dlv-1", OrderID: "order-1", DriverID: driverRow, Status: status,
	}
}

func TestAdvanceDriverForwardPath(t *testing.T) {
	repo := newFakeRepo()
	seedHandoff(repo, models.DeliveryAssigned)
	svc := newTestService(repo)

	for _, to := range []models.DeliveryStatus{models.DeliveryAccepted, models.DeliveryPickedUp, models.DeliveryInTransit} {
		d, err := svc.Advance(context.Background(), "user-driver-1", "dlv-1", to)
		if err != nil {
			t.Fatalf("Advance to %s: %v", to, err)
		}
		if d.Status != to {
			t.Fatalf("Advance: status = %s, want %s", d.Status, to)
		}
	}
	if repo.deliveries["dlv-1"].PickedUpAt == nil {
		t.Fatal("Advance: picked_up_at never stamped")
	}
}

func TestAdvanceForeignDriverDenied(t *testing.T) {
	repo := newFakeRepo()
	seedHandoff(repo, models.DeliveryAssigned)
	svc := newTestService(repo)

	_, err := svc.Advance(context.Background(), "user-driver-2", "dlv-1", models.DeliveryAccepted)
	if !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("Advance: err = %v, want ErrForbidden", err)
	}
}

func TestAdvanceRejectsSkippingCustody(t *testing.T) {
	repo := newFakeRepo()
	seedHandoff(repo, models.DeliveryAssigned)
	svc := newTestService(repo)

	_, err := svc.Advance(context.Background(), "user-driver-1", "dlv-1", models.DeliveryInTransit)
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("Advance: err = %v, want ErrInvalidTransition", err)
	}
}

func TestAdvanceDriverCannotRelease(t *testing.T) {
	repo := newFakeRepo()
	seedHandoff(repo, models.DeliveryAssigned)
	svc := newTestService(repo)

	_, err := svc.Advance(context.Background(), "user-driver-1", "dlv-1", models.DeliveryReleased)
	if !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("Advance: err = %v, want ErrUnauthorized", err)
	}
}

func TestMarkDeliveredSettlesAtomically(t *testing.T) {
	repo := newFakeRepo()
	seedHandoff(repo, models.DeliveryInTransit)
	svc := newTestService(repo)

	d, err := svc.Advance(context.Background(), "user-driver-1", "dlv-1", models.DeliveryDelivered)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if d.Status != models.DeliveryDelivered || d.DeliveredAt == nil {
		t.Fatalf("Advance: delivery not closed: %+v", d)
	}
	if repo.orders["order-1"].Status != models.OrderDelivered {
		t.Fatalf("Advance: order status = %s, want delivered", repo.orders["order-1"].Status)
	}

	// The 6700 FCFA wave order settles with a 1005 commission at 15%.
	settlement, ok := repo.settlements["order-1"]
	if !ok {
		t.Fatal("Advance: no settlement row written")
	}
	if !settlement.Amount.Equal(decimal.NewFromInt(6700)) {
		t.Fatalf("settlement amount = %s, want 6700", settlement.Amount)
	}
	if !settlement.CommissionAmount.Equal(decimal.NewFromInt(1005)) {
		t.Fatalf("settlement commission = %s, want 1005", settlement.CommissionAmount)
	}

	driver := repo.drivers["driver-1"]
	if !driver.isAvailable || driver.totalDeliveries != 1 {
		t.Fatalf("driver not freed: %+v", driver)
	}
}

func TestMarkDeliveredReplayRejected(t *testing.T) {
	repo := newFakeRepo()
	seedHandoff(repo, models.DeliveryInTransit)
	svc := newTestService(repo)

	if _, err := svc.Advance(context.Background(), "user-driver-1", "dlv-1", models.DeliveryDelivered); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	_, err := svc.Advance(context.Background(), "user-driver-1", "dlv-1", models.DeliveryDelivered)
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("Advance replay: err = %v, want ErrInvalidTransition", err)
	}
	if len(repo.settlements) != 1 {
		t.Fatalf("settlements = %d, want exactly 1", len(repo.settlements))
	}
}

func TestTrackVisibility(t *testing.T) {
	repo := newFakeRepo()
	seedHandoff(repo, models.DeliveryInTransit)
	svc := newTestService(repo)

	if _, err := svc.Track(context.Background(), "client-1", models.RoleClient, "order-1"); err != nil {
		t.Fatalf("Track as customer: %v", err)
	}
	if _, err := svc.Track(context.Background(), "user-driver-1", models.RoleDriver, "order-1"); err != nil {
		t.Fatalf("Track as driver: %v", err)
	}
	if _, err := svc.Track(context.Background(), "admin-1", models.RoleAdmin, "order-1"); err != nil {
		t.Fatalf("Track as admin: %v", err)
	}
	if _, err := svc.Track(context.Background(), "client-2", models.RoleClient, "order-1"); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("Track as stranger: err = %v, want ErrForbidden", err)
	}
}
