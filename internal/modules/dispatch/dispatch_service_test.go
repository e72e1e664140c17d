package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mf-eats-backend/internal/events"
	"mf-eats-backend/internal/models"
	"mf-eats-backend/pkg/logger"

	"github.com/shopspring/decimal"
)

// fakeRepo mimics the real repository including the conditional-update
// semantics of ClaimDriver and AssignDelivery, guarded by a mutex so the
// concurrency tests exercise real interleavings.
type fakeRepo struct {
	mu         sync.Mutex
	orders     map[string]*models.Order
	drivers    map[string]*models.Driver
	deliveries map[string]*models.Delivery
	seq        int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:     make(map[string]*models.Order),
		drivers:    make(map[string]*models.Driver),
		deliveries: make(map[string]*models.Delivery),
	}
}

func (f *fakeRepo) FindOrder(ctx context.Context, orderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeRepo) ListEligibleDrivers(ctx context.Context) ([]*models.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Driver
	for _, d := range f.drivers {
		if d.IsAvailable && d.IsApproved {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) ClaimDriver(ctx context.Context, driverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drivers[driverID]
	if !ok || !d.IsAvailable || !d.IsApproved {
		return models.ErrAlreadyClaimed
	}
	d.IsAvailable = false
	return nil
}

func (f *fakeRepo) UnclaimDriver(ctx context.Context, driverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.drivers[driverID]; ok {
		d.IsAvailable = true
	}
	return nil
}

func (f *fakeRepo) AssignDelivery(ctx context.Context, orderID, driverID string) (*models.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != models.OrderReady || o.DriverID != nil {
		return nil, models.ErrAlreadyDispatched
	}
	o.Status = models.OrderInDelivery
	o.DriverID = &driverID

	f.seq++
	d := &models.Delivery{
		ID:        fmt.Sprintf("dlv-%d", f.seq),
		OrderID:   orderID,
		DriverID:  driverID,
		Status:    models.DeliveryAssigned,
		CreatedAt: time.Now(),
	}
	f.deliveries[d.ID] = d
	cp := *d
	return &cp, nil
}

func (f *fakeRepo) ListExpiredAssigned(ctx context.Context, cutoff time.Time) ([]*models.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Delivery
	for _, d := range f.deliveries {
		if d.Status == models.DeliveryAssigned && d.CreatedAt.Before(cutoff) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) Release(ctx context.Context, deliveryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[deliveryID]
	if !ok || d.Status != models.DeliveryAssigned {
		return models.ErrInvalidTransition
	}
	d.Status = models.DeliveryReleased
	if o, ok := f.orders[d.OrderID]; ok {
		o.Status = models.OrderReady
		o.DriverID = nil
	}
	if dr, ok := f.drivers[d.DriverID]; ok {
		dr.IsAvailable = true
	}
	return nil
}

func (f *fakeRepo) ListReadyUnassigned(ctx context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, o := range f.orders {
		if o.Status == models.OrderReady && o.DriverID == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func newTestService(repo *fakeRepo) *Service {
	log := logger.New(logger.Config{Env: "test", Level: "error"})
	return NewService(repo, &RoundRobin{}, events.NewBus(), log)
}

func seedReadyOrder(repo *fakeRepo, id string) {
	repo.orders[id] = &models.Order{
		ID: id, CustomerID: "client-1", RestaurantID: "rest-1",
		Status: models.OrderReady, TotalAmount: decimal.NewFromInt(6700),
	}
}

func seedDriver(repo *fakeRepo, id string, available, approved bool) {
	repo.drivers[id] = &models.Driver{
		ID: id, UserID: "user-" + id, IsAvailable: available, IsApproved: approved,
	}
}

func TestDispatchAssignsReadyOrder(t *testing.T) {
	repo := newFakeRepo()
	seedReadyOrder(repo, "order-1")
	seedDriver(repo, "driver-1", true, true)
	svc := newTestService(repo)

	d, err := svc.Dispatch(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if d.Status != models.DeliveryAssigned || d.DriverID != "driver-1" {
		t.Fatalf("Dispatch: delivery = %+v", d)
	}
	if repo.orders["order-1"].Status != models.OrderInDelivery {
		t.Fatalf("Dispatch: order status = %s, want in_delivery", repo.orders["order-1"].Status)
	}
	if repo.drivers["driver-1"].IsAvailable {
		t.Fatal("Dispatch: driver still available after claim")
	}
}

func TestDispatchNoEligibleDriver(t *testing.T) {
	repo := newFakeRepo()
	seedReadyOrder(repo, "order-1")
	seedDriver(repo, "driver-1", false, true) // busy
	seedDriver(repo, "driver-2", true, false) // not approved
	svc := newTestService(repo)

	_, err := svc.Dispatch(context.Background(), "order-1")
	if !errors.Is(err, models.ErrNoDriverAvailable) {
		t.Fatalf("Dispatch: err = %v, want ErrNoDriverAvailable", err)
	}
	// The order must stay ready so a later retry can pick it up.
	if repo.orders["order-1"].Status != models.OrderReady {
		t.Fatalf("Dispatch: order status = %s, want ready", repo.orders["order-1"].Status)
	}
}

func TestDispatchRejectsUnreadyOrder(t *testing.T) {
	repo := newFakeRepo()
	seedReadyOrder(repo, "order-1")
	repo.orders["order-1"].Status = models.OrderPreparing
	seedDriver(repo, "driver-1", true, true)
	svc := newTestService(repo)

	if _, err := svc.Dispatch(context.Background(), "order-1"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("Dispatch: err = %v, want ErrInvalidTransition", err)
	}
}

func TestDispatchTwiceSameOrder(t *testing.T) {
	repo := newFakeRepo()
	seedReadyOrder(repo, "order-1")
	seedDriver(repo, "driver-1", true, true)
	seedDriver(repo, "driver-2", true, true)
	svc := newTestService(repo)

	if _, err := svc.Dispatch(context.Background(), "order-1"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, err := svc.Dispatch(context.Background(), "order-1"); !errors.Is(err, models.ErrAlreadyDispatched) {
		t.Fatalf("Dispatch replay: err = %v, want ErrAlreadyDispatched", err)
	}
	if len(repo.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want exactly 1", len(repo.deliveries))
	}
}

func TestConcurrentDispatchSingleDriver(t *testing.T) {
	repo := newFakeRepo()
	seedReadyOrder(repo, "order-1")
	seedReadyOrder(repo, "order-2")
	seedDriver(repo, "driver-1", true, true)
	svc := newTestService(repo)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, orderID := range []string{"order-1", "order-2"} {
		wg.Add(1)
		go func(i int, orderID string) {
			defer wg.Done()
			_, errs[i] = svc.Dispatch(context.Background(), orderID)
		}(i, orderID)
	}
	wg.Wait()

	var wins, starved int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, models.ErrNoDriverAvailable):
			starved++
		default:
			t.Fatalf("Dispatch: unexpected error %v", err)
		}
	}
	if wins != 1 || starved != 1 {
		t.Fatalf("wins = %d, starved = %d, want exactly one of each", wins, starved)
	}
	if len(repo.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want exactly 1", len(repo.deliveries))
	}
}

func TestReleaseExpiredRevertsAssignment(t *testing.T) {
	repo := newFakeRepo()
	seedReadyOrder(repo, "order-1")
	seedDriver(repo, "driver-1", true, true)
	svc := newTestService(repo)

	d, err := svc.Dispatch(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	// Age the assignment past the window.
	repo.deliveries[d.ID].CreatedAt = time.Now().Add(-10 * time.Minute)

	released, err := svc.ReleaseExpired(context.Background(), 5*time.Minute)
	if err != nil {
		t.Fatalf("ReleaseExpired: %v", err)
	}
	if released != 1 {
		t.Fatalf("ReleaseExpired: released = %d, want 1", released)
	}

	order := repo.orders["order-1"]
	if order.Status != models.OrderReady || order.DriverID != nil {
		t.Fatalf("ReleaseExpired: order = %+v, want ready with no driver", order)
	}
	if repo.deliveries[d.ID].Status != models.DeliveryReleased {
		t.Fatalf("ReleaseExpired: delivery status = %s, want released", repo.deliveries[d.ID].Status)
	}
	if !repo.drivers["driver-1"].IsAvailable {
		t.Fatal("ReleaseExpired: driver not freed")
	}

	// The released row is audit data: a re-dispatch makes a new one.
	if _, err := svc.Dispatch(context.Background(), "order-1"); err != nil {
		t.Fatalf("re-Dispatch: %v", err)
	}
	if len(repo.deliveries) != 2 {
		t.Fatalf("deliveries = %d, want 2 (released kept + new)", len(repo.deliveries))
	}
}

func TestReleaseExpiredSkipsAcceptedDeliveries(t *testing.T) {
	repo := newFakeRepo()
	seedReadyOrder(repo, "order-1")
	seedDriver(repo, "driver-1", true, true)
	svc := newTestService(repo)

	d, err := svc.Dispatch(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	repo.deliveries[d.ID].CreatedAt = time.Now().Add(-10 * time.Minute)
	repo.deliveries[d.ID].Status = models.DeliveryAccepted

	released, err := svc.ReleaseExpired(context.Background(), 5*time.Minute)
	if err != nil {
		t.Fatalf("ReleaseExpired: %v", err)
	}
	if released != 0 {
		t.Fatalf("ReleaseExpired: released = %d, want 0 for accepted delivery", released)
	}
}

func TestDispatchReadySweep(t *testing.T) {
	repo := newFakeRepo()
	seedReadyOrder(repo, "order-1")
	seedReadyOrder(repo, "order-2")
	seedDriver(repo, "driver-1", true, true)
	seedDriver(repo, "driver-2", true, true)
	svc := newTestService(repo)

	dispatched, err := svc.DispatchReady(context.Background())
	if err != nil {
		t.Fatalf("DispatchReady: %v", err)
	}
	if dispatched != 2 {
		t.Fatalf("DispatchReady: dispatched = %d, want 2", dispatched)
	}
}

func TestNearestDriverRanking(t *testing.T) {
	lat, lon := 14.7167, -17.4677 // Dakar
	order := &models.Order{DeliveryLatitude: &lat, DeliveryLongitude: &lon}

	far := coordDriver("far", 14.9, -17.2)
	near := coordDriver("near", 14.72, -17.46)
	unknown := &models.Driver{ID: "unknown"}

	ranked := NearestDriver{}.Rank(order, []*models.Driver{far, unknown, near})
	if ranked[0].ID != "near" || ranked[2].ID != "unknown" {
		t.Fatalf("Rank: got %s,%s,%s", ranked[0].ID, ranked[1].ID, ranked[2].ID)
	}
}

func coordDriver(id string, lat, lon float64) *models.Driver {
	return &models.Driver{ID: id, CurrentLatitude: &lat, CurrentLongitude: &lon}
}

func TestRoundRobinRotates(t *testing.T) {
	rr := &RoundRobin{}
	candidates := []*models.Driver{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	first := rr.Rank(nil, candidates)[0].ID
	second := rr.Rank(nil, candidates)[0].ID
	if first == second {
		t.Fatalf("RoundRobin: same head twice (%s)", first)
	}
}
