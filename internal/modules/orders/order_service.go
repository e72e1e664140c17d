package orders

import (
	"context"
	"errors"
	"fmt"

	"mf-eats-backend/internal/events"
	"mf-eats-backend/internal/models"
	"mf-eats-backend/internal/statemachine"
	"mf-eats-backend/pkg/logger"
	"mf-eats-backend/pkg/notify"

	"github.com/shopspring/decimal"
)

// ServiceInterface is the order aggregate's contract.
type ServiceInterface interface {
	// Checkout validates the cart against the restaurant's menu, prices the
	// order server-side and creates it in state pending. The total and line
	// items are fixed at this point.
	Checkout(ctx context.Context, customerID string, req models.CheckoutRequest) (*models.Order, error)
	// Advance performs one forward transition on behalf of the caller.
	Advance(ctx context.Context, actorID string, role models.Role, orderID string, to models.OrderStatus) (*models.Order, error)
	// Cancel applies the actor-dependent cancellation rules.
	Cancel(ctx context.Context, actorID string, role models.Role, orderID string) error
	GetOrder(ctx context.Context, actorID string, role models.Role, orderID string) (*models.Order, error)
	ListMine(ctx context.Context, customerID string, page, limit int) ([]*models.Order, int, error)
	// RestaurantInbox lists orders for a restaurant the caller owns.
	RestaurantInbox(ctx context.Context, actorID, restaurantID string, status *models.OrderStatus, page, limit int) ([]*models.Order, int, error)
}

// Policy carries the pricing rules the aggregate enforces, in FCFA.
type Policy struct {
	MinOrderAmount decimal.Decimal
	DeliveryFee    decimal.Decimal
}

// Service implements ServiceInterface.
type Service struct {
	repo     RepositoryInterface
	bus      *events.Bus
	notifier notify.Notifier
	log      *logger.Logger
	policy   Policy
}

func NewService(repo RepositoryInterface, bus *events.Bus, notifier notify.Notifier, log *logger.Logger, policy Policy) *Service {
	return &Service{
		repo:     repo,
		bus:      bus,
		notifier: notifier,
		log:      log,
		policy:   policy,
	}
}

func (s *Service) Checkout(ctx context.Context, customerID string, req models.CheckoutRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, models.ErrEmptyCart
	}

	restaurant, err := s.repo.FindActiveRestaurant(ctx, req.RestaurantID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("service.Checkout: restaurant: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("service.Checkout: %w", err)
	}

	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.MenuItemID)
	}
	menu, err := s.repo.FindAvailableMenuItems(ctx, restaurant.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("service.Checkout: %w", err)
	}

	// Prices and names are snapshotted now; later menu edits must not
	// change a placed order.
	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		mi, ok := menu[line.MenuItemID]
		if !ok {
			return nil, fmt.Errorf("service.Checkout: menu item %s: %w", line.MenuItemID, models.ErrNotFound)
		}
		id := mi.ID
		items = append(items, models.OrderItem{
			MenuItemID:   &id,
			MenuItemName: mi.Name,
			Quantity:     line.Quantity,
			UnitPrice:    mi.Price,
		})
		subtotal = subtotal.Add(mi.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	if subtotal.LessThan(s.policy.MinOrderAmount) {
		return nil, models.ErrOrderBelowMinimum
	}

	order := &models.Order{
		CustomerID:        customerID,
		RestaurantID:      restaurant.ID,
		Status:            models.OrderPending,
		TotalAmount:       subtotal.Add(s.policy.DeliveryFee),
		DeliveryFee:       s.policy.DeliveryFee,
		PaymentMethod:     req.PaymentMethod,
		DeliveryAddress:   req.DeliveryAddress,
		DeliveryLatitude:  req.DeliveryLatitude,
		DeliveryLongitude: req.DeliveryLongitude,
		CustomerNotes:     req.CustomerNotes,
		Items:             items,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("service.Checkout: %w", err)
	}

	s.bus.Publish(events.Event{Topic: events.TopicOrdersChanged, Key: order.ID})
	s.notifyCustomer(ctx, customerID, "Order placed",
		fmt.Sprintf("Your order at %s for %s FCFA was placed.", restaurant.Name, order.TotalAmount))
	return order, nil
}

func (s *Service) Advance(ctx context.Context, actorID string, role models.Role, orderID string, to models.OrderStatus) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.Advance: %w", err)
	}

	actor, err := s.actorFor(ctx, order, actorID, role)
	if err != nil {
		return nil, err
	}
	if err := statemachine.CanAdvanceOrder(order.Status, to, actor); err != nil {
		return nil, err
	}
	if err := s.repo.AdvanceStatus(ctx, orderID, order.Status, to); err != nil {
		return nil, fmt.Errorf("service.Advance: %w", err)
	}
	order.Status = to

	s.bus.Publish(events.Event{Topic: events.TopicOrdersChanged, Key: order.ID})
	return order, nil
}

func (s *Service) Cancel(ctx context.Context, actorID string, role models.Role, orderID string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("service.Cancel: %w", err)
	}

	actor, err := s.actorFor(ctx, order, actorID, role)
	if err != nil {
		return err
	}
	if err := statemachine.CanAdvanceOrder(order.Status, models.OrderCancelled, actor); err != nil {
		return err
	}
	if err := s.repo.AdvanceStatus(ctx, orderID, order.Status, models.OrderCancelled); err != nil {
		return fmt.Errorf("service.Cancel: %w", err)
	}

	s.bus.Publish(events.Event{Topic: events.TopicOrdersChanged, Key: order.ID})
	s.notifyCustomer(ctx, order.CustomerID, "Order cancelled",
		fmt.Sprintf("Your order %s was cancelled.", order.ID))
	return nil
}

// actorFor maps the caller's role and relationship to the order onto a
// state-machine actor. Admin authority does not depend on ownership.
func (s *Service) actorFor(ctx context.Context, order *models.Order, actorID string, role models.Role) (statemachine.Actor, error) {
	switch role {
	case models.RoleAdmin:
		return statemachine.ActorAdmin, nil
	case models.RoleClient:
		if order.CustomerID != actorID {
			return "", models.ErrForbidden
		}
		return statemachine.ActorCustomer, nil
	case models.RoleRestaurant:
		owner, err := s.repo.IsRestaurantOwner(ctx, order.RestaurantID, actorID)
		if err != nil {
			return "", fmt.Errorf("service.actorFor: %w", err)
		}
		if !owner {
			return "", models.ErrForbidden
		}
		return statemachine.ActorRestaurant, nil
	case models.RoleDriver:
		assigned, err := s.repo.IsAssignedDriver(ctx, order.ID, actorID)
		if err != nil {
			return "", fmt.Errorf("service.actorFor: %w", err)
		}
		if !assigned {
			return "", models.ErrForbidden
		}
		return statemachine.ActorDriver, nil
	}
	return "", models.ErrForbidden
}

func (s *Service) GetOrder(ctx context.Context, actorID string, role models.Role, orderID string) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.GetOrder: %w", err)
	}
	if _, err := s.actorFor(ctx, order, actorID, role); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) ListMine(ctx context.Context, customerID string, page, limit int) ([]*models.Order, int, error) {
	return s.repo.ListByCustomer(ctx, customerID, page, limit)
}

func (s *Service) RestaurantInbox(ctx context.Context, actorID, restaurantID string, status *models.OrderStatus, page, limit int) ([]*models.Order, int, error) {
	owner, err := s.repo.IsRestaurantOwner(ctx, restaurantID, actorID)
	if err != nil {
		return nil, 0, fmt.Errorf("service.RestaurantInbox: %w", err)
	}
	if !owner {
		return nil, 0, models.ErrForbidden
	}
	return s.repo.ListByRestaurant(ctx, restaurantID, status, page, limit)
}

// notifyCustomer sends best-effort; a notification failure never fails the
// transition that triggered it.
func (s *Service) notifyCustomer(ctx context.Context, customerID, subject, body string) {
	email, err := s.repo.FindCustomerEmail(ctx, customerID)
	if err != nil {
		s.log.Warn().Err(err).Str("customer_id", customerID).Msg("notify: lookup failed")
		return
	}
	if err := s.notifier.Notify(ctx, notify.Event{Recipient: email, Subject: subject, Body: body}); err != nil {
		s.log.Warn().Err(err).Str("customer_id", customerID).Msg("notify: send failed")
	}
}
