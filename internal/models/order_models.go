package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the order aggregate's lifecycle state. It only moves
// forward through the sequence below, or jumps to cancelled from a
// non-terminal, pre-handoff state.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderPreparing  OrderStatus = "preparing"
	OrderReady      OrderStatus = "ready"
	OrderInDelivery OrderStatus = "in_delivery"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is defined from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// PaymentMethod is an opaque enumeration; the providers behind wave and
// orange_money are not modeled here.
type PaymentMethod string

const (
	PayCash        PaymentMethod = "cash"
	PayWave        PaymentMethod = "wave"
	PayOrangeMoney PaymentMethod = "orange_money"
)

// Order belongs to one customer and one restaurant. driver_id stays nil
// until dispatch assigns a delivery and never changes afterwards except
// through an explicit release.
type Order struct {
	ID                string          `json:"id"`
	CustomerID        string          `json:"customer_id"`
	RestaurantID      string          `json:"restaurant_id"`
	DriverID          *string         `json:"driver_id,omitempty"`
	Status            OrderStatus     `json:"status"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	DeliveryAddress   string          `json:"delivery_address"`
	DeliveryLatitude  *float64        `json:"delivery_latitude,omitempty"`
	DeliveryLongitude *float64        `json:"delivery_longitude,omitempty"`
	CustomerNotes     *string         `json:"customer_notes,omitempty"`
	Items             []OrderItem     `json:"items,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// OrderItem is a line item with price and name snapshotted at checkout, so
// later menu edits cannot change a placed order.
type OrderItem struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	MenuItemID   *string         `json:"menu_item_id,omitempty"`
	MenuItemName string          `json:"menu_item_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// CheckoutItem is one cart line in a checkout request.
type CheckoutItem struct {
	MenuItemID string `json:"menu_item_id" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
}

// CheckoutRequest creates an order in state pending. The total is computed
// server-side from menu prices plus the delivery fee; it is fixed at
// creation and line items are immutable afterwards.
type CheckoutRequest struct {
	RestaurantID      string         `json:"restaurant_id" validate:"required,uuid"`
	Items             []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	PaymentMethod     PaymentMethod  `json:"payment_method" validate:"required,oneof=cash wave orange_money"`
	DeliveryAddress   string         `json:"delivery_address" validate:"required"`
	DeliveryLatitude  *float64       `json:"delivery_latitude,omitempty"`
	DeliveryLongitude *float64       `json:"delivery_longitude,omitempty"`
	CustomerNotes     *string        `json:"customer_notes,omitempty"`
}

// AdvanceOrderRequest asks for a single forward transition.
type AdvanceOrderRequest struct {
	To OrderStatus `json:"to" validate:"required,oneof=confirmed preparing ready in_delivery delivered"`
}
