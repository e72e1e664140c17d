package models

import "time"

// DeliveryStatus is the delivery aggregate's lifecycle state. Forward-only,
// with one compensating exception: released, used when the assigned driver
// never acknowledged and dispatch returned the order to the pool. The row
// is kept for audit; a re-dispatch creates a new delivery.
type DeliveryStatus string

const (
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryAccepted  DeliveryStatus = "accepted"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryInTransit DeliveryStatus = "in_transit"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryReleased  DeliveryStatus = "released"
)

// Active reports whether the delivery still occupies its driver.
func (s DeliveryStatus) Active() bool {
	return s != DeliveryDelivered && s != DeliveryReleased
}

// Delivery is the one-to-one satellite of a dispatched order. The
// (order_id, driver_id) pairing is fixed for the row's lifetime.
type Delivery struct {
	ID          string         `json:"id"`
	OrderID     string         `json:"order_id"`
	DriverID    string         `json:"driver_id"`
	Status      DeliveryStatus `json:"status"`
	PickedUpAt  *time.Time     `json:"picked_up_at,omitempty"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// AdvanceDeliveryRequest asks for a single driver-side transition.
type AdvanceDeliveryRequest struct {
	To DeliveryStatus `json:"to" validate:"required,oneof=accepted picked_up in_transit delivered"`
}
