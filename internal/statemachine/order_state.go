package statemachine

import "mf-eats-backend/internal/models"

// orderTransition is one permitted state change and the actor allowed to
// perform it. The table below is the authoritative order state machine.
type orderTransition struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor Actor
}

var orderTransitions = []orderTransition{
	// Restaurant works the order through the kitchen.
	{From: models.OrderPending, To: models.OrderConfirmed, Actor: ActorRestaurant},
	{From: models.OrderConfirmed, To: models.OrderPreparing, Actor: ActorRestaurant},
	{From: models.OrderPreparing, To: models.OrderReady, Actor: ActorRestaurant},
	// Dispatch hands a ready order to a driver.
	{From: models.OrderReady, To: models.OrderInDelivery, Actor: ActorDispatch},
	// The assigned driver closes it out.
	{From: models.OrderInDelivery, To: models.OrderDelivered, Actor: ActorDriver},

	// Cancellation authority narrows as the order progresses: the customer
	// only while pending, the restaurant until the kitchen is done, the
	// admin from any non-terminal state before handoff.
	{From: models.OrderPending, To: models.OrderCancelled, Actor: ActorCustomer},
	{From: models.OrderPending, To: models.OrderCancelled, Actor: ActorRestaurant},
	{From: models.OrderConfirmed, To: models.OrderCancelled, Actor: ActorRestaurant},
	{From: models.OrderPreparing, To: models.OrderCancelled, Actor: ActorRestaurant},
	{From: models.OrderPending, To: models.OrderCancelled, Actor: ActorAdmin},
	{From: models.OrderConfirmed, To: models.OrderCancelled, Actor: ActorAdmin},
	{From: models.OrderPreparing, To: models.OrderCancelled, Actor: ActorAdmin},
	{From: models.OrderReady, To: models.OrderCancelled, Actor: ActorAdmin},
}

type orderKey struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor Actor
}

var orderTransitionSet = func() map[orderKey]bool {
	m := make(map[orderKey]bool, len(orderTransitions))
	for _, t := range orderTransitions {
		m[orderKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// CanAdvanceOrder reports whether actor may move an order from one state to
// another. The caller distinguishes ErrInvalidTransition (no actor could do
// this) from ErrUnauthorized (another actor could).
func CanAdvanceOrder(from, to models.OrderStatus, actor Actor) error {
	if orderTransitionSet[orderKey{from, to, actor}] {
		return nil
	}
	for _, t := range orderTransitions {
		if t.From == from && t.To == to {
			return models.ErrUnauthorized
		}
	}
	return models.ErrInvalidTransition
}

// OrderStatesBefore returns every state from which actor may reach to.
// Repositories use it to build conditional updates for cancellation, where
// several source states are legal at once.
func OrderStatesBefore(to models.OrderStatus, actor Actor) []models.OrderStatus {
	var from []models.OrderStatus
	for _, t := range orderTransitions {
		if t.To == to && t.Actor == actor {
			from = append(from, t.From)
		}
	}
	return from
}
