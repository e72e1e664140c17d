package statemachine

import "mf-eats-backend/internal/models"

type deliveryTransition struct {
	From  models.DeliveryStatus
	To    models.DeliveryStatus
	Actor Actor
}

// Driver-only forward progression, plus the single compensating transition:
// dispatch releasing an assignment the driver never acknowledged. Released
// is only reachable from assigned, so a driver who has taken custody can
// never be timed out.
var deliveryTransitions = []deliveryTransition{
	{From: models.DeliveryAssigned, To: models.DeliveryAccepted, Actor: ActorDriver},
	{From: models.DeliveryAccepted, To: models.DeliveryPickedUp, Actor: ActorDriver},
	{From: models.DeliveryPickedUp, To: models.DeliveryInTransit, Actor: ActorDriver},
	{From: models.DeliveryInTransit, To: models.DeliveryDelivered, Actor: ActorDriver},
	{From: models.DeliveryAssigned, To: models.DeliveryReleased, Actor: ActorDispatch},
}

type deliveryKey struct {
	From  models.DeliveryStatus
	To    models.DeliveryStatus
	Actor Actor
}

var deliveryTransitionSet = func() map[deliveryKey]bool {
	m := make(map[deliveryKey]bool, len(deliveryTransitions))
	for _, t := range deliveryTransitions {
		m[deliveryKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// CanAdvanceDelivery reports whether actor may move a delivery between the
// two states.
func CanAdvanceDelivery(from, to models.DeliveryStatus, actor Actor) error {
	if deliveryTransitionSet[deliveryKey{from, to, actor}] {
		return nil
	}
	for _, t := range deliveryTransitions {
		if t.From == from && t.To == to {
			return models.ErrUnauthorized
		}
	}
	return models.ErrInvalidTransition
}

// DeliveryStateBefore returns the single legal predecessor of to for the
// driver path, used to build conditional updates.
func DeliveryStateBefore(to models.DeliveryStatus) (models.DeliveryStatus, bool) {
	for _, t := range deliveryTransitions {
		if t.To == to && t.Actor == ActorDriver {
			return t.From, true
		}
	}
	return "", false
}
