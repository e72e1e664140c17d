package statemachine

// Actor identifies who is attempting a transition. Dispatch is the
// coordinator acting on its own authority (driver assignment), distinct
// from any user role.
type Actor string

const (
	ActorCustomer   Actor = "customer"
	ActorRestaurant Actor = "restaurant"
	ActorDriver     Actor = "driver"
	ActorDispatch   Actor = "dispatch"
	ActorAdmin      Actor = "admin"
)
