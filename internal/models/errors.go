package models

import "errors"

var ErrNotFound = errors.New("requested resource not found")
var ErrForbidden = errors.New("user does not have permission to access this resource")
var ErrConflict = errors.New("resource conflict, item already exists")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrEmailTaken = errors.New("email already registered")

// ErrInvalidTransition is returned when a state change is not permitted from
// the aggregate's current state. The state is left untouched; the caller
// should surface it as a rejected action, not retry.
var ErrInvalidTransition = errors.New("transition not permitted from current state")

// ErrUnauthorized is returned when the actor lacks the capability for the
// attempted mutation. Logged for audit by the services that raise it.
var ErrUnauthorized = errors.New("actor not authorized for this action")

// ErrAlreadyDispatched and ErrAlreadyClaimed signal an optimistic-concurrency
// loss: another dispatcher won the race. Callers pick another candidate and
// retry instead of failing the whole operation.
var ErrAlreadyDispatched = errors.New("order already has a dispatched delivery")
var ErrAlreadyClaimed = errors.New("driver already claimed by a concurrent dispatch")

// ErrNoDriverAvailable means no driver satisfied the eligibility predicate.
// The order stays ready; the external scheduler retries later.
var ErrNoDriverAvailable = errors.New("no eligible driver available")

// ErrResolutionFailed wraps transport errors during principal/role lookup.
// "no user" and "no role" are normal outcomes, never this error.
var ErrResolutionFailed = errors.New("identity resolution failed")

// ErrIntegrityViolation means a structural invariant would be broken (two
// deliveries for one order, a duplicate settlement, ...). Never swallowed:
// it aborts the operation and is logged loudly as a defect signal.
var ErrIntegrityViolation = errors.New("data integrity violation")

var ErrOrderBelowMinimum = errors.New("order subtotal below the configured minimum")
var ErrEmptyCart = errors.New("cannot check out an empty cart")
var ErrDriverUnavailableToggle = errors.New("driver has an active delivery and cannot change availability")
