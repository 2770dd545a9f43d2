package types

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDriverNotFound     = errors.New("driver profile not found")
	ErrVehicleNotFound    = errors.New("active vehicle not found")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrUnauthorized       = errors.New("invalid or missing credentials")
	ErrForbidden          = errors.New("operation not permitted for this role")

	ErrTripNotFound     = errors.New("trip not found")
	ErrNotTripOwner     = errors.New("trip belongs to another driver")
	ErrTripNotAvailable = errors.New("trip no longer available")

	ErrNotFound = errors.New("requested item not found")
)

// InvalidTripStatusError carries the observed status so the boundary can
// report exactly why a transition was rejected.
type InvalidTripStatusError struct {
	Observed TripStatus
	Wanted   []TripStatus
}

func (e *InvalidTripStatusError) Error() string {
	return fmt.Sprintf("trip is %s, expected one of %v", e.Observed, e.Wanted)
}

func NewInvalidTripStatus(observed TripStatus, wanted ...TripStatus) error {
	return &InvalidTripStatusError{Observed: observed, Wanted: wanted}
}
