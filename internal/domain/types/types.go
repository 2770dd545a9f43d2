package types

// Trip lifecycle statuses.
type TripStatus string

const (
	TripRequested  TripStatus = "requested"
	TripAccepted   TripStatus = "accepted"
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
	TripCanceled   TripStatus = "canceled"
)

func (s TripStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s TripStatus) IsTerminal() bool {
	return s == TripCompleted || s == TripCanceled
}

type TripKind string

const (
	TripStandard TripKind = "standard"
	TripDelivery TripKind = "delivery"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// DriverPickup statuses, mirroring the driver-visible part of a trip.
type PickupStatus string

const (
	PickupCreated   PickupStatus = "created"
	PickupAccepted  PickupStatus = "accepted"
	PickupCompleted PickupStatus = "completed"
	PickupCanceled  PickupStatus = "canceled"
)

type UserRole string

func (r UserRole) String() string {
	return string(r)
}

const (
	DriverRole     UserRole = "driver"
	PassengerRole  UserRole = "passenger"
	DispatcherRole UserRole = "dispatcher"
	AdminRole      UserRole = "admin"
)

type UserStatus string

const (
	UserActive      UserStatus = "active"
	UserDeactivated UserStatus = "deactivated"
	UserDeleted     UserStatus = "deleted"
)

// CancelReasonNoDrivers is the reason recorded when the auto-cancel
// window elapses with no driver accepting.
const CancelReasonNoDrivers = "no drivers in the selected place please wait and try again"

// Notification categories emitted to the dispatcher.
const (
	NotifyTripCreated      = "trip_created"
	NotifyTripAccepted     = "trip_accepted"
	NotifyTripCompleted    = "trip_completed"
	NotifyTripCanceled     = "trip_canceled"
	NotifyTripAutoCanceled = "trip_auto_canceled"
)
