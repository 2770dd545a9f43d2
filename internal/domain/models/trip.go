package models

import (
	"time"

	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/google/uuid"
)

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Trip struct {
	ID             uuid.UUID  `json:"id"`
	Reference      string     `json:"reference"`
	PassengerID    uuid.UUID  `json:"passenger_id"`
	DriverID       *uuid.UUID `json:"driver_id,omitempty"`
	VehicleID      *uuid.UUID `json:"vehicle_id,omitempty"`
	VehicleClassID *int       `json:"vehicle_class_id,omitempty"`

	Status types.TripStatus `json:"status"`
	Kind   types.TripKind   `json:"kind"`

	PickupAddress  string   `json:"pickup_address"`
	Pickup         GeoPoint `json:"pickup"`
	DropoffAddress string   `json:"dropoff_address"`
	Dropoff        GeoPoint `json:"dropoff"`

	EstimatedDistanceKm  float64 `json:"estimated_distance_km"`
	EstimatedDurationMin int     `json:"estimated_duration_minutes"`
	EstimatedFareCents   int64   `json:"estimated_fare_cents"`

	PaymentMethod string              `json:"payment_method"`
	PaymentStatus types.PaymentStatus `json:"payment_status"`

	// Delivery-only fields.
	Instructions  string `json:"instructions,omitempty"`
	RecipientName string `json:"recipient_name,omitempty"`
	PackageInfo   string `json:"package_info,omitempty"`

	DispatcherID   *uuid.UUID `json:"dispatcher_id,omitempty"`
	IsNewPassenger bool       `json:"is_new_passenger"`

	RequestedAt time.Time  `json:"requested_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`

	CancelReason     string     `json:"cancel_reason,omitempty"`
	CanceledByUserID *uuid.UUID `json:"canceled_by_user_id,omitempty"`

	FinalFareCents      *int64   `json:"final_fare_cents,omitempty"`
	ActualDistanceKm    *float64 `json:"actual_distance_km,omitempty"`
	ActualDurationMin   *int     `json:"actual_duration_minutes,omitempty"`
	DriverEarningsCents *int64   `json:"driver_earnings_cents,omitempty"`
	CommissionCents     *int64   `json:"commission_cents,omitempty"`

	// Joined for offer payloads, not persisted on trips.
	PassengerPhone string `json:"passenger_phone,omitempty"`
	PassengerName  string `json:"passenger_name,omitempty"`
}

// TripCompletion carries the persisted outcome of a completed trip.
type TripCompletion struct {
	FinalFareCents      int64
	DriverEarningsCents int64
	CommissionCents     int64
	ActualDistanceKm    float64
	ActualDurationMin   int
}

// TripFilter narrows a driver's trip history query.
type TripFilter struct {
	DriverID  uuid.UUID
	Status    types.TripStatus
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

func (f TripFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// TripStatistics aggregates a driver's completed work.
type TripStatistics struct {
	TotalTrips      int64   `json:"total_trips"`
	CompletedTrips  int64   `json:"completed_trips"`
	CanceledTrips   int64   `json:"canceled_trips"`
	EarningsCents   int64   `json:"earnings_cents"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	TotalDurationMin int64  `json:"total_duration_minutes"`

	ThisWeek  PeriodStats `json:"this_week"`
	ThisMonth PeriodStats `json:"this_month"`
}

type PeriodStats struct {
	Trips         int64 `json:"trips"`
	EarningsCents int64 `json:"earnings_cents"`
}

// TripEvent is one entry of the synthesized trip timeline.
type TripEvent struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// Timeline builds the event list from the trip's stamps, sorted by time.
// The stamps are monotonic by construction, so insertion order suffices.
func (t *Trip) Timeline() []TripEvent {
	events := []TripEvent{{Event: "requested", Timestamp: t.RequestedAt}}

	if t.AcceptedAt != nil {
		events = append(events, TripEvent{Event: "accepted", Timestamp: *t.AcceptedAt})
	}
	if t.StartedAt != nil {
		events = append(events, TripEvent{Event: "started", Timestamp: *t.StartedAt})
	}
	if t.CompletedAt != nil {
		events = append(events, TripEvent{Event: "completed", Timestamp: *t.CompletedAt})
	}
	if t.CanceledAt != nil {
		events = append(events, TripEvent{Event: "canceled", Timestamp: *t.CanceledAt})
	}

	return events
}
