package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxEarningsCents caps the lifetime earnings accumulator so repeated
// completions cannot overflow the signed 64-bit column.
const MaxEarningsCents int64 = 9_000_000_000_000_000_000

type DriverProfile struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`

	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Rating    float64 `json:"rating"`

	TotalTrips         int64 `json:"total_trips"`
	TotalEarningsCents int64 `json:"total_earnings_cents"`

	IsOnline    bool `json:"is_online"`
	IsAvailable bool `json:"is_available"`

	LastKnownLocation  *GeoPoint  `json:"last_known_location,omitempty"`
	LastLocationUpdate *time.Time `json:"last_location_update,omitempty"`

	CurrentTripID *uuid.UUID `json:"current_trip_id,omitempty"`
	SocketID      *string    `json:"socket_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DriverPatch is a partial driver-profile update. Nil fields are left
// untouched; set fields are written together with updated_at=NOW().
type DriverPatch struct {
	IsOnline    *bool
	IsAvailable *bool

	// ClearLocation distinguishes "don't touch" from "set to null".
	Location           *GeoPoint
	LastLocationUpdate *time.Time

	CurrentTripID      *uuid.UUID
	ClearCurrentTripID bool

	SocketID      *string
	ClearSocketID bool
}

type Vehicle struct {
	ID       uuid.UUID `json:"id"`
	DriverID uuid.UUID `json:"driver_id"`
	ClassID  int       `json:"class_id"`
	Make     string    `json:"make"`
	Model    string    `json:"model"`
	Year     int       `json:"year"`
	Color    string    `json:"color"`
	Plate    string    `json:"plate"`
	IsActive bool      `json:"is_active"`
}
