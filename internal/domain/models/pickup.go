package models

import (
	"time"

	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/google/uuid"
)

// DriverPickup is the per-offer operational log row: one record per
// driver a trip was offered to.
type DriverPickup struct {
	ID       uuid.UUID `json:"id"`
	DriverID uuid.UUID `json:"driver_id"`
	TripID   uuid.UUID `json:"trip_id"`

	PickupAddress  string   `json:"pickup_address"`
	Pickup         GeoPoint `json:"pickup"`
	DropoffAddress string   `json:"dropoff_address"`
	Dropoff        GeoPoint `json:"dropoff"`

	FareEstimateCents int64              `json:"fare_estimate_cents"`
	Status            types.PickupStatus `json:"status"`
	DeclineReason     string             `json:"decline_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
