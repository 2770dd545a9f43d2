package models

import (
	"time"

	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/google/uuid"
)

// Server -> client websocket event names.
const (
	EventConnected         = "connected"
	EventTripOffer         = "trip_offer"
	EventTripOfferWithdraw = "trip_offer_withdrawn"
	EventTripStatusChanged = "trip_status_changed"
	EventLocationAck       = "location_update_ack"
	EventAvailabilityAck   = "availability_ack"
	EventError             = "error"
)

// Client -> server websocket event names.
const (
	EventAuth            = "auth"
	EventLocationUpdate  = "location_update"
	EventSetAvailability = "set_availability"
	EventTripAccept      = "trip_accept"
	EventTripDecline     = "trip_decline"
)

// TripStatusChangedEvent is delivered to the assigned driver and published
// to the message broker on every lifecycle transition.
type TripStatusChangedEvent struct {
	TripID    uuid.UUID        `json:"trip_id"`
	DriverID  *uuid.UUID       `json:"driver_id,omitempty"`
	Status    types.TripStatus `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
}

// TripOfferPayload builds the offer event body. Every field is emitted
// under both snake_case and camelCase keys: driver clients in the field
// predate the casing migration and read whichever key they were built
// against, so both casings are literal duplicates, not aliases.
func TripOfferPayload(t *Trip, expiresIn time.Duration) map[string]any {
	displayName := t.PassengerName
	if t.Kind == types.TripDelivery && t.RecipientName != "" {
		displayName = t.RecipientName
	}

	pickup := map[string]any{
		"address":   t.PickupAddress,
		"lat":       t.Pickup.Lat,
		"latitude":  t.Pickup.Lat,
		"lng":       t.Pickup.Lng,
		"longitude": t.Pickup.Lng,
	}
	dropoff := map[string]any{
		"address":   t.DropoffAddress,
		"lat":       t.Dropoff.Lat,
		"latitude":  t.Dropoff.Lat,
		"lng":       t.Dropoff.Lng,
		"longitude": t.Dropoff.Lng,
	}

	fare := float64(t.EstimatedFareCents) / 100

	payload := map[string]any{
		"event": EventTripOffer,

		"trip_id": t.ID.String(),
		"tripId":  t.ID.String(),

		"reference": t.Reference,

		"pickup":  pickup,
		"dropoff": dropoff,

		"fare_estimate": fare,
		"fareEstimate":  fare,

		"distance_km": t.EstimatedDistanceKm,
		"distanceKm":  t.EstimatedDistanceKm,

		"duration_minutes": t.EstimatedDurationMin,
		"durationMinutes":  t.EstimatedDurationMin,

		"trip_type": string(t.Kind),
		"tripType":  string(t.Kind),

		"passenger_phone": t.PassengerPhone,
		"passengerPhone":  t.PassengerPhone,

		"passenger_name": displayName,
		"passengerName":  displayName,

		"expires_in_seconds": int(expiresIn.Seconds()),
		"expiresInSeconds":   int(expiresIn.Seconds()),
	}

	if t.Kind == types.TripDelivery {
		payload["package_info"] = t.PackageInfo
		payload["packageInfo"] = t.PackageInfo
		payload["instructions"] = t.Instructions
	}

	return payload
}

// TripStatusChangedPayload is the websocket form of TripStatusChangedEvent.
func TripStatusChangedPayload(ev TripStatusChangedEvent) map[string]any {
	payload := map[string]any{
		"event":   EventTripStatusChanged,
		"trip_id": ev.TripID.String(),
		"tripId":  ev.TripID.String(),
		"status":  string(ev.Status),
	}
	if ev.DriverID != nil {
		payload["driver_id"] = ev.DriverID.String()
		payload["driverId"] = ev.DriverID.String()
	}
	return payload
}

// TripOfferWithdrawnPayload tells a driver a still-open offer went stale
// because another driver accepted first.
func TripOfferWithdrawnPayload(tripID uuid.UUID) map[string]any {
	return map[string]any{
		"event":   EventTripOfferWithdraw,
		"trip_id": tripID.String(),
		"tripId":  tripID.String(),
	}
}

// ErrorPayload is a free-form error event for a driver connection.
func ErrorPayload(message string) map[string]any {
	return map[string]any{
		"event":   EventError,
		"message": message,
	}
}
