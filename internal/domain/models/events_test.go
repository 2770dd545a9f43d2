package models

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/domain/types"
)

func offerTrip() *Trip {
	return &Trip{
		ID:                   uuid.New(),
		Reference:            "AR-20250601-0042",
		Status:               types.TripRequested,
		Kind:                 types.TripStandard,
		PickupAddress:        "Bole Road",
		Pickup:               GeoPoint{Lat: 9.0108, Lng: 38.7613},
		DropoffAddress:       "Piassa",
		Dropoff:              GeoPoint{Lat: 9.0336, Lng: 38.75},
		EstimatedDistanceKm:  4.2,
		EstimatedDurationMin: 14,
		EstimatedFareCents:   14150,
		PassengerPhone:       "+251911234567",
		PassengerName:        "Abebe Bikila",
	}
}

func TestTripOfferPayload_EmitsBothCasings(t *testing.T) {
	trip := offerTrip()
	payload := TripOfferPayload(trip, 5*time.Minute)

	pairs := [][2]string{
		{"trip_id", "tripId"},
		{"fare_estimate", "fareEstimate"},
		{"distance_km", "distanceKm"},
		{"duration_minutes", "durationMinutes"},
		{"trip_type", "tripType"},
		{"passenger_phone", "passengerPhone"},
		{"passenger_name", "passengerName"},
		{"expires_in_seconds", "expiresInSeconds"},
	}
	for _, p := range pairs {
		snake, ok := payload[p[0]]
		if !ok {
			t.Fatalf("missing snake_case key %q", p[0])
		}
		camel, ok := payload[p[1]]
		if !ok {
			t.Fatalf("missing camelCase key %q", p[1])
		}
		if snake != camel {
			t.Fatalf("keys %q and %q disagree: %v vs %v", p[0], p[1], snake, camel)
		}
	}

	if payload["event"] != EventTripOffer {
		t.Fatalf("unexpected event name %v", payload["event"])
	}
	if payload["fare_estimate"] != 141.50 {
		t.Fatalf("fare must be in currency units, got %v", payload["fare_estimate"])
	}
	if payload["expires_in_seconds"] != 300 {
		t.Fatalf("unexpected expiry %v", payload["expires_in_seconds"])
	}

	pickup, ok := payload["pickup"].(map[string]any)
	if !ok {
		t.Fatal("pickup must be an object")
	}
	if pickup["lat"] != pickup["latitude"] || pickup["lng"] != pickup["longitude"] {
		t.Fatal("pickup coordinate casings disagree")
	}
}

func TestTripOfferPayload_DeliveryUsesRecipientName(t *testing.T) {
	trip := offerTrip()
	trip.Kind = types.TripDelivery
	trip.RecipientName = "Selam Tesfaye"
	trip.PackageInfo = "documents"
	trip.Instructions = "call on arrival"

	payload := TripOfferPayload(trip, time.Minute)

	if payload["passenger_name"] != "Selam Tesfaye" {
		t.Fatalf("delivery offers must show the recipient, got %v", payload["passenger_name"])
	}
	if payload["package_info"] != "documents" || payload["packageInfo"] != "documents" {
		t.Fatal("delivery offers must carry package info under both casings")
	}
	if payload["instructions"] != "call on arrival" {
		t.Fatal("delivery offers must carry instructions")
	}
}

func TestTripOfferPayload_StandardTripOmitsDeliveryFields(t *testing.T) {
	payload := TripOfferPayload(offerTrip(), time.Minute)

	if _, ok := payload["package_info"]; ok {
		t.Fatal("standard trips must not carry package_info")
	}
	if _, ok := payload["instructions"]; ok {
		t.Fatal("standard trips must not carry instructions")
	}
}

func TestTimeline_OrdersLifecycleStamps(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	accepted := base.Add(30 * time.Second)
	started := base.Add(2 * time.Minute)
	completed := base.Add(20 * time.Minute)

	trip := &Trip{
		RequestedAt: base,
		AcceptedAt:  &accepted,
		StartedAt:   &started,
		CompletedAt: &completed,
	}

	events := trip.Timeline()
	want := []string{"requested", "accepted", "started", "completed"}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, ev := range events {
		if ev.Event != want[i] {
			t.Fatalf("event %d: want %q, got %q", i, want[i], ev.Event)
		}
	}
}

func TestTripStatusChangedPayload_IncludesDriverOnlyWhenAssigned(t *testing.T) {
	tripID := uuid.New()

	payload := TripStatusChangedPayload(TripStatusChangedEvent{
		TripID: tripID,
		Status: types.TripCanceled,
	})
	if _, ok := payload["driver_id"]; ok {
		t.Fatal("unassigned trips must not carry driver_id")
	}

	driverID := uuid.New()
	payload = TripStatusChangedPayload(TripStatusChangedEvent{
		TripID:   tripID,
		DriverID: &driverID,
		Status:   types.TripAccepted,
	})
	if payload["driver_id"] != driverID.String() || payload["driverId"] != driverID.String() {
		t.Fatal("assigned trips must carry driver_id under both casings")
	}
}
