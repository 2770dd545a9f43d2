package ws

import (
	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/pkg/validator"
)

// Inbound events arrive from clients built against either casing
// convention, so every reader checks the snake_case key first and falls
// back to the camelCase one.

func readString(msg map[string]any, snake, camel string) string {
	if v, ok := msg[snake].(string); ok {
		return v
	}
	if v, ok := msg[camel].(string); ok {
		return v
	}
	return ""
}

func readBool(msg map[string]any, snake, camel string) (bool, bool) {
	if v, ok := msg[snake].(bool); ok {
		return v, true
	}
	if v, ok := msg[camel].(bool); ok {
		return v, true
	}
	return false, false
}

func readFloat(msg map[string]any, snake, camel string) (float64, bool) {
	if v, ok := msg[snake].(float64); ok {
		return v, true
	}
	if v, ok := msg[camel].(float64); ok {
		return v, true
	}
	return 0, false
}

func readLocation(msg map[string]any) (models.GeoPoint, bool) {
	lat, okLat := readFloat(msg, "lat", "latitude")
	lng, okLng := readFloat(msg, "lng", "longitude")
	if !okLat || !okLng {
		return models.GeoPoint{}, false
	}
	if !validator.ValidLatitude(lat) || !validator.ValidLongitude(lng) {
		return models.GeoPoint{}, false
	}
	return models.GeoPoint{Lat: lat, Lng: lng}, true
}

func readTripID(msg map[string]any) (uuid.UUID, bool) {
	raw := readString(msg, "trip_id", "tripId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
