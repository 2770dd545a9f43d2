package dto

import (
	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/addisride/dispatch/pkg/validator"
)

// LocationDto is an address plus WGS84 coordinate.
type LocationDto struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func (l LocationDto) validate(v *validator.Validator, prefix string) {
	v.Check(l.Address != "", prefix+".address", "must be provided")
	v.Check(validator.ValidLatitude(l.Lat), prefix+".lat", "must be between -90 and 90")
	v.Check(validator.ValidLongitude(l.Lng), prefix+".lng", "must be between -180 and 180")
}

// DriverTripRequest creates a driver self-initiated trip.
type DriverTripRequest struct {
	Pickup  LocationDto `json:"pickup"`
	Dropoff LocationDto `json:"dropoff"`

	PassengerPhone string `json:"passenger_phone"`
	PassengerName  string `json:"passenger_name"`

	EstimatedDistanceKm      float64 `json:"estimated_distance_km"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	EstimatedFare            float64 `json:"estimated_fare"`

	TripType      string `json:"trip_type"`
	PaymentMethod string `json:"payment_method"`
}

func (r *DriverTripRequest) Validate(v *validator.Validator) {
	r.Pickup.validate(v, "pickup")
	r.Dropoff.validate(v, "dropoff")

	v.Check(r.PassengerPhone != "", "passenger_phone", "must be provided")
	v.Check(r.PassengerPhone == "" || validator.Matches(r.PassengerPhone, validator.PhoneRX),
		"passenger_phone", "must be a valid phone number")

	v.Check(r.EstimatedDistanceKm >= 0, "estimated_distance_km", "must not be negative")
	v.Check(r.EstimatedDurationMinutes >= 0, "estimated_duration_minutes", "must not be negative")
	v.Check(r.EstimatedFare >= 0, "estimated_fare", "must not be negative")

	v.Check(r.TripType == "" || validator.PermittedValue(r.TripType,
		string(types.TripStandard), string(types.TripDelivery)),
		"trip_type", "must be standard or delivery")
}

// DispatcherTripRequest files a trip on behalf of a passenger; it enters
// the dispatch rotation.
type DispatcherTripRequest struct {
	Pickup  LocationDto `json:"pickup"`
	Dropoff LocationDto `json:"dropoff"`

	PassengerPhone     string `json:"passenger_phone"`
	PassengerFirstName string `json:"passenger_first_name"`
	PassengerLastName  string `json:"passenger_last_name"`

	VehicleClassID *int `json:"vehicle_class_id"`

	EstimatedDistanceKm      float64 `json:"estimated_distance_km"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	EstimatedFare            float64 `json:"estimated_fare"`

	TripType      string `json:"trip_type"`
	PaymentMethod string `json:"payment_method"`

	Instructions  string `json:"instructions"`
	RecipientName string `json:"recipient_name"`
	PackageInfo   string `json:"package_info"`
}

func (r *DispatcherTripRequest) Validate(v *validator.Validator) {
	r.Pickup.validate(v, "pickup")
	r.Dropoff.validate(v, "dropoff")

	v.Check(r.PassengerPhone != "", "passenger_phone", "must be provided")
	v.Check(r.PassengerPhone == "" || validator.Matches(r.PassengerPhone, validator.PhoneRX),
		"passenger_phone", "must be a valid phone number")
	v.Check(r.PassengerFirstName != "", "passenger_first_name", "must be provided")

	v.Check(r.VehicleClassID == nil || *r.VehicleClassID > 0, "vehicle_class_id", "must be positive")

	v.Check(r.EstimatedDistanceKm >= 0, "estimated_distance_km", "must not be negative")
	v.Check(r.EstimatedDurationMinutes >= 0, "estimated_duration_minutes", "must not be negative")
	v.Check(r.EstimatedFare >= 0, "estimated_fare", "must not be negative")

	v.Check(r.TripType == "" || validator.PermittedValue(r.TripType,
		string(types.TripStandard), string(types.TripDelivery)),
		"trip_type", "must be standard or delivery")

	if r.TripType == string(types.TripDelivery) {
		v.Check(r.RecipientName != "", "recipient_name", "must be provided for delivery trips")
	}
}

// CancelTripRequest carries the cancellation reason.
type CancelTripRequest struct {
	Reason string `json:"reason"`
}

func (r *CancelTripRequest) Validate(v *validator.Validator) {
	v.Check(r.Reason != "", "reason", "must be provided")
	v.Check(len(r.Reason) <= 500, "reason", "must not be longer than 500 characters")
}

// CompleteTripRequest carries optional actuals; omitted values fall back
// to the trip's estimates and the derived fare.
type CompleteTripRequest struct {
	ActualDistanceKm      *float64 `json:"actual_distance_km"`
	ActualDurationMinutes *int     `json:"actual_duration_minutes"`
	FinalFare             *float64 `json:"final_fare"`
}

func (r *CompleteTripRequest) Validate(v *validator.Validator) {
	v.Check(r.ActualDistanceKm == nil || *r.ActualDistanceKm >= 0,
		"actual_distance_km", "must not be negative")
	v.Check(r.ActualDurationMinutes == nil || *r.ActualDurationMinutes >= 0,
		"actual_duration_minutes", "must not be negative")
	v.Check(r.FinalFare == nil || *r.FinalFare >= 0, "final_fare", "must not be negative")
}
