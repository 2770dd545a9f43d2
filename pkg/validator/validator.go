package validator

import (
	"regexp"
)

var (
	// UUIDRX matches UUID versions 1-5 in their canonical form.
	UUIDRX = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

	// PhoneRX matches E.164-ish phone numbers, e.g. +251911234567.
	PhoneRX = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// Validator collects validation errors keyed by field name.
type Validator struct {
	Errors map[string]string
}

// New returns a Validator with an empty error map.
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid returns true if the error map is empty.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError adds an error for the given key, keeping the first message.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check adds an error message to the map only if a validation check is not ok.
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// PermittedValue returns true if a value is in a list of permitted values.
func PermittedValue[T comparable](value T, permittedValues ...T) bool {
	for i := range permittedValues {
		if value == permittedValues[i] {
			return true
		}
	}
	return false
}

// Matches returns true if a string value matches a regexp pattern.
func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

// InRange returns true if min <= value <= max.
func InRange[T int | int64 | float64](value, min, max T) bool {
	return value >= min && value <= max
}

// ValidLatitude returns true for a latitude in [-90, 90].
func ValidLatitude(lat float64) bool {
	return InRange(lat, -90, 90)
}

// ValidLongitude returns true for a longitude in [-180, 180].
func ValidLongitude(lng float64) bool {
	return InRange(lng, -180, 180)
}
