package trip

import (
	"math"

	"github.com/addisride/dispatch/internal/domain/models"
)

// Fare constants in currency units (Ethiopian birr).
const (
	BaseFare      = 50.0
	RatePerKm     = 15.0
	RatePerMinute = 2.0
	MinFare       = 100.0

	DriverShare = 0.85
)

// FareBreakdown is a fare split into integer cents. Commission is the
// exact remainder so the three parts always sum.
type FareBreakdown struct {
	FareCents       int64
	EarningsCents   int64
	CommissionCents int64
}

// CalculateFare derives the fare from distance and duration:
// max(min_fare, base + per_km * distance + per_minute * duration).
func CalculateFare(distanceKm float64, durationMin int) FareBreakdown {
	fare := BaseFare + RatePerKm*distanceKm + RatePerMinute*float64(durationMin)
	if fare < MinFare {
		fare = MinFare
	}
	return BreakdownFromFare(fare)
}

// BreakdownFromFare splits a fare (currency units) into driver earnings
// and commission at the standard 85/15 split.
func BreakdownFromFare(fare float64) FareBreakdown {
	fareCents := toCents(fare)
	earningsCents := toCents(fare * DriverShare)
	return FareBreakdown{
		FareCents:       fareCents,
		EarningsCents:   earningsCents,
		CommissionCents: fareCents - earningsCents,
	}
}

// toCents converts currency units to integer cents, rounding half away
// from zero and saturating at the earnings accumulator cap so an absurd
// fare can never overflow the signed 64-bit columns.
func toCents(amount float64) int64 {
	cents := math.Round(amount * 100)
	if cents >= float64(models.MaxEarningsCents) {
		return models.MaxEarningsCents
	}
	return int64(cents)
}
