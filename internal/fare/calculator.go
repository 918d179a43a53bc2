// Package fare computes ride fares from distance, duration and the
// platform pricing configuration.
package fare

import (
	"math"

	"github.com/alatoul/ride-hailing/pkg/models"
)

// Breakdown is the result of a fare calculation. Every amount is rounded
// to cents independently from the unrounded intermediates.
type Breakdown struct {
	BaseFare      float64 `json:"base_fare"`
	FinalFare     float64 `json:"final_fare"`
	PlatformFee   float64 `json:"platform_fee"`
	DriverEarning float64 `json:"driver_earning"`
}

// Calculate prices a trip of distanceMiles and durationMinutes. Negative or
// non-finite inputs count as zero, so the result is never below the
// minimum fare.
func Calculate(distanceMiles, durationMinutes float64, pricing models.Pricing) Breakdown {
	distance := sanitize(distanceMiles)
	duration := sanitize(durationMinutes)

	base := distance*pricing.BaseRatePerMile + duration*pricing.BaseRatePerMinute
	final := math.Max(base, pricing.MinimumFare)
	fee := final * pricing.PlatformFeePercent / 100
	earning := final - fee

	return Breakdown{
		BaseFare:      Round(base),
		FinalFare:     Round(final),
		PlatformFee:   Round(fee),
		DriverEarning: Round(earning),
	}
}

// Round rounds v to two decimal places, halves away from zero.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
