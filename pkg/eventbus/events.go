package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// RideCancelledData is emitted after a cancellation commits. RecipientID is
// the party that did not cancel; it is nil when no driver was assigned.
type RideCancelledData struct {
	RideID          uuid.UUID  `json:"ride_id"`
	PassengerID     uuid.UUID  `json:"passenger_id"`
	DriverID        *uuid.UUID `json:"driver_id,omitempty"`
	CancelledBy     uuid.UUID  `json:"cancelled_by"`
	CancelledByName string     `json:"cancelled_by_name"`
	RecipientID     *uuid.UUID `json:"recipient_id,omitempty"`
	Reason          string     `json:"reason"`
	CancelledAt     time.Time  `json:"cancelled_at"`
}

// RideChangedData describes any other committed ride write. It feeds the
// realtime fan-out.
type RideChangedData struct {
	RideID         uuid.UUID  `json:"ride_id"`
	PassengerID    uuid.UUID  `json:"passenger_id"`
	DriverID       *uuid.UUID `json:"driver_id,omitempty"`
	Status         string     `json:"status"`
	PreviousStatus string     `json:"previous_status,omitempty"`
	ActorID        *uuid.UUID `json:"actor_id,omitempty"`
	AcceptedFare   *float64   `json:"accepted_fare,omitempty"`
	FinalFare      *float64   `json:"final_fare,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// Recipients returns the users who should see the change.
func (d RideChangedData) Recipients() []uuid.UUID {
	out := []uuid.UUID{d.PassengerID}
	if d.DriverID != nil {
		out = append(out, *d.DriverID)
	}
	return out
}

// PricingUpdatedData announces new fare rates. Rates are never cached by
// consumers; the event is informational.
type PricingUpdatedData struct {
	PlatformFeePercent float64   `json:"platform_fee_percent"`
	MinimumFare        float64   `json:"minimum_fare"`
	BaseRatePerMile    float64   `json:"base_rate_per_mile"`
	BaseRatePerMinute  float64   `json:"base_rate_per_minute"`
	UpdatedAt          time.Time `json:"updated_at"`
}
