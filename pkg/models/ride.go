package models

import (
	"time"

	"github.com/google/uuid"
)

// RideStatus represents the status of a ride
type RideStatus string

const (
	RideStatusPending        RideStatus = "pending"
	RideStatusAccepted       RideStatus = "accepted"
	RideStatusDriverAssigned RideStatus = "driver_assigned"
	RideStatusDriverArrived  RideStatus = "driver_arrived"
	RideStatusInProgress     RideStatus = "in_progress"
	RideStatusCompleted      RideStatus = "completed"
	RideStatusCancelled      RideStatus = "cancelled"
)

// AllRideStatuses lists every status in lifecycle order.
var AllRideStatuses = []RideStatus{
	RideStatusPending,
	RideStatusAccepted,
	RideStatusDriverAssigned,
	RideStatusDriverArrived,
	RideStatusInProgress,
	RideStatusCompleted,
	RideStatusCancelled,
}

// IsValid reports whether s is a known status.
func (s RideStatus) IsValid() bool {
	for _, known := range AllRideStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the ride can no longer change.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// RideType distinguishes immediate from scheduled rides
type RideType string

const (
	RideTypeNow       RideType = "now"
	RideTypeScheduled RideType = "scheduled"
)

// Ride represents a ride in the system
type Ride struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	PassengerID          uuid.UUID  `json:"passenger_id" db:"passenger_id"`
	DriverID             *uuid.UUID `json:"driver_id,omitempty" db:"driver_id"`
	Type                 RideType   `json:"type" db:"type"`
	Status               RideStatus `json:"status" db:"status"`
	PickupLocation       string     `json:"pickup_location" db:"pickup_location"`
	PickupLatitude       *float64   `json:"pickup_latitude,omitempty" db:"pickup_latitude"`
	PickupLongitude      *float64   `json:"pickup_longitude,omitempty" db:"pickup_longitude"`
	Destination          string     `json:"destination" db:"destination"`
	DestinationLatitude  *float64   `json:"destination_latitude,omitempty" db:"destination_latitude"`
	DestinationLongitude *float64   `json:"destination_longitude,omitempty" db:"destination_longitude"`
	ProposedFare         float64    `json:"proposed_fare" db:"proposed_fare"`
	AcceptedFare         *float64   `json:"accepted_fare,omitempty" db:"accepted_fare"`
	FinalFare            *float64   `json:"final_fare,omitempty" db:"final_fare"`
	Distance             *float64   `json:"distance,omitempty" db:"distance"`                     // miles
	EstimatedDuration    *int       `json:"estimated_duration,omitempty" db:"estimated_duration"` // minutes
	Passengers           int        `json:"passengers" db:"passengers"`
	ScheduledDate        *string    `json:"scheduled_date,omitempty" db:"scheduled_date"`
	ScheduledTime        *string    `json:"scheduled_time,omitempty" db:"scheduled_time"`
	StartedAt            *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason   *string    `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// IsParty reports whether userID is the passenger or the assigned driver.
func (r *Ride) IsParty(userID uuid.UUID) bool {
	return r.PassengerID == userID || r.IsDriver(userID)
}

// IsDriver reports whether userID is the assigned driver.
func (r *Ride) IsDriver(userID uuid.UUID) bool {
	return r.DriverID != nil && *r.DriverID == userID
}

// CounterpartOf returns the other party of the ride, or nil when there is none.
func (r *Ride) CounterpartOf(userID uuid.UUID) *uuid.UUID {
	switch {
	case r.PassengerID == userID:
		if r.DriverID == nil {
			return nil
		}
		id := *r.DriverID
		return &id
	case r.IsDriver(userID):
		id := r.PassengerID
		return &id
	default:
		return nil
	}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (r *Ride) Clone() *Ride {
	if r == nil {
		return nil
	}
	c := *r
	c.DriverID = cloneUUID(r.DriverID)
	c.PickupLatitude = cloneFloat(r.PickupLatitude)
	c.PickupLongitude = cloneFloat(r.PickupLongitude)
	c.DestinationLatitude = cloneFloat(r.DestinationLatitude)
	c.DestinationLongitude = cloneFloat(r.DestinationLongitude)
	c.AcceptedFare = cloneFloat(r.AcceptedFare)
	c.FinalFare = cloneFloat(r.FinalFare)
	c.Distance = cloneFloat(r.Distance)
	if r.EstimatedDuration != nil {
		d := *r.EstimatedDuration
		c.EstimatedDuration = &d
	}
	c.ScheduledDate = cloneString(r.ScheduledDate)
	c.ScheduledTime = cloneString(r.ScheduledTime)
	c.StartedAt = cloneTime(r.StartedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.CancelledAt = cloneTime(r.CancelledAt)
	c.CancellationReason = cloneString(r.CancellationReason)
	return &c
}

// CreateRideRequest is the payload for requesting a ride
type CreateRideRequest struct {
	PickupLocation       string   `json:"pickup_location" validate:"required,min=5"`
	PickupLatitude       *float64 `json:"pickup_latitude,omitempty" validate:"omitempty,latitude"`
	PickupLongitude      *float64 `json:"pickup_longitude,omitempty" validate:"omitempty,longitude"`
	Destination          string   `json:"destination" validate:"required,min=5"`
	DestinationLatitude  *float64 `json:"destination_latitude,omitempty" validate:"omitempty,latitude"`
	DestinationLongitude *float64 `json:"destination_longitude,omitempty" validate:"omitempty,longitude"`
	ProposedFare         float64  `json:"proposed_fare" validate:"gte=1"`
	Type                 RideType `json:"type" validate:"required,ride_type"`
	Passengers           int      `json:"passengers" validate:"gte=1"`
	ScheduledDate        *string  `json:"scheduled_date,omitempty" validate:"required_if=Type scheduled,omitempty,iso_date"`
	ScheduledTime        *string  `json:"scheduled_time,omitempty"`
	Distance             *float64 `json:"distance,omitempty" validate:"omitempty,gte=0"`
	EstimatedDuration    *int     `json:"estimated_duration,omitempty" validate:"omitempty,gte=0"`
}

// AcceptRideRequest carries an optional driver counter-offer
type AcceptRideRequest struct {
	CounterOffer *float64 `json:"counter_offer,omitempty" validate:"omitempty,gte=1"`
}

// CancelRideRequest carries the cancellation reason
type CancelRideRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

// TransitionRideRequest moves a ride to a new status
type TransitionRideRequest struct {
	Status RideStatus `json:"status" validate:"required,ride_status"`
}

// AmendRideRequest edits non-status ride details
type AmendRideRequest struct {
	Distance          *float64 `json:"distance,omitempty" validate:"omitempty,gte=0"`
	EstimatedDuration *int     `json:"estimated_duration,omitempty" validate:"omitempty,gte=0"`
	AcceptedFare      *float64 `json:"accepted_fare,omitempty" validate:"omitempty,gte=1"`
	FinalFare         *float64 `json:"final_fare,omitempty" validate:"omitempty,gte=0"`
}

// IsEmpty reports whether no field is set.
func (r AmendRideRequest) IsEmpty() bool {
	return r.Distance == nil && r.EstimatedDuration == nil && r.AcceptedFare == nil && r.FinalFare == nil
}

// UpdateRideRequest is the PATCH payload: an optional status change plus details
type UpdateRideRequest struct {
	Status             *RideStatus `json:"status,omitempty" validate:"omitempty,ride_status"`
	CancellationReason *string     `json:"cancellation_reason,omitempty"`
	AmendRideRequest
}

// ListRidesQuery filters the ride listing
type ListRidesQuery struct {
	Role   string     `form:"role" validate:"omitempty,oneof=passenger driver"`
	Status RideStatus `form:"status" validate:"omitempty,ride_status"`
	Page   int        `form:"page"`
	Limit  int        `form:"limit"`
}

// RideList is a page of rides
type RideList struct {
	Rides []*Ride `json:"rides"`
	Total int64   `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}

// RideStatistics aggregates ride counts
type RideStatistics struct {
	TotalRides      int64 `json:"total_rides"`
	CompletedRides  int64 `json:"completed_rides"`
	PendingRides    int64 `json:"pending_rides"`
	InProgressRides int64 `json:"in_progress_rides"`
}

func cloneUUID(v *uuid.UUID) *uuid.UUID {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
