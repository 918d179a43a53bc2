package rides

import (
	"context"
	"errors"
	"time"

	"github.com/alatoul/ride-hailing/internal/fare"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/google/uuid"
)

var (
	// ErrRideNotFound is returned by the repository when no row matches.
	ErrRideNotFound = errors.New("ride not found")
	// ErrStatusConflict is returned by Save when the stored status no longer
	// matches the status the caller read.
	ErrStatusConflict = errors.New("ride status changed concurrently")
	// ErrAcceptRejected is returned by Accept when the ride is neither
	// pending nor accepted by the same driver.
	ErrAcceptRejected = errors.New("ride cannot be accepted")
)

// ListFilter scopes a ride listing.
type ListFilter struct {
	PassengerID *uuid.UUID
	DriverID    *uuid.UUID
	Status      models.RideStatus
	Limit       int
	Offset      int
}

// RepositoryInterface defines the ride storage operations
type RepositoryInterface interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	Accept(ctx context.Context, rideID, driverID uuid.UUID, counterOffer *float64) (*models.Ride, bool, error)
	Save(ctx context.Context, ride *models.Ride, expected models.RideStatus) error
	List(ctx context.Context, filter ListFilter) ([]*models.Ride, int64, error)
	ListPending(ctx context.Context) ([]*models.Ride, error)
	Statistics(ctx context.Context, passengerID *uuid.UUID) (*models.RideStatistics, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// PricingProvider supplies the current fare rates. Implementations must not
// cache: every call reflects the latest settings.
type PricingProvider interface {
	GetPricing(ctx context.Context) (models.Pricing, error)
}

// EventSink accepts ride events for delivery after the write has committed.
// Enqueue never blocks and reports whether the event was accepted.
type EventSink interface {
	Enqueue(ctx context.Context, subject string, data interface{}) bool
}

// AcceptLocker serializes concurrent accepts of one ride across instances.
type AcceptLocker interface {
	Acquire(ctx context.Context, id string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, id, token string) error
}

// ServiceInterface is what the HTTP handler needs from the service
type ServiceInterface interface {
	CreateRide(ctx context.Context, passengerID uuid.UUID, req *models.CreateRideRequest) (*models.Ride, error)
	GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	AcceptRide(ctx context.Context, rideID, driverID uuid.UUID, counterOffer *float64) (*models.Ride, error)
	TransitionRide(ctx context.Context, rideID, callerID uuid.UUID, target models.RideStatus) (*models.Ride, error)
	UpdateRide(ctx context.Context, rideID, callerID uuid.UUID, req *models.UpdateRideRequest) (*models.Ride, error)
	AmendRide(ctx context.Context, rideID, callerID uuid.UUID, req *models.AmendRideRequest) (*models.Ride, error)
	EndRide(ctx context.Context, rideID, callerID uuid.UUID) (*models.Ride, error)
	CancelRide(ctx context.Context, rideID, callerID uuid.UUID, reason string) (*models.Ride, error)
	ListRides(ctx context.Context, callerID *uuid.UUID, query *models.ListRidesQuery) (*models.RideList, error)
	PendingRides(ctx context.Context) ([]*models.Ride, error)
	Statistics(ctx context.Context, callerID *uuid.UUID) (*models.RideStatistics, error)
	QuoteFare(ctx context.Context, distance, duration float64) (*fare.Breakdown, error)
	RemoveRide(ctx context.Context, rideID uuid.UUID) error
}
