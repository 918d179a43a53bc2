package rides

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alatoul/ride-hailing/internal/fare"
	"github.com/alatoul/ride-hailing/pkg/cache"
	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/eventbus"
	"github.com/alatoul/ride-hailing/pkg/geo"
	"github.com/alatoul/ride-hailing/pkg/logger"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/alatoul/ride-hailing/pkg/pagination"
	"github.com/alatoul/ride-hailing/pkg/security"
	"github.com/alatoul/ride-hailing/pkg/tracing"
	"github.com/alatoul/ride-hailing/pkg/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultCacheTTL = 30 * time.Second
	defaultLockTTL  = 5 * time.Second

	maxLocationLength = 255
	maxReasonLength   = 500
	minLocationLength = 5
)

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithCache enables the read-through ride cache.
func WithCache(c *cache.Manager, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithAcceptLock serializes concurrent accepts of a ride through locker.
func WithAcceptLock(locker AcceptLocker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locks = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithClock overrides the time source used for lifecycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service implements the ride lifecycle
type Service struct {
	repo     RepositoryInterface
	pricing  PricingProvider
	events   EventSink
	cache    *cache.Manager
	cacheTTL time.Duration
	locks    AcceptLocker
	lockTTL  time.Duration
	now      func() time.Time
}

// NewService creates a new rides service. events may be nil, in which case
// no ride events are emitted.
func NewService(repo RepositoryInterface, pricing PricingProvider, events EventSink, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		pricing:  pricing,
		events:   events,
		cacheTTL: defaultCacheTTL,
		lockTTL:  defaultLockTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRide creates a pending ride for passengerID
func (s *Service) CreateRide(ctx context.Context, passengerID uuid.UUID, req *models.CreateRideRequest) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, eventSource, "CreateRide")
	defer span.End()

	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}

	pickup := security.SanitizeText(req.PickupLocation, maxLocationLength)
	destination := security.SanitizeText(req.Destination, maxLocationLength)
	if len([]rune(pickup)) < minLocationLength {
		return nil, common.NewValidationError("pickup_location must be at least 5 characters")
	}
	if len([]rune(destination)) < minLocationLength {
		return nil, common.NewValidationError("destination must be at least 5 characters")
	}

	ride := &models.Ride{
		ID:                   uuid.New(),
		PassengerID:          passengerID,
		Type:                 req.Type,
		Status:               models.RideStatusPending,
		PickupLocation:       pickup,
		PickupLatitude:       req.PickupLatitude,
		PickupLongitude:      req.PickupLongitude,
		Destination:          destination,
		DestinationLatitude:  req.DestinationLatitude,
		DestinationLongitude: req.DestinationLongitude,
		ProposedFare:         fare.Round(req.ProposedFare),
		Distance:             req.Distance,
		EstimatedDuration:    req.EstimatedDuration,
		Passengers:           req.Passengers,
		ScheduledDate:        req.ScheduledDate,
		ScheduledTime:        req.ScheduledTime,
	}
	if ride.Type == models.RideTypeNow {
		ride.ScheduledDate = nil
		ride.ScheduledTime = nil
	}
	if ride.Distance != nil {
		d := fare.Round(*ride.Distance)
		ride.Distance = &d
	}
	fillRouteEstimate(ride)

	tracing.AddSpanAttributes(ctx, tracing.RideAttributes(ride.ID.String(), passengerID.String())...)

	if err := s.repo.Create(ctx, ride); err != nil {
		tracing.RecordError(ctx, err)
		return nil, common.NewInternalError("failed to create ride", err)
	}

	logger.InfoContext(ctx, "ride created",
		zap.String("ride_id", ride.ID.String()),
		zap.String("passenger_id", passengerID.String()),
		zap.String("type", string(ride.Type)),
		zap.Float64("proposed_fare", ride.ProposedFare),
	)
	s.emitChange(ctx, eventbus.SubjectRideCreated, ride, "", &passengerID)
	return ride, nil
}

// fillRouteEstimate derives distance and duration from the coordinates when
// the client did not supply them.
func fillRouteEstimate(ride *models.Ride) {
	if ride.PickupLatitude == nil || ride.PickupLongitude == nil ||
		ride.DestinationLatitude == nil || ride.DestinationLongitude == nil {
		return
	}
	if ride.Distance == nil {
		d := geo.HaversineMiles(*ride.PickupLatitude, *ride.PickupLongitude, *ride.DestinationLatitude, *ride.DestinationLongitude)
		ride.Distance = &d
	}
	if ride.EstimatedDuration == nil {
		m := geo.EstimateDurationMinutes(*ride.Distance)
		ride.EstimatedDuration = &m
	}
}

// GetRide retrieves a ride, serving from the cache when enabled
func (s *Service) GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, eventSource, "GetRide")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.RideAttributes(rideID.String(), "")...)

	if ride, ok := s.cached(ctx, rideID); ok {
		return ride, nil
	}

	// The version is read before the row so a write landing in between
	// makes the fill a no-op.
	version, fill := s.cacheVersion(ctx, rideID)
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if fill {
		s.store(ctx, ride, version)
	}
	return ride, nil
}

// AcceptRide assigns driverID to a pending ride, or renegotiates the fare of
// a ride the same driver already accepted.
func (s *Service) AcceptRide(ctx context.Context, rideID, driverID uuid.UUID, counterOffer *float64) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, eventSource, "AcceptRide")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.RideAttributes(rideID.String(), "")...)
	tracing.AddSpanAttributes(ctx, tracing.DriverIDKey.String(driverID.String()))

	if counterOffer != nil {
		if *counterOffer < 1 {
			return nil, common.NewValidationError("counter_offer must be at least 1")
		}
		v := fare.Round(*counterOffer)
		counterOffer = &v
	}

	release, err := s.lockAccept(ctx, rideID)
	if err != nil {
		return nil, err
	}
	defer release()

	ride, changed, err := s.repo.Accept(ctx, rideID, driverID, counterOffer)
	if errors.Is(err, ErrAcceptRejected) {
		return nil, s.acceptRejection(ctx, rideID)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, common.NewInternalError("failed to accept ride", err)
	}
	if !changed {
		return ride, nil
	}

	s.invalidate(ctx, rideID)
	fields := []zap.Field{
		zap.String("ride_id", rideID.String()),
		zap.String("driver_id", driverID.String()),
	}
	if ride.AcceptedFare != nil {
		fields = append(fields, zap.Float64("accepted_fare", *ride.AcceptedFare))
	}
	logger.InfoContext(ctx, "ride accepted", fields...)
	s.emitChange(ctx, eventbus.SubjectRideAccepted, ride, "", &driverID)
	return ride, nil
}

func (s *Service) lockAccept(ctx context.Context, rideID uuid.UUID) (func(), error) {
	noop := func() {}
	if s.locks == nil {
		return noop, nil
	}

	token, acquired, err := s.locks.Acquire(ctx, rideID.String(), s.lockTTL)
	if err != nil {
		// The conditional update still serializes accepts without the lock.
		logger.WarnContext(ctx, "failed to acquire accept lock", zap.String("ride_id", rideID.String()), zap.Error(err))
		return noop, nil
	}
	if !acquired {
		recordAcceptConflict("locked")
		return nil, common.NewInvalidStateError("ride is being accepted by another driver")
	}

	return func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), rideID.String(), token); err != nil {
			logger.WarnContext(ctx, "failed to release accept lock", zap.String("ride_id", rideID.String()), zap.Error(err))
		}
	}, nil
}

// acceptRejection explains why the conditional accept matched no row.
func (s *Service) acceptRejection(ctx context.Context, rideID uuid.UUID) error {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return err
	}
	recordAcceptConflict(string(ride.Status))
	if ride.Status == models.RideStatusAccepted {
		return common.NewInvalidStateError("ride has already been accepted by another driver")
	}
	return common.NewInvalidStateError(fmt.Sprintf("ride cannot be accepted while %s", ride.Status))
}

// TransitionRide moves a ride along the lifecycle. Cancellation needs a
// reason and goes through CancelRide.
func (s *Service) TransitionRide(ctx context.Context, rideID, callerID uuid.UUID, target models.RideStatus) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, eventSource, "TransitionRide")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.RideAttributes(rideID.String(), callerID.String())...)
	tracing.AddSpanAttributes(ctx, tracing.RideStatusKey.String(string(target)))

	return s.transition(ctx, rideID, callerID, target, "")
}

// EndRide completes an in-progress ride
func (s *Service) EndRide(ctx context.Context, rideID, callerID uuid.UUID) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, eventSource, "EndRide")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.RideAttributes(rideID.String(), callerID.String())...)

	ride, err := s.load(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsParty(callerID) {
		return nil, common.NewForbiddenError("only the passenger or the assigned driver can end this ride")
	}
	if ride.Status != models.RideStatusInProgress {
		return nil, common.NewInvalidStateError(fmt.Sprintf("ride cannot be ended while %s", ride.Status))
	}
	return s.apply(ctx, ride, ride, callerID, models.RideStatusCompleted, "")
}

// CancelRide cancels a non-terminal ride and notifies the other party.
// Permission and state are checked before the reason.
func (s *Service) CancelRide(ctx context.Context, rideID, callerID uuid.UUID, reason string) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, eventSource, "CancelRide")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.RideAttributes(rideID.String(), callerID.String())...)

	return s.transition(ctx, rideID, callerID, models.RideStatusCancelled, reason)
}

// UpdateRide applies a partial update. Detail changes and the status change
// are validated together against the stored ride and written in one save,
// so a rejected request changes nothing.
func (s *Service) UpdateRide(ctx context.Context, rideID, callerID uuid.UUID, req *models.UpdateRideRequest) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, eventSource, "UpdateRide")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.RideAttributes(rideID.String(), callerID.String())...)

	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.Status == nil && req.AmendRideRequest.IsEmpty() {
		return nil, common.NewValidationError("no fields to update")
	}

	ride, err := s.load(ctx, rideID)
	if err != nil {
		return nil, err
	}

	next := ride
	if !req.AmendRideRequest.IsEmpty() {
		if next, err = applyAmendment(ride, callerID, &req.AmendRideRequest); err != nil {
			return nil, err
		}
	}
	if req.Status == nil {
		return s.amend(ctx, ride, next, callerID)
	}

	target := *req.Status
	raw := ""
	if req.CancellationReason != nil {
		raw = *req.CancellationReason
	}
	reason, err := checkStatusChange(ride, callerID, target, raw)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, ride, next, callerID, target, reason)
}

// AmendRide changes non-status ride details
func (s *Service) AmendRide(ctx context.Context, rideID, callerID uuid.UUID, req *models.AmendRideRequest) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, eventSource, "AmendRide")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.RideAttributes(rideID.String(), callerID.String())...)

	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.IsEmpty() {
		return nil, common.NewValidationError("no fields to update")
	}

	ride, err := s.load(ctx, rideID)
	if err != nil {
		return nil, err
	}
	next, err := applyAmendment(ride, callerID, req)
	if err != nil {
		return nil, err
	}
	return s.amend(ctx, ride, next, callerID)
}

func (s *Service) amend(ctx context.Context, ride, next *models.Ride, callerID uuid.UUID) (*models.Ride, error) {
	if err := s.save(ctx, next, ride.Status); err != nil {
		return nil, err
	}
	s.emitChange(ctx, eventbus.SubjectRideUpdated, next, ride.Status, &callerID)
	return next, nil
}

func (s *Service) transition(ctx context.Context, rideID, callerID uuid.UUID, target models.RideStatus, rawReason string) (*models.Ride, error) {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return nil, err
	}
	reason, err := checkStatusChange(ride, callerID, target, rawReason)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, ride, ride, callerID, target, reason)
}

// checkStatusChange runs the transition rules and, for a cancellation, then
// requires a non-blank reason. It returns the sanitized reason.
func checkStatusChange(ride *models.Ride, callerID uuid.UUID, target models.RideStatus, rawReason string) (string, error) {
	if err := checkTransition(ride, callerID, target); err != nil {
		return "", err
	}
	if target != models.RideStatusCancelled {
		return "", nil
	}
	reason := security.SanitizeText(rawReason, maxReasonLength)
	if strings.TrimSpace(reason) == "" {
		return "", common.NewValidationError("cancellation reason is required")
	}
	return reason, nil
}

// apply writes an already validated transition of ride and emits its event.
// base carries any detail changes made alongside the status change.
func (s *Service) apply(ctx context.Context, ride, base *models.Ride, callerID uuid.UUID, target models.RideStatus, reason string) (*models.Ride, error) {
	next := applyTransition(base, target, s.now().UTC())
	if target == models.RideStatusCancelled {
		next.CancellationReason = &reason
	}

	if err := s.save(ctx, next, ride.Status); err != nil {
		return nil, err
	}
	recordTransition(string(ride.Status), string(target))

	logger.InfoContext(ctx, "ride status changed",
		zap.String("ride_id", ride.ID.String()),
		zap.String("from", string(ride.Status)),
		zap.String("to", string(target)),
		zap.String("actor_id", callerID.String()),
	)

	if target == models.RideStatusCancelled {
		s.emitCancellation(ctx, next, callerID, reason)
	} else {
		s.emitChange(ctx, eventbus.SubjectRideStatusChanged, next, ride.Status, &callerID)
	}
	return next, nil
}

// ListRides returns a page of rides. A role scopes the listing to the
// caller; a role without a caller yields an empty page.
func (s *Service) ListRides(ctx context.Context, callerID *uuid.UUID, query *models.ListRidesQuery) (*models.RideList, error) {
	if err := validation.ValidateStruct(query); err != nil {
		return nil, err
	}

	p := pagination.Normalize(query.Page, query.Limit)
	empty := &models.RideList{Rides: []*models.Ride{}, Total: 0, Page: p.Page, Limit: p.Limit}

	filter := ListFilter{Status: query.Status, Limit: p.Limit, Offset: p.Offset()}
	switch models.UserRole(query.Role) {
	case models.RolePassenger:
		if callerID == nil {
			return empty, nil
		}
		filter.PassengerID = callerID
	case models.RoleDriver:
		if callerID == nil {
			return empty, nil
		}
		filter.DriverID = callerID
	}

	rides, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, common.NewInternalError("failed to list rides", err)
	}
	return &models.RideList{Rides: rides, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

// PendingRides returns every ride waiting for a driver
func (s *Service) PendingRides(ctx context.Context) ([]*models.Ride, error) {
	rides, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, common.NewInternalError("failed to list pending rides", err)
	}
	return rides, nil
}

// Statistics returns ride counts, with the total scoped to callerID when set
func (s *Service) Statistics(ctx context.Context, callerID *uuid.UUID) (*models.RideStatistics, error) {
	stats, err := s.repo.Statistics(ctx, callerID)
	if err != nil {
		return nil, common.NewInternalError("failed to get ride statistics", err)
	}
	return stats, nil
}

// QuoteFare prices a trip with the current fare rates
func (s *Service) QuoteFare(ctx context.Context, distance, duration float64) (*fare.Breakdown, error) {
	ctx, span := tracing.StartSpan(ctx, eventSource, "QuoteFare")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.DistanceKey.Float64(distance), tracing.DurationKey.Float64(duration))

	pricing, err := s.pricing.GetPricing(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		if _, ok := common.IsAppError(err); ok {
			return nil, err
		}
		return nil, common.NewInternalError("failed to load pricing", err)
	}

	breakdown := fare.Calculate(distance, duration, pricing)
	tracing.AddSpanAttributes(ctx, tracing.FareAmountKey.Float64(breakdown.FinalFare))
	return &breakdown, nil
}

// RemoveRide deletes a ride
func (s *Service) RemoveRide(ctx context.Context, rideID uuid.UUID) error {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, rideID)
	if err != nil {
		return common.NewInternalError("failed to delete ride", err)
	}
	if !deleted {
		return common.NewNotFoundError("ride not found", ErrRideNotFound)
	}

	s.invalidate(ctx, rideID)
	logger.InfoContext(ctx, "ride deleted", zap.String("ride_id", rideID.String()))
	s.emitChange(ctx, eventbus.SubjectRideDeleted, ride, ride.Status, nil)
	return nil
}

func (s *Service) load(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	ride, err := s.repo.GetByID(ctx, rideID)
	if errors.Is(err, ErrRideNotFound) {
		return nil, common.NewNotFoundError("ride not found", err)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, common.NewInternalError("failed to get ride", err)
	}
	return ride, nil
}

func (s *Service) save(ctx context.Context, ride *models.Ride, expected models.RideStatus) error {
	err := s.repo.Save(ctx, ride, expected)
	if errors.Is(err, ErrStatusConflict) {
		return common.NewInvalidStateError("ride was changed by another request, reload and retry")
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return common.NewInternalError("failed to update ride", err)
	}
	s.invalidate(ctx, ride.ID)
	return nil
}

func (s *Service) cached(ctx context.Context, rideID uuid.UUID) (*models.Ride, bool) {
	if s.cache == nil {
		return nil, false
	}
	var ride models.Ride
	err := s.cache.Get(ctx, cache.Keys.Ride(rideID.String()), &ride)
	if err == nil {
		return &ride, true
	}
	if !cache.IsMiss(err) {
		logger.WarnContext(ctx, "failed to read ride cache", zap.String("ride_id", rideID.String()), zap.Error(err))
	}
	return nil, false
}

func (s *Service) cacheVersion(ctx context.Context, rideID uuid.UUID) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	version, err := s.cache.Version(ctx, cache.Keys.Ride(rideID.String()))
	if err != nil {
		logger.WarnContext(ctx, "failed to read ride cache version", zap.String("ride_id", rideID.String()), zap.Error(err))
		return "", false
	}
	return version, true
}

func (s *Service) store(ctx context.Context, ride *models.Ride, version string) {
	stored, err := s.cache.SetIfVersion(ctx, cache.Keys.Ride(ride.ID.String()), ride, s.cacheTTL, version)
	if err != nil {
		logger.WarnContext(ctx, "failed to cache ride", zap.String("ride_id", ride.ID.String()), zap.Error(err))
		return
	}
	if !stored {
		logger.DebugContext(ctx, "skipped caching ride changed during read", zap.String("ride_id", ride.ID.String()))
	}
}

func (s *Service) invalidate(ctx context.Context, rideID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.Keys.Ride(rideID.String())); err != nil {
		logger.WarnContext(ctx, "failed to invalidate ride cache", zap.String("ride_id", rideID.String()), zap.Error(err))
	}
}

func (s *Service) emitChange(ctx context.Context, subject string, ride *models.Ride, previous models.RideStatus, actorID *uuid.UUID) {
	if s.events == nil {
		return
	}
	s.events.Enqueue(ctx, subject, eventbus.RideChangedData{
		RideID:         ride.ID,
		PassengerID:    ride.PassengerID,
		DriverID:       ride.DriverID,
		Status:         string(ride.Status),
		PreviousStatus: string(previous),
		ActorID:        actorID,
		AcceptedFare:   ride.AcceptedFare,
		FinalFare:      ride.FinalFare,
		OccurredAt:     ride.UpdatedAt,
	})
}

// emitCancellation addresses the cancellation to the party that did not
// cancel. Without one nothing is sent.
func (s *Service) emitCancellation(ctx context.Context, ride *models.Ride, callerID uuid.UUID, reason string) {
	if s.events == nil {
		return
	}
	recipient := ride.CounterpartOf(callerID)
	if recipient == nil {
		return
	}

	user, err := s.repo.GetUserByID(ctx, callerID)
	if err != nil {
		logger.WarnContext(ctx, "failed to load canceller name", zap.String("user_id", callerID.String()), zap.Error(err))
		user = nil
	}

	s.events.Enqueue(ctx, eventbus.SubjectRideCancelled, eventbus.RideCancelledData{
		RideID:          ride.ID,
		PassengerID:     ride.PassengerID,
		DriverID:        ride.DriverID,
		CancelledBy:     callerID,
		CancelledByName: user.DisplayName(),
		RecipientID:     recipient,
		Reason:          reason,
		CancelledAt:     *ride.CancelledAt,
	})
}
