package rides

import (
	"fmt"
	"time"

	"github.com/alatoul/ride-hailing/internal/fare"
	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/google/uuid"
)

// transitions lists the statuses reachable from each non-terminal status.
// pending -> accepted only happens through Accept, which also sets the driver.
var transitions = map[models.RideStatus][]models.RideStatus{
	models.RideStatusPending:        {models.RideStatusAccepted, models.RideStatusCancelled},
	models.RideStatusAccepted:       {models.RideStatusDriverAssigned, models.RideStatusCancelled},
	models.RideStatusDriverAssigned: {models.RideStatusDriverArrived, models.RideStatusCancelled},
	models.RideStatusDriverArrived:  {models.RideStatusInProgress, models.RideStatusCancelled},
	models.RideStatusInProgress:     {models.RideStatusCompleted, models.RideStatusCancelled},
}

// driverOnly are the targets only the assigned driver may move a ride to.
var driverOnly = map[models.RideStatus]bool{
	models.RideStatusDriverAssigned: true,
	models.RideStatusDriverArrived:  true,
	models.RideStatusInProgress:     true,
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to models.RideStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition validates a caller-driven status change. Acceptance is
// rejected here because it needs a driver and goes through Accept.
func checkTransition(ride *models.Ride, callerID uuid.UUID, target models.RideStatus) error {
	if !target.IsValid() {
		return common.NewValidationError(fmt.Sprintf("unknown ride status: %s", target))
	}
	if !ride.IsParty(callerID) {
		return common.NewForbiddenError("only the passenger or the assigned driver can change this ride")
	}
	if ride.Status.IsTerminal() {
		return common.NewInvalidStateError(fmt.Sprintf("ride is already %s", ride.Status))
	}
	if target == models.RideStatusAccepted {
		return common.NewInvalidStateError("rides are accepted through the accept operation")
	}
	if !CanTransition(ride.Status, target) {
		return common.NewInvalidStateError(fmt.Sprintf("cannot move ride from %s to %s", ride.Status, target))
	}
	if driverOnly[target] && !ride.IsDriver(callerID) {
		return common.NewForbiddenError(fmt.Sprintf("only the assigned driver can move the ride to %s", target))
	}
	return nil
}

// applyTransition returns a copy of ride moved to target with the lifecycle
// timestamps stamped. Timestamps already set are never overwritten.
func applyTransition(ride *models.Ride, target models.RideStatus, now time.Time) *models.Ride {
	next := ride.Clone()
	next.Status = target

	switch target {
	case models.RideStatusInProgress:
		if next.StartedAt == nil {
			next.StartedAt = &now
		}
	case models.RideStatusCompleted:
		if next.CompletedAt == nil {
			next.CompletedAt = &now
			next.FinalFare = settledFare(next)
		}
	case models.RideStatusCancelled:
		if next.CancelledAt == nil {
			next.CancelledAt = &now
		}
	}
	return next
}

// settledFare is finalFare, else acceptedFare, else proposedFare.
func settledFare(ride *models.Ride) *float64 {
	var v float64
	switch {
	case ride.FinalFare != nil:
		v = *ride.FinalFare
	case ride.AcceptedFare != nil:
		v = *ride.AcceptedFare
	default:
		v = ride.ProposedFare
	}
	return &v
}

// applyAmendment returns a copy of ride with the requested details changed.
func applyAmendment(ride *models.Ride, callerID uuid.UUID, req *models.AmendRideRequest) (*models.Ride, error) {
	if !ride.IsParty(callerID) {
		return nil, common.NewForbiddenError("only the passenger or the assigned driver can change this ride")
	}
	if ride.Status.IsTerminal() {
		return nil, common.NewInvalidStateError(fmt.Sprintf("ride is already %s", ride.Status))
	}

	next := ride.Clone()
	if req.AcceptedFare != nil {
		if ride.Status != models.RideStatusAccepted {
			return nil, common.NewInvalidStateError("accepted fare can only change while the ride is accepted")
		}
		if !ride.IsDriver(callerID) {
			return nil, common.NewForbiddenError("only the assigned driver can change the accepted fare")
		}
		v := fare.Round(*req.AcceptedFare)
		next.AcceptedFare = &v
	}
	if req.FinalFare != nil {
		if ride.Status != models.RideStatusInProgress {
			return nil, common.NewInvalidStateError("final fare can only change while the ride is in progress")
		}
		v := fare.Round(*req.FinalFare)
		next.FinalFare = &v
	}
	if req.Distance != nil {
		v := fare.Round(*req.Distance)
		next.Distance = &v
	}
	if req.EstimatedDuration != nil {
		v := *req.EstimatedDuration
		next.EstimatedDuration = &v
	}
	return next, nil
}
