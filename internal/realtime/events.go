package realtime

import (
	"context"
	"fmt"

	"github.com/alatoul/ride-hailing/pkg/eventbus"
	ws "github.com/alatoul/ride-hailing/pkg/websocket"
	"go.uber.org/zap"
)

// ConsumerName is the durable consumer used for ride events.
const ConsumerName = "realtime-rides"

// RegisterSubscriptions subscribes the websocket fan-out to every ride event.
func (s *Service) RegisterSubscriptions(ctx context.Context, bus eventbus.Subscriber) error {
	if err := bus.Subscribe(ctx, eventbus.SubjectAllRides, ConsumerName, s.HandleRideEvent); err != nil {
		return fmt.Errorf("subscribe to ride events: %w", err)
	}
	s.log.Info("realtime: subscribed to ride events")
	return nil
}

// HandleRideEvent pushes ride_update with the new status to the ride room.
// Cancellations also go straight to the party that did not cancel, whether
// or not it joined the room.
func (s *Service) HandleRideEvent(_ context.Context, event *eventbus.Event) error {
	if event.Type == eventbus.SubjectRideCancelled {
		return s.onRideCancelled(event)
	}

	var data eventbus.RideChangedData
	if err := event.Decode(&data); err != nil {
		s.log.Warn("realtime: bad ride event payload", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	payload := map[string]interface{}{
		"ride_id": data.RideID.String(),
		"status":  data.Status,
		"event":   event.Type,
	}
	if data.PreviousStatus != "" {
		payload["previous_status"] = data.PreviousStatus
	}
	if data.DriverID != nil {
		payload["driver_id"] = data.DriverID.String()
	}
	if data.AcceptedFare != nil {
		payload["accepted_fare"] = *data.AcceptedFare
	}
	if data.FinalFare != nil {
		payload["final_fare"] = *data.FinalFare
	}

	s.broadcastRideUpdate(data.RideID.String(), event.Type, payload)
	return nil
}

func (s *Service) onRideCancelled(event *eventbus.Event) error {
	var data eventbus.RideCancelledData
	if err := event.Decode(&data); err != nil {
		s.log.Warn("realtime: bad ride cancelled payload", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	rideID := data.RideID.String()
	s.broadcastRideUpdate(rideID, event.Type, map[string]interface{}{
		"ride_id":      rideID,
		"status":       "cancelled",
		"event":        event.Type,
		"cancelled_by": data.CancelledBy.String(),
		"reason":       data.Reason,
	})

	if data.RecipientID != nil {
		msg := ws.NewMessage(ws.TypeRideCancelled, map[string]interface{}{
			"ride_id":           rideID,
			"cancelled_by":      data.CancelledBy.String(),
			"cancelled_by_name": data.CancelledByName,
			"reason":            data.Reason,
		})
		msg.RideID = rideID
		s.hub.SendToUser(data.RecipientID.String(), msg)
	}
	return nil
}

func (s *Service) broadcastRideUpdate(rideID, subject string, payload map[string]interface{}) {
	msg := ws.NewMessage(ws.TypeRideUpdate, payload)
	msg.RideID = rideID
	s.hub.SendToRide(rideID, msg)
	rideUpdatesTotal.WithLabelValues(subject).Inc()
}
