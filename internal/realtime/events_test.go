package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alatoul/ride-hailing/pkg/eventbus"
	ws "github.com/alatoul/ride-hailing/pkg/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEvent(t *testing.T, subject string, data interface{}) *eventbus.Event {
	t.Helper()
	event, err := eventbus.NewEvent(subject, "rides", data)
	require.NoError(t, err)
	return event
}

func TestHandleRideEvent_StatusChange(t *testing.T) {
	svc, hub := newTestService(new(mockRepository), nil)
	rideID, driverID := uuid.New(), uuid.New()
	fare := 23.4

	err := svc.HandleRideEvent(context.Background(), mustEvent(t, eventbus.SubjectRideAccepted, eventbus.RideChangedData{
		RideID:         rideID,
		PassengerID:    uuid.New(),
		DriverID:       &driverID,
		Status:         "accepted",
		PreviousStatus: "pending",
		AcceptedFare:   &fare,
	}))
	require.NoError(t, err)

	frames := drainBroadcasts(hub)
	require.Len(t, frames, 1)
	b := frames[0]
	assert.Equal(t, ws.TargetRide, b.Target)
	assert.Equal(t, rideID.String(), b.TargetID)
	assert.Equal(t, ws.TypeRideUpdate, b.Message.Type)
	assert.Equal(t, "accepted", b.Message.Data["status"])
	assert.Equal(t, "pending", b.Message.Data["previous_status"])
	assert.Equal(t, driverID.String(), b.Message.Data["driver_id"])
	assert.Equal(t, fare, b.Message.Data["accepted_fare"])
	assert.NotContains(t, b.Message.Data, "final_fare")
}

func TestHandleRideEvent_Cancelled(t *testing.T) {
	svc, hub := newTestService(new(mockRepository), nil)
	rideID, passengerID, driverID := uuid.New(), uuid.New(), uuid.New()

	err := svc.HandleRideEvent(context.Background(), mustEvent(t, eventbus.SubjectRideCancelled, eventbus.RideCancelledData{
		RideID:          rideID,
		PassengerID:     passengerID,
		DriverID:        &driverID,
		CancelledBy:     passengerID,
		CancelledByName: "Aylar",
		RecipientID:     &driverID,
		Reason:          "Plans changed",
	}))
	require.NoError(t, err)

	frames := drainBroadcasts(hub)
	require.Len(t, frames, 2)

	room := frames[0]
	assert.Equal(t, ws.TargetRide, room.Target)
	assert.Equal(t, ws.TypeRideUpdate, room.Message.Type)
	assert.Equal(t, "cancelled", room.Message.Data["status"])

	direct := frames[1]
	assert.Equal(t, ws.TargetUser, direct.Target)
	assert.Equal(t, driverID.String(), direct.TargetID)
	assert.Equal(t, ws.TypeRideCancelled, direct.Message.Type)
	assert.Equal(t, "Aylar", direct.Message.Data["cancelled_by_name"])
	assert.Equal(t, "Plans changed", direct.Message.Data["reason"])
}

func TestHandleRideEvent_CancelledWithoutDriver(t *testing.T) {
	svc, hub := newTestService(new(mockRepository), nil)
	passengerID := uuid.New()

	err := svc.HandleRideEvent(context.Background(), mustEvent(t, eventbus.SubjectRideCancelled, eventbus.RideCancelledData{
		RideID:      uuid.New(),
		PassengerID: passengerID,
		CancelledBy: passengerID,
		Reason:      "No longer needed",
	}))
	require.NoError(t, err)

	frames := drainBroadcasts(hub)
	require.Len(t, frames, 1)
	assert.Equal(t, ws.TypeRideUpdate, frames[0].Message.Type)
}

func TestHandleRideEvent_BadPayload(t *testing.T) {
	svc, hub := newTestService(new(mockRepository), nil)
	event := &eventbus.Event{ID: "evt-1", Type: eventbus.SubjectRideStatusChanged, Data: json.RawMessage(`"not an object"`)}

	assert.NoError(t, svc.HandleRideEvent(context.Background(), event))
	assert.Empty(t, drainBroadcasts(hub))
}

func TestRegisterSubscriptions_LocalBus(t *testing.T) {
	svc, hub := newTestService(new(mockRepository), nil)
	bus := eventbus.NewLocalBus()
	ctx := context.Background()

	require.NoError(t, svc.RegisterSubscriptions(ctx, bus))

	rideID := uuid.New()
	event := mustEvent(t, eventbus.SubjectRideStatusChanged, eventbus.RideChangedData{
		RideID:      rideID,
		PassengerID: uuid.New(),
		Status:      "in_progress",
	})
	require.NoError(t, bus.Publish(ctx, eventbus.SubjectRideStatusChanged, event))

	event = mustEvent(t, eventbus.SubjectPricingUpdated, eventbus.PricingUpdatedData{MinimumFare: 5})
	require.NoError(t, bus.Publish(ctx, eventbus.SubjectPricingUpdated, event))

	frames := drainBroadcasts(hub)
	require.Len(t, frames, 1)
	assert.Equal(t, rideID.String(), frames[0].TargetID)
}
