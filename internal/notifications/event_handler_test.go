package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alatoul/ride-hailing/pkg/eventbus"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/alatoul/ride-hailing/test/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func cancelledEvent(t *testing.T, data eventbus.RideCancelledData) *eventbus.Event {
	t.Helper()
	event, err := eventbus.NewEvent(eventbus.SubjectRideCancelled, "rides-service", data)
	require.NoError(t, err)
	return event
}

func TestEventHandler_RideCancelled_NotifiesCounterpart(t *testing.T) {
	// Arrange
	svc := new(mocks.MockNotificationsService)
	h := NewEventHandler(svc)

	rideID := uuid.New()
	driverID := uuid.New()
	passengerID := uuid.New()
	data := eventbus.RideCancelledData{
		RideID:          rideID,
		PassengerID:     passengerID,
		DriverID:        &driverID,
		CancelledBy:     passengerID,
		CancelledByName: "Ayla Demir",
		RecipientID:     &driverID,
		Reason:          "Plans changed",
		CancelledAt:     time.Now().UTC(),
	}

	svc.On("Create", mock.Anything, mock.MatchedBy(func(req *models.CreateNotificationRequest) bool {
		return req.UserID == driverID &&
			req.Type == models.NotificationTypeRideCancelled &&
			req.Title == "Ride Cancelled" &&
			req.Message == "Ayla Demir cancelled the ride. Reason: Plans changed" &&
			*req.RelatedID == rideID &&
			*req.Link == "/rides/"+rideID.String()
	})).Return(&models.Notification{ID: uuid.New()}, nil)

	// Act
	err := h.HandleEvent(context.Background(), cancelledEvent(t, data))

	// Assert
	require.NoError(t, err)
	svc.AssertExpectations(t)
}

func TestEventHandler_RideCancelled_DefaultName(t *testing.T) {
	svc := new(mocks.MockNotificationsService)
	h := NewEventHandler(svc)
	recipient := uuid.New()

	svc.On("Create", mock.Anything, mock.MatchedBy(func(req *models.CreateNotificationRequest) bool {
		return req.Message == "User cancelled the ride. Reason: No longer needed"
	})).Return(&models.Notification{}, nil)

	err := h.HandleEvent(context.Background(), cancelledEvent(t, eventbus.RideCancelledData{
		RideID:      uuid.New(),
		RecipientID: &recipient,
		Reason:      "No longer needed",
	}))

	require.NoError(t, err)
	svc.AssertExpectations(t)
}

func TestEventHandler_RideCancelled_NoRecipient(t *testing.T) {
	svc := new(mocks.MockNotificationsService)
	h := NewEventHandler(svc)

	err := h.HandleEvent(context.Background(), cancelledEvent(t, eventbus.RideCancelledData{
		RideID:          uuid.New(),
		CancelledByName: "Ayla",
		Reason:          "Plans changed",
	}))

	require.NoError(t, err)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEventHandler_RideCancelled_CreateErrorIsRetried(t *testing.T) {
	svc := new(mocks.MockNotificationsService)
	h := NewEventHandler(svc)
	recipient := uuid.New()
	svc.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("database error"))

	err := h.HandleEvent(context.Background(), cancelledEvent(t, eventbus.RideCancelledData{
		RideID:      uuid.New(),
		RecipientID: &recipient,
		Reason:      "Plans changed",
	}))

	assert.Error(t, err)
}

func TestEventHandler_BadPayloadIsDropped(t *testing.T) {
	svc := new(mocks.MockNotificationsService)
	h := NewEventHandler(svc)

	err := h.HandleEvent(context.Background(), &eventbus.Event{
		ID:   uuid.NewString(),
		Type: eventbus.SubjectRideCancelled,
		Data: json.RawMessage(`[1,2,3]`),
	})

	assert.NoError(t, err)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEventHandler_IgnoresOtherEvents(t *testing.T) {
	svc := new(mocks.MockNotificationsService)
	h := NewEventHandler(svc)

	event, err := eventbus.NewEvent(eventbus.SubjectRideAccepted, "rides-service", eventbus.RideChangedData{RideID: uuid.New()})
	require.NoError(t, err)

	assert.NoError(t, h.HandleEvent(context.Background(), event))
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEventHandler_RegisterSubscriptions_LocalBus(t *testing.T) {
	svc := new(mocks.MockNotificationsService)
	h := NewEventHandler(svc)
	bus := eventbus.NewLocalBus()
	require.NoError(t, h.RegisterSubscriptions(context.Background(), bus))

	recipient := uuid.New()
	svc.On("Create", mock.Anything, mock.MatchedBy(func(req *models.CreateNotificationRequest) bool {
		return req.UserID == recipient
	})).Return(&models.Notification{}, nil).Once()

	// Only the cancellation subject reaches the handler.
	accepted, err := eventbus.NewEvent(eventbus.SubjectRideAccepted, "rides-service", eventbus.RideChangedData{RideID: uuid.New()})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), eventbus.SubjectRideAccepted, accepted))

	event := cancelledEvent(t, eventbus.RideCancelledData{RideID: uuid.New(), RecipientID: &recipient, Reason: "Plans changed"})
	require.NoError(t, bus.Publish(context.Background(), eventbus.SubjectRideCancelled, event))

	svc.AssertExpectations(t)
}
