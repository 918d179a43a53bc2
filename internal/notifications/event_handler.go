package notifications

import (
	"context"
	"fmt"

	"github.com/alatoul/ride-hailing/pkg/eventbus"
	"github.com/alatoul/ride-hailing/pkg/logger"
	"github.com/alatoul/ride-hailing/pkg/models"
	"go.uber.org/zap"
)

// ConsumerName is the durable consumer used for ride events.
const ConsumerName = "notifications-rides"

// EventHandler turns ride events from the bus into notifications.
type EventHandler struct {
	service ServiceInterface
}

// NewEventHandler creates an event handler backed by the notification service.
func NewEventHandler(service ServiceInterface) *EventHandler {
	return &EventHandler{service: service}
}

// RegisterSubscriptions subscribes to ride cancellations on the bus.
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus eventbus.Subscriber) error {
	if err := bus.Subscribe(ctx, eventbus.SubjectRideCancelled, ConsumerName, h.HandleEvent); err != nil {
		return fmt.Errorf("subscribe to ride cancellations: %w", err)
	}
	logger.Info("notifications: subscribed to ride cancellations")
	return nil
}

// HandleEvent processes one bus event. A returned error asks the bus to
// redeliver.
func (h *EventHandler) HandleEvent(ctx context.Context, event *eventbus.Event) error {
	switch event.Type {
	case eventbus.SubjectRideCancelled:
		return h.onRideCancelled(ctx, event)
	default:
		logger.Debug("notifications: ignoring event", zap.String("type", event.Type))
		return nil
	}
}

func (h *EventHandler) onRideCancelled(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.RideCancelledData
	if err := event.Decode(&data); err != nil {
		// A payload that does not decode will never decode; drop it.
		logger.Warn("notifications: bad ride cancelled payload", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	// Nobody to tell when the passenger cancels before a driver took the ride.
	if data.RecipientID == nil {
		return nil
	}

	name := data.CancelledByName
	if name == "" {
		name = "User"
	}
	rideID := data.RideID
	link := "/rides/" + rideID.String()

	_, err := h.service.Create(ctx, &models.CreateNotificationRequest{
		UserID:    *data.RecipientID,
		Type:      models.NotificationTypeRideCancelled,
		Title:     "Ride Cancelled",
		Message:   fmt.Sprintf("%s cancelled the ride. Reason: %s", name, data.Reason),
		RelatedID: &rideID,
		Link:      &link,
	})
	if err != nil {
		return fmt.Errorf("create ride cancelled notification: %w", err)
	}
	return nil
}
