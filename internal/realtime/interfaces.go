package realtime

import (
	"context"
	"errors"

	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/google/uuid"
)

var (
	ErrRideNotFound    = errors.New("ride not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotReceiver     = errors.New("message is addressed to another user")
	// ErrUnknownParty is returned when the sender, receiver or ride of a
	// new message does not exist.
	ErrUnknownParty = errors.New("message references an unknown user or ride")
)

// RideParties is the slice of a ride the chat rules need.
type RideParties struct {
	RideID      uuid.UUID
	PassengerID uuid.UUID
	DriverID    *uuid.UUID
	Status      models.RideStatus
}

// IsParty reports whether userID is the passenger or the assigned driver.
func (p *RideParties) IsParty(userID uuid.UUID) bool {
	return p.PassengerID == userID || (p.DriverID != nil && *p.DriverID == userID)
}

// IsPair reports whether a and b are the passenger and driver, in either order.
func (p *RideParties) IsPair(a, b uuid.UUID) bool {
	if p.DriverID == nil {
		return false
	}
	d := *p.DriverID
	return (a == p.PassengerID && b == d) || (a == d && b == p.PassengerID)
}

// RepositoryInterface defines the message storage operations
type RepositoryInterface interface {
	GetRideParties(ctx context.Context, rideID uuid.UUID) (*RideParties, error)
	CreateMessage(ctx context.Context, m *models.Message) error
	Conversation(ctx context.Context, userID, otherID uuid.UUID, rideID *uuid.UUID) ([]*models.Message, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, id, receiverID uuid.UUID) (*models.Message, error)
}

// ServiceInterface is what the HTTP handler needs from the service
type ServiceInterface interface {
	SendMessage(ctx context.Context, senderID uuid.UUID, req *models.SendMessageRequest) (*models.Message, error)
	Conversation(ctx context.Context, userID, otherID uuid.UUID, rideID *uuid.UUID) ([]*models.Message, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, id, callerID uuid.UUID) (*models.Message, error)
	Stats() map[string]interface{}
}
