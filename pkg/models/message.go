package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType represents the kind of chat message
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeSystem MessageType = "system"
)

// Message is a chat message between the two parties of a ride
type Message struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	SenderID   uuid.UUID   `json:"sender_id" db:"sender_id"`
	ReceiverID uuid.UUID   `json:"receiver_id" db:"receiver_id"`
	RideID     *uuid.UUID  `json:"ride_id,omitempty" db:"ride_id"`
	Type       MessageType `json:"type" db:"type"`
	Content    string      `json:"content" db:"content"`
	IsRead     bool        `json:"is_read" db:"is_read"`
	ReadAt     *time.Time  `json:"read_at,omitempty" db:"read_at"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// SendMessageRequest is the payload for sending a chat message
type SendMessageRequest struct {
	ReceiverID uuid.UUID  `json:"receiver_id" validate:"required"`
	RideID     *uuid.UUID `json:"ride_id,omitempty"`
	Content    string     `json:"content" validate:"required,min=1,max=2000"`
}
