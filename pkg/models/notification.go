package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeRideRequest     NotificationType = "ride_request"
	NotificationTypeRideAccepted    NotificationType = "ride_accepted"
	NotificationTypeRideCancelled   NotificationType = "ride_cancelled"
	NotificationTypeRideCompleted   NotificationType = "ride_completed"
	NotificationTypePaymentReceived NotificationType = "payment_received"
	NotificationTypeKYCApproved     NotificationType = "kyc_approved"
	NotificationTypeKYCRejected     NotificationType = "kyc_rejected"
	NotificationTypeDriverApproved  NotificationType = "driver_approved"
	NotificationTypeDriverSuspended NotificationType = "driver_suspended"
	NotificationTypeSystemAlert     NotificationType = "system_alert"
	NotificationTypeSafetyReport    NotificationType = "safety_report"
)

// Notification represents an in-app notification
type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	RelatedID *uuid.UUID       `json:"related_id,omitempty" db:"related_id"`
	Link      *string          `json:"link,omitempty" db:"link"`
	IsRead    bool             `json:"is_read" db:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// CreateNotificationRequest is used internally to persist a notification
type CreateNotificationRequest struct {
	UserID    uuid.UUID        `json:"user_id" validate:"required"`
	Type      NotificationType `json:"type" validate:"required,oneof=ride_request ride_accepted ride_cancelled ride_completed payment_received kyc_approved kyc_rejected driver_approved driver_suspended system_alert safety_report"`
	Title     string           `json:"title" validate:"required,max=255"`
	Message   string           `json:"message" validate:"required,max=2000"`
	RelatedID *uuid.UUID       `json:"related_id,omitempty"`
	Link      *string          `json:"link,omitempty" validate:"omitempty,max=500"`
}
