package notifications

import (
	"context"
	"errors"

	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/google/uuid"
)

var (
	// ErrNotificationNotFound is returned when no notification has the id.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrNotOwner is returned when the notification belongs to another user.
	ErrNotOwner = errors.New("notification belongs to another user")
)

// RepositoryInterface defines the interface for notifications repository operations
type RepositoryInterface interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ServiceInterface is what the HTTP handler and the event handler need
type ServiceInterface interface {
	Create(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
}
