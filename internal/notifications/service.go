package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/alatoul/ride-hailing/pkg/cache"
	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/logger"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/alatoul/ride-hailing/pkg/security"
	"github.com/alatoul/ride-hailing/pkg/tracing"
	"github.com/alatoul/ride-hailing/pkg/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	tracerName      = "notifications-service"
	listLimit       = 50
	maxTitleRunes   = 255
	maxMessageRunes = 2000
	defaultCacheTTL = time.Minute
)

// Service stores in-app notifications and answers unread counts.
type Service struct {
	repo     RepositoryInterface
	cache    *cache.Manager
	cacheTTL time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithCache caches unread counts for ttl. Writes invalidate the entry.
func WithCache(m *cache.Manager, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = m
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func NewService(repo RepositoryInterface, opts ...Option) *Service {
	s := &Service{repo: repo, cacheTTL: defaultCacheTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a notification for req.UserID
func (s *Service) Create(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Create")
	defer span.End()

	title := security.SanitizeText(req.Title, maxTitleRunes)
	message := security.SanitizeText(req.Message, maxMessageRunes)
	clean := *req
	clean.Title = title
	clean.Message = message
	if err := validation.ValidateStruct(&clean); err != nil {
		return nil, err
	}

	n := &models.Notification{
		ID:        uuid.New(),
		UserID:    clean.UserID,
		Type:      clean.Type,
		Title:     clean.Title,
		Message:   clean.Message,
		RelatedID: clean.RelatedID,
		Link:      clean.Link,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		tracing.RecordError(ctx, err)
		return nil, common.NewInternalError("failed to create notification", err)
	}

	notificationsCreatedTotal.WithLabelValues(string(n.Type)).Inc()
	s.invalidate(ctx, n.UserID)

	logger.InfoContext(ctx, "notification created",
		zap.String("notification_id", n.ID.String()),
		zap.String("user_id", n.UserID.String()),
		zap.String("type", string(n.Type)),
	)
	return n, nil
}

// List returns the newest notifications of userID, at most 50
func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*models.Notification, error) {
	list, err := s.repo.ListByUser(ctx, userID, unreadOnly, listLimit)
	if err != nil {
		return nil, common.NewInternalError("failed to list notifications", err)
	}
	return list, nil
}

// UnreadCount returns how many notifications of userID are unread
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	key := cache.Keys.UnreadNotifications(userID.String())
	if s.cache != nil {
		var count int64
		err := s.cache.Get(ctx, key, &count)
		if err == nil {
			return count, nil
		}
		if !cache.IsMiss(err) {
			logger.WarnContext(ctx, "failed to read unread count cache", zap.Error(err))
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, common.NewInternalError("failed to count unread notifications", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, count, s.cacheTTL); err != nil {
			logger.WarnContext(ctx, "failed to cache unread count", zap.Error(err))
		}
	}
	return count, nil
}

// MarkAsRead marks one notification read on behalf of its owner
func (s *Service) MarkAsRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	n, err := s.repo.MarkAsRead(ctx, id, userID)
	switch {
	case errors.Is(err, ErrNotificationNotFound):
		return nil, common.NewNotFoundError("notification not found", err)
	case errors.Is(err, ErrNotOwner):
		return nil, common.NewForbiddenError("you can only mark your own notifications as read")
	case err != nil:
		return nil, common.NewInternalError("failed to mark notification as read", err)
	}

	s.invalidate(ctx, userID)
	return n, nil
}

// MarkAllAsRead marks every unread notification of userID read
func (s *Service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	updated, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, common.NewInternalError("failed to mark notifications as read", err)
	}

	s.invalidate(ctx, userID)
	return updated, nil
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.Keys.UnreadNotifications(userID.String())); err != nil {
		logger.WarnContext(ctx, "failed to invalidate unread count", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
