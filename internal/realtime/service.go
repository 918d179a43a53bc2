package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/alatoul/ride-hailing/pkg/cache"
	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/alatoul/ride-hailing/pkg/security"
	"github.com/alatoul/ride-hailing/pkg/tracing"
	"github.com/alatoul/ride-hailing/pkg/validation"
	ws "github.com/alatoul/ride-hailing/pkg/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	tracerName      = "realtime-service"
	maxContentRunes = 2000
	defaultCacheTTL = time.Minute
	socketOpTimeout = 10 * time.Second

	chatNotAllowed = "Messages can only be sent when ride is accepted by both parties"
)

// Chat is open once a driver has accepted and until the ride ends.
var chatStatuses = map[models.RideStatus]bool{
	models.RideStatusAccepted:       true,
	models.RideStatusDriverAssigned: true,
	models.RideStatusDriverArrived:  true,
	models.RideStatusInProgress:     true,
}

// Service handles chat messages and the websocket fan-out
type Service struct {
	hub      *ws.Hub
	repo     RepositoryInterface
	cache    *cache.Manager
	cacheTTL time.Duration
	log      *zap.Logger
}

// NewService creates a realtime service and registers its socket handlers
// on hub. cacheManager may be nil.
func NewService(hub *ws.Hub, repo RepositoryInterface, cacheManager *cache.Manager, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		hub:      hub,
		repo:     repo,
		cache:    cacheManager,
		cacheTTL: defaultCacheTTL,
		log:      log,
	}

	s.registerHandlers()

	return s
}

func (s *Service) registerHandlers() {
	s.hub.RegisterHandler(ws.TypeSendMessage, s.handleSendMessage)
	s.hub.RegisterHandler(ws.TypeJoinRideRoom, s.handleJoinRideRoom)
	s.hub.RegisterHandler(ws.TypeLeaveRideRoom, s.handleLeaveRideRoom)
	s.hub.RegisterHandler(ws.TypeTyping, s.handleTyping)
}

// CanSendMessage reports whether sender may message receiver about rideID:
// they must be the passenger and driver of the ride, and the ride must be
// between acceptance and its end.
func (s *Service) CanSendMessage(ctx context.Context, senderID, receiverID, rideID uuid.UUID) (bool, error) {
	parties, err := s.repo.GetRideParties(ctx, rideID)
	if errors.Is(err, ErrRideNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return parties.IsPair(senderID, receiverID) && chatStatuses[parties.Status], nil
}

// SendMessage stores a message then pushes it to the receiver as new_message
// and back to the sender as message_sent.
func (s *Service) SendMessage(ctx context.Context, senderID uuid.UUID, req *models.SendMessageRequest) (*models.Message, error) {
	return s.sendMessage(ctx, "rest", senderID, req)
}

func (s *Service) sendMessage(ctx context.Context, channel string, senderID uuid.UUID, req *models.SendMessageRequest) (*models.Message, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "SendMessage")
	defer span.End()

	clean := *req
	clean.Content = security.SanitizeText(req.Content, maxContentRunes)
	if err := validation.ValidateStruct(&clean); err != nil {
		messagesRejectedTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if clean.RideID == nil {
		messagesRejectedTotal.WithLabelValues("invalid").Inc()
		return nil, common.NewValidationError("ride_id is required")
	}

	allowed, err := s.CanSendMessage(ctx, senderID, clean.ReceiverID, *clean.RideID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, common.NewInternalError("failed to check ride", err)
	}
	if !allowed {
		messagesRejectedTotal.WithLabelValues("forbidden").Inc()
		return nil, common.NewForbiddenError(chatNotAllowed)
	}

	m := &models.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: clean.ReceiverID,
		RideID:     clean.RideID,
		Type:       models.MessageTypeText,
		Content:    clean.Content,
	}
	if err := s.repo.CreateMessage(ctx, m); err != nil {
		if errors.Is(err, ErrUnknownParty) {
			return nil, common.NewNotFoundError("User not found", err)
		}
		tracing.RecordError(ctx, err)
		return nil, common.NewInternalError("failed to send message", err)
	}
	messagesSentTotal.WithLabelValues(channel).Inc()
	s.invalidate(ctx, m.ReceiverID)

	payload := messagePayload(m)
	s.hub.SendToUser(m.ReceiverID.String(), s.frame(ws.TypeNewMessage, m, payload))
	s.hub.SendToUser(m.SenderID.String(), s.frame(ws.TypeMessageSent, m, payload))

	return m, nil
}

// Conversation returns the messages between userID and otherID, oldest first
func (s *Service) Conversation(ctx context.Context, userID, otherID uuid.UUID, rideID *uuid.UUID) ([]*models.Message, error) {
	messages, err := s.repo.Conversation(ctx, userID, otherID, rideID)
	if err != nil {
		return nil, common.NewInternalError("failed to get conversation", err)
	}
	return messages, nil
}

// UnreadCount returns how many messages addressed to userID are unread
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	key := cache.Keys.UnreadMessages(userID.String())
	if s.cache != nil {
		var count int64
		err := s.cache.Get(ctx, key, &count)
		if err == nil {
			return count, nil
		}
		if !cache.IsMiss(err) {
			s.log.Warn("failed to read unread message cache", zap.Error(err))
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, common.NewInternalError("failed to count unread messages", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, count, s.cacheTTL); err != nil {
			s.log.Warn("failed to cache unread message count", zap.Error(err))
		}
	}
	return count, nil
}

// MarkAsRead marks a message read. Only its receiver may do so.
func (s *Service) MarkAsRead(ctx context.Context, id, callerID uuid.UUID) (*models.Message, error) {
	m, err := s.repo.MarkAsRead(ctx, id, callerID)
	switch {
	case errors.Is(err, ErrMessageNotFound):
		return nil, common.NewNotFoundError("Message not found", err)
	case errors.Is(err, ErrNotReceiver):
		return nil, common.NewForbiddenError("only the receiver can mark a message as read")
	case err != nil:
		return nil, common.NewInternalError("failed to mark message as read", err)
	}

	s.invalidate(ctx, callerID)
	return m, nil
}

// Stats returns connection statistics
func (s *Service) Stats() map[string]interface{} {
	return map[string]interface{}{
		"connected_clients": s.hub.GetClientCount(),
		"active_rides":      s.hub.GetRideCount(),
	}
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.Keys.UnreadMessages(userID.String())); err != nil {
		s.log.Warn("failed to invalidate unread message count", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func (s *Service) frame(msgType string, m *models.Message, payload map[string]interface{}) *ws.Message {
	msg := ws.NewMessage(msgType, payload)
	msg.UserID = m.SenderID.String()
	if m.RideID != nil {
		msg.RideID = m.RideID.String()
	}
	return msg
}

func messagePayload(m *models.Message) map[string]interface{} {
	payload := map[string]interface{}{
		"id":          m.ID.String(),
		"sender_id":   m.SenderID.String(),
		"receiver_id": m.ReceiverID.String(),
		"type":        string(m.Type),
		"content":     m.Content,
		"is_read":     m.IsRead,
		"created_at":  m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.RideID != nil {
		payload["ride_id"] = m.RideID.String()
	}
	return payload
}
