package mocks

import (
	"context"

	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRealtimeService is a mock of the chat service used by the realtime handler
type MockRealtimeService struct {
	mock.Mock
}

func (m *MockRealtimeService) SendMessage(ctx context.Context, senderID uuid.UUID, req *models.SendMessageRequest) (*models.Message, error) {
	args := m.Called(ctx, senderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockRealtimeService) Conversation(ctx context.Context, userID, otherID uuid.UUID, rideID *uuid.UUID) ([]*models.Message, error) {
	args := m.Called(ctx, userID, otherID, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

func (m *MockRealtimeService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRealtimeService) MarkAsRead(ctx context.Context, id, callerID uuid.UUID) (*models.Message, error) {
	args := m.Called(ctx, id, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockRealtimeService) Stats() map[string]interface{} {
	args := m.Called()
	return args.Get(0).(map[string]interface{})
}
