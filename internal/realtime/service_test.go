package realtime

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alatoul/ride-hailing/pkg/cache"
	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/models"
	redisclient "github.com/alatoul/ride-hailing/pkg/redis"
	ws "github.com/alatoul/ride-hailing/pkg/websocket"
	"github.com/alatoul/ride-hailing/test/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetRideParties(ctx context.Context, rideID uuid.UUID) (*RideParties, error) {
	args := m.Called(ctx, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RideParties), args.Error(1)
}

func (m *mockRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockRepository) Conversation(ctx context.Context, userID, otherID uuid.UUID, rideID *uuid.UUID) ([]*models.Message, error) {
	args := m.Called(ctx, userID, otherID, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

func (m *mockRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) MarkAsRead(ctx context.Context, id, receiverID uuid.UUID) (*models.Message, error) {
	args := m.Called(ctx, id, receiverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// The hub is never run in these tests; queued broadcasts are read straight
// off its channel.
func newTestService(repo RepositoryInterface, cacheManager *cache.Manager) (*Service, *ws.Hub) {
	hub := ws.NewHub(nil)
	return NewService(hub, repo, cacheManager, nil), hub
}

func drainBroadcasts(hub *ws.Hub) []*ws.BroadcastMessage {
	var out []*ws.BroadcastMessage
	for {
		select {
		case b := <-hub.Broadcast:
			out = append(out, b)
		default:
			return out
		}
	}
}

func rideParties(status models.RideStatus) (*RideParties, uuid.UUID, uuid.UUID) {
	passengerID, driverID := uuid.New(), uuid.New()
	return &RideParties{
		RideID:      uuid.New(),
		PassengerID: passengerID,
		DriverID:    &driverID,
		Status:      status,
	}, passengerID, driverID
}

func assertAppError(t *testing.T, err error, code int) *common.AppError {
	t.Helper()
	appErr, ok := common.IsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestService_CanSendMessage(t *testing.T) {
	tests := []struct {
		status models.RideStatus
		want   bool
	}{
		{models.RideStatusPending, false},
		{models.RideStatusAccepted, true},
		{models.RideStatusDriverAssigned, true},
		{models.RideStatusDriverArrived, true},
		{models.RideStatusInProgress, true},
		{models.RideStatusCompleted, false},
		{models.RideStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			repo := new(mockRepository)
			svc, _ := newTestService(repo, nil)
			parties, passengerID, driverID := rideParties(tt.status)
			repo.On("GetRideParties", mock.Anything, parties.RideID).Return(parties, nil)

			ok, err := svc.CanSendMessage(context.Background(), passengerID, driverID, parties.RideID)

			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestService_CanSendMessage_Parties(t *testing.T) {
	parties, passengerID, driverID := rideParties(models.RideStatusInProgress)
	stranger := uuid.New()

	repo := new(mockRepository)
	svc, _ := newTestService(repo, nil)
	repo.On("GetRideParties", mock.Anything, parties.RideID).Return(parties, nil)

	ctx := context.Background()

	ok, err := svc.CanSendMessage(ctx, driverID, passengerID, parties.RideID)
	require.NoError(t, err)
	assert.True(t, ok, "driver to passenger")

	ok, err = svc.CanSendMessage(ctx, stranger, passengerID, parties.RideID)
	require.NoError(t, err)
	assert.False(t, ok, "stranger")

	ok, err = svc.CanSendMessage(ctx, passengerID, passengerID, parties.RideID)
	require.NoError(t, err)
	assert.False(t, ok, "self")
}

func TestService_CanSendMessage_MissingRide(t *testing.T) {
	repo := new(mockRepository)
	svc, _ := newTestService(repo, nil)
	rideID := uuid.New()
	repo.On("GetRideParties", mock.Anything, rideID).Return(nil, ErrRideNotFound)

	ok, err := svc.CanSendMessage(context.Background(), uuid.New(), uuid.New(), rideID)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_SendMessage(t *testing.T) {
	t.Run("delivers to both parties", func(t *testing.T) {
		repo := new(mockRepository)
		svc, hub := newTestService(repo, nil)
		parties, passengerID, driverID := rideParties(models.RideStatusAccepted)
		repo.On("GetRideParties", mock.Anything, parties.RideID).Return(parties, nil)
		repo.On("CreateMessage", mock.Anything, mock.AnythingOfType("*models.Message")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Message).CreatedAt = time.Now()
			}).Return(nil)

		msg, err := svc.SendMessage(context.Background(), passengerID, &models.SendMessageRequest{
			ReceiverID: driverID,
			RideID:     &parties.RideID,
			Content:    "  I'm at the <b>main</b> entrance  ",
		})

		require.NoError(t, err)
		assert.Equal(t, "I'm at the main entrance", msg.Content)
		assert.Equal(t, models.MessageTypeText, msg.Type)

		frames := drainBroadcasts(hub)
		require.Len(t, frames, 2)

		assert.Equal(t, ws.TargetUser, frames[0].Target)
		assert.Equal(t, driverID.String(), frames[0].TargetID)
		assert.Equal(t, ws.TypeNewMessage, frames[0].Message.Type)
		assert.Equal(t, msg.ID.String(), frames[0].Message.Data["id"])
		assert.Equal(t, parties.RideID.String(), frames[0].Message.RideID)

		assert.Equal(t, passengerID.String(), frames[1].TargetID)
		assert.Equal(t, ws.TypeMessageSent, frames[1].Message.Type)
	})

	t.Run("ride not yet accepted", func(t *testing.T) {
		repo := new(mockRepository)
		svc, hub := newTestService(repo, nil)
		parties, passengerID, driverID := rideParties(models.RideStatusPending)
		repo.On("GetRideParties", mock.Anything, parties.RideID).Return(parties, nil)

		_, err := svc.SendMessage(context.Background(), passengerID, &models.SendMessageRequest{
			ReceiverID: driverID,
			RideID:     &parties.RideID,
			Content:    "hello",
		})

		appErr := assertAppError(t, err, http.StatusForbidden)
		assert.Equal(t, "Messages can only be sent when ride is accepted by both parties", appErr.Message)
		repo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
		assert.Empty(t, drainBroadcasts(hub))
	})

	t.Run("missing ride id", func(t *testing.T) {
		repo := new(mockRepository)
		svc, _ := newTestService(repo, nil)

		_, err := svc.SendMessage(context.Background(), uuid.New(), &models.SendMessageRequest{
			ReceiverID: uuid.New(),
			Content:    "hello",
		})

		appErr := assertAppError(t, err, http.StatusBadRequest)
		assert.Equal(t, "ride_id is required", appErr.Message)
		repo.AssertNotCalled(t, "GetRideParties", mock.Anything, mock.Anything)
	})

	t.Run("content empty after sanitizing", func(t *testing.T) {
		repo := new(mockRepository)
		svc, _ := newTestService(repo, nil)
		rideID := uuid.New()

		_, err := svc.SendMessage(context.Background(), uuid.New(), &models.SendMessageRequest{
			ReceiverID: uuid.New(),
			RideID:     &rideID,
			Content:    "   ",
		})

		assertAppError(t, err, http.StatusBadRequest)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := new(mockRepository)
		svc, hub := newTestService(repo, nil)
		parties, passengerID, driverID := rideParties(models.RideStatusInProgress)
		repo.On("GetRideParties", mock.Anything, parties.RideID).Return(parties, nil)
		repo.On("CreateMessage", mock.Anything, mock.Anything).Return(ErrUnknownParty)

		_, err := svc.SendMessage(context.Background(), passengerID, &models.SendMessageRequest{
			ReceiverID: driverID,
			RideID:     &parties.RideID,
			Content:    "hello",
		})

		appErr := assertAppError(t, err, http.StatusNotFound)
		assert.Equal(t, "User not found", appErr.Message)
		assert.Empty(t, drainBroadcasts(hub))
	})

	t.Run("ride lookup fails", func(t *testing.T) {
		repo := new(mockRepository)
		svc, _ := newTestService(repo, nil)
		rideID := uuid.New()
		repo.On("GetRideParties", mock.Anything, rideID).Return(nil, errors.New("connection reset"))

		_, err := svc.SendMessage(context.Background(), uuid.New(), &models.SendMessageRequest{
			ReceiverID: uuid.New(),
			RideID:     &rideID,
			Content:    "hello",
		})

		assertAppError(t, err, http.StatusInternalServerError)
	})
}

func TestService_SendMessage_InvalidatesReceiverCount(t *testing.T) {
	repo := new(mockRepository)
	mockRedis := new(mocks.MockRedisClient)
	svc, _ := newTestService(repo, cache.NewManager(mockRedis))
	parties, passengerID, driverID := rideParties(models.RideStatusDriverArrived)

	repo.On("GetRideParties", mock.Anything, parties.RideID).Return(parties, nil)
	repo.On("CreateMessage", mock.Anything, mock.Anything).Return(nil)
	mockRedis.On("Delete", mock.Anything, []string{cache.Keys.UnreadMessages(driverID.String())}).Return(nil)

	_, err := svc.SendMessage(context.Background(), passengerID, &models.SendMessageRequest{
		ReceiverID: driverID,
		RideID:     &parties.RideID,
		Content:    "outside",
	})

	require.NoError(t, err)
	mockRedis.AssertExpectations(t)
}

func TestService_UnreadCount(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	key := cache.Keys.UnreadMessages(userID.String())

	t.Run("cache hit", func(t *testing.T) {
		repo := new(mockRepository)
		mockRedis := new(mocks.MockRedisClient)
		svc, _ := newTestService(repo, cache.NewManager(mockRedis))
		mockRedis.On("GetString", ctx, key).Return("4", nil)

		count, err := svc.UnreadCount(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
		repo.AssertNotCalled(t, "CountUnread", mock.Anything, mock.Anything)
	})

	t.Run("cache miss fills cache", func(t *testing.T) {
		repo := new(mockRepository)
		mockRedis := new(mocks.MockRedisClient)
		svc, _ := newTestService(repo, cache.NewManager(mockRedis))
		mockRedis.On("GetString", ctx, key).Return("", redisclient.ErrCacheMiss)
		mockRedis.On("SetWithExpiration", ctx, key, "9", time.Minute).Return(nil)
		repo.On("CountUnread", ctx, userID).Return(int64(9), nil)

		count, err := svc.UnreadCount(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, int64(9), count)
		mockRedis.AssertExpectations(t)
	})

	t.Run("without cache", func(t *testing.T) {
		repo := new(mockRepository)
		svc, _ := newTestService(repo, nil)
		repo.On("CountUnread", ctx, userID).Return(int64(0), errors.New("database error"))

		_, err := svc.UnreadCount(ctx, userID)

		assertAppError(t, err, http.StatusInternalServerError)
	})
}

func TestService_MarkAsRead(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode int
	}{
		{name: "missing", repoErr: ErrMessageNotFound, wantCode: http.StatusNotFound},
		{name: "not receiver", repoErr: ErrNotReceiver, wantCode: http.StatusForbidden},
		{name: "database error", repoErr: errors.New("boom"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockRepository)
			svc, _ := newTestService(repo, nil)
			id, callerID := uuid.New(), uuid.New()
			repo.On("MarkAsRead", mock.Anything, id, callerID).Return(nil, tt.repoErr)

			_, err := svc.MarkAsRead(context.Background(), id, callerID)

			assertAppError(t, err, tt.wantCode)
		})
	}

	t.Run("receiver", func(t *testing.T) {
		repo := new(mockRepository)
		svc, _ := newTestService(repo, nil)
		id, callerID := uuid.New(), uuid.New()
		repo.On("MarkAsRead", mock.Anything, id, callerID).
			Return(&models.Message{ID: id, ReceiverID: callerID, IsRead: true}, nil)

		msg, err := svc.MarkAsRead(context.Background(), id, callerID)

		require.NoError(t, err)
		assert.True(t, msg.IsRead)
	})
}

func TestService_Stats(t *testing.T) {
	svc, hub := newTestService(new(mockRepository), nil)
	client := ws.NewClient(uuid.NewString(), nil, hub, models.RolePassenger, nil)
	hub.AddClientToRide(client, uuid.NewString())

	stats := svc.Stats()

	assert.Equal(t, 0, stats["connected_clients"])
	assert.Equal(t, 1, stats["active_rides"])
}
