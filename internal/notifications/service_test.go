package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alatoul/ride-hailing/pkg/cache"
	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/models"
	redisclient "github.com/alatoul/ride-hailing/pkg/redis"
	"github.com/alatoul/ride-hailing/test/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func requireAppCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := common.IsAppError(err)
	require.True(t, ok, "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.ErrorCode)
}

// ===== Create =====

func TestService_Create_Success(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.MockNotificationsRepository)
	service := NewService(mockRepo)

	userID := uuid.New()
	rideID := uuid.New()
	link := "/rides/" + rideID.String()

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(nil)

	// Act
	n, err := service.Create(context.Background(), &models.CreateNotificationRequest{
		UserID:    userID,
		Type:      models.NotificationTypeRideCancelled,
		Title:     "  Ride   Cancelled ",
		Message:   "Sam cancelled the ride. Reason: <i>flat tyre</i>",
		RelatedID: &rideID,
		Link:      &link,
	})

	// Assert
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, userID, n.UserID)
	assert.Equal(t, "Ride Cancelled", n.Title)
	assert.Equal(t, "Sam cancelled the ride. Reason: flat tyre", n.Message)
	assert.Equal(t, &rideID, n.RelatedID)
	assert.Equal(t, &link, n.Link)
	mockRepo.AssertExpectations(t)
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  models.CreateNotificationRequest
	}{
		{"missing user", models.CreateNotificationRequest{Type: models.NotificationTypeSystemAlert, Title: "t", Message: "m"}},
		{"unknown type", models.CreateNotificationRequest{UserID: uuid.New(), Type: "promo", Title: "t", Message: "m"}},
		{"blank title", models.CreateNotificationRequest{UserID: uuid.New(), Type: models.NotificationTypeSystemAlert, Title: "   ", Message: "m"}},
		{"markup only message", models.CreateNotificationRequest{UserID: uuid.New(), Type: models.NotificationTypeSystemAlert, Title: "t", Message: "<br/>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(mocks.MockNotificationsRepository)
			service := NewService(mockRepo)

			_, err := service.Create(context.Background(), &tt.req)

			requireAppCode(t, err, common.CodeValidation)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Create_TruncatesLongMessage(t *testing.T) {
	mockRepo := new(mocks.MockNotificationsRepository)
	service := NewService(mockRepo)
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	n, err := service.Create(context.Background(), &models.CreateNotificationRequest{
		UserID:  uuid.New(),
		Type:    models.NotificationTypeSystemAlert,
		Title:   "Update",
		Message: strings.Repeat("a", 2500),
	})

	require.NoError(t, err)
	assert.Len(t, n.Message, maxMessageRunes)
}

func TestService_Create_RepoError(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.MockNotificationsRepository)
	service := NewService(mockRepo)
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("database error"))

	// Act
	n, err := service.Create(context.Background(), &models.CreateNotificationRequest{
		UserID:  uuid.New(),
		Type:    models.NotificationTypeSystemAlert,
		Title:   "System Update",
		Message: "Pricing settings have been updated.",
	})

	// Assert
	assert.Nil(t, n)
	requireAppCode(t, err, common.CodeInternal)
}

// ===== List / UnreadCount =====

func TestService_List(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.MockNotificationsRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	userID := uuid.New()

	expected := []*models.Notification{{ID: uuid.New(), UserID: userID, Title: "Ride Cancelled"}}
	mockRepo.On("ListByUser", ctx, userID, true, 50).Return(expected, nil)

	// Act
	list, err := service.List(ctx, userID, true)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, expected, list)
	mockRepo.AssertExpectations(t)
}

func TestService_List_Error(t *testing.T) {
	mockRepo := new(mocks.MockNotificationsRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	userID := uuid.New()
	mockRepo.On("ListByUser", ctx, userID, false, 50).Return(nil, errors.New("database error"))

	list, err := service.List(ctx, userID, false)

	assert.Nil(t, list)
	requireAppCode(t, err, common.CodeInternal)
}

func TestService_UnreadCount(t *testing.T) {
	mockRepo := new(mocks.MockNotificationsRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	userID := uuid.New()
	mockRepo.On("CountUnread", ctx, userID).Return(int64(5), nil)

	count, err := service.UnreadCount(ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestService_UnreadCount_Cache(t *testing.T) {
	userID := uuid.New()
	key := cache.Keys.UnreadNotifications(userID.String())
	ctx := context.Background()

	t.Run("hit skips the repository", func(t *testing.T) {
		mockRepo := new(mocks.MockNotificationsRepository)
		mockRedis := new(mocks.MockRedisClient)
		service := NewService(mockRepo, WithCache(cache.NewManager(mockRedis), time.Minute))
		mockRedis.On("GetString", ctx, key).Return("3", nil)

		count, err := service.UnreadCount(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
		mockRepo.AssertNotCalled(t, "CountUnread", mock.Anything, mock.Anything)
	})

	t.Run("miss loads and stores", func(t *testing.T) {
		mockRepo := new(mocks.MockNotificationsRepository)
		mockRedis := new(mocks.MockRedisClient)
		service := NewService(mockRepo, WithCache(cache.NewManager(mockRedis), time.Minute))
		mockRedis.On("GetString", ctx, key).Return("", redisclient.ErrCacheMiss)
		mockRedis.On("SetWithExpiration", ctx, key, "7", time.Minute).Return(nil)
		mockRepo.On("CountUnread", ctx, userID).Return(int64(7), nil)

		count, err := service.UnreadCount(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, int64(7), count)
		mockRedis.AssertExpectations(t)
	})

	t.Run("redis failure falls back", func(t *testing.T) {
		mockRepo := new(mocks.MockNotificationsRepository)
		mockRedis := new(mocks.MockRedisClient)
		service := NewService(mockRepo, WithCache(cache.NewManager(mockRedis), time.Minute))
		mockRedis.On("GetString", ctx, key).Return("", errors.New("connection refused"))
		mockRedis.On("SetWithExpiration", ctx, key, "2", time.Minute).Return(errors.New("connection refused"))
		mockRepo.On("CountUnread", ctx, userID).Return(int64(2), nil)

		count, err := service.UnreadCount(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("mark all invalidates", func(t *testing.T) {
		mockRepo := new(mocks.MockNotificationsRepository)
		mockRedis := new(mocks.MockRedisClient)
		service := NewService(mockRepo, WithCache(cache.NewManager(mockRedis), time.Minute))
		mockRepo.On("MarkAllAsRead", ctx, userID).Return(int64(4), nil)
		mockRedis.On("Delete", ctx, []string{key}).Return(nil)

		updated, err := service.MarkAllAsRead(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, int64(4), updated)
		mockRedis.AssertExpectations(t)
	})
}

// ===== MarkAsRead =====

func TestService_MarkAsRead(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		repoN    *models.Notification
		repoErr  error
		wantCode string
	}{
		{name: "owner", repoN: &models.Notification{IsRead: true}},
		{name: "missing", repoErr: ErrNotificationNotFound, wantCode: common.CodeNotFound},
		{name: "someone else's", repoErr: ErrNotOwner, wantCode: common.CodePermission},
		{name: "database error", repoErr: errors.New("database error"), wantCode: common.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			mockRepo := new(mocks.MockNotificationsRepository)
			service := NewService(mockRepo)
			id := uuid.New()
			userID := uuid.New()
			if tt.repoN != nil {
				mockRepo.On("MarkAsRead", ctx, id, userID).Return(tt.repoN, nil)
			} else {
				mockRepo.On("MarkAsRead", ctx, id, userID).Return(nil, tt.repoErr)
			}

			// Act
			n, err := service.MarkAsRead(ctx, id, userID)

			// Assert
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.True(t, n.IsRead)
				return
			}
			assert.Nil(t, n)
			requireAppCode(t, err, tt.wantCode)
		})
	}
}

func TestService_MarkAllAsRead_Error(t *testing.T) {
	mockRepo := new(mocks.MockNotificationsRepository)
	service := NewService(mockRepo)
	ctx := context.Background()
	userID := uuid.New()
	mockRepo.On("MarkAllAsRead", ctx, userID).Return(int64(0), errors.New("database error"))

	_, err := service.MarkAllAsRead(ctx, userID)

	requireAppCode(t, err, common.CodeInternal)
}
