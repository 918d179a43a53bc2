package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(hub *Hub, id string, role models.UserRole) *Client {
	return NewClient(id, nil, hub, role, zap.NewNop())
}

func TestNewClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	client := newTestClient(hub, "user-123", models.RolePassenger)

	assert.Equal(t, "user-123", client.ID)
	assert.Equal(t, models.RolePassenger, client.Role)
	assert.Equal(t, hub, client.Hub)
	assert.Equal(t, sendBufferSize, cap(client.Send))
	assert.Empty(t, client.GetRide())
}

func TestClientSetRide(t *testing.T) {
	client := newTestClient(NewHub(nil), "user-123", models.RoleDriver)

	client.SetRide("ride-123")
	assert.Equal(t, "ride-123", client.GetRide())

	client.SetRide("")
	assert.Empty(t, client.GetRide())
}

func TestClientSendMessage(t *testing.T) {
	client := newTestClient(NewHub(nil), "user-123", models.RolePassenger)

	client.SendMessage(NewMessage(TypeNewMessage, map[string]interface{}{"content": "hi"}))

	select {
	case got := <-client.Send:
		assert.Equal(t, TypeNewMessage, got.Type)
		assert.Equal(t, "hi", got.Data["content"])
	default:
		t.Fatal("expected queued message")
	}
}

func TestClientSendMessage_FullBufferDrops(t *testing.T) {
	client := newTestClient(NewHub(nil), "user-123", models.RolePassenger)

	for i := 0; i < sendBufferSize; i++ {
		client.SendMessage(NewMessage("fill", nil))
	}

	assert.NotPanics(t, func() {
		client.SendMessage(NewMessage("overflow", nil))
	})
	assert.Len(t, client.Send, sendBufferSize)
}

func TestClientConcurrentRideAccess(t *testing.T) {
	client := newTestClient(NewHub(nil), "user-123", models.RoleDriver)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			client.SetRide("ride-1")
		}()
		go func() {
			defer wg.Done()
			_ = client.GetRide()
		}()
	}
	wg.Wait()

	assert.Equal(t, "ride-1", client.GetRide())
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("nope")
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "nope", msg.Data["message"])
	assert.False(t, msg.Timestamp.IsZero())
}

func TestMessageJSON(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	msg := &Message{
		Type:      TypeSendMessage,
		RideID:    "ride-1",
		Timestamp: ts,
		Data:      map[string]interface{}{"content": "on my way"},
	}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"timestamp":"2026-03-04T05:06:07Z"`)

	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, msg.Type, decoded.Type)
	assert.Equal(t, msg.RideID, decoded.RideID)
	assert.True(t, ts.Equal(decoded.Timestamp))
	assert.Equal(t, "on my way", decoded.Data["content"])
}

func TestMessageUnmarshalJSON_Timestamps(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"type":"join_ride_room","data":{}}`), &msg))
	assert.True(t, msg.Timestamp.IsZero())

	err := json.Unmarshal([]byte(`{"type":"x","timestamp":"yesterday"}`), &msg)
	assert.Error(t, err)
}
