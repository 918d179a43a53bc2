package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alatoul/ride-hailing/pkg/middleware"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receive(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHub_RegisterAndSendToUser(t *testing.T) {
	hub := runHub(t)
	client := newTestClient(hub, "u1", models.RolePassenger)

	hub.Register <- client
	require.Eventually(t, func() bool { return hub.IsOnline("u1") }, time.Second, 10*time.Millisecond)

	hub.SendToUser("u1", NewMessage(TypeNewMessage, nil))
	assert.Equal(t, TypeNewMessage, receive(t, client).Type)
	assert.Equal(t, 1, hub.GetClientCount())
}

func TestHub_ReconnectReplacesClient(t *testing.T) {
	hub := runHub(t)
	first := newTestClient(hub, "u1", models.RoleDriver)
	second := newTestClient(hub, "u1", models.RoleDriver)

	hub.Register <- first
	hub.Register <- second

	// The first connection's send channel is closed by the hub.
	select {
	case _, ok := <-first.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected first client to be closed")
	}

	// A late unregister from the stale pump must not evict the new client.
	hub.Unregister <- first
	hub.SendToUser("u1", NewMessage("ping", nil))
	assert.Equal(t, "ping", receive(t, second).Type)

	current, ok := hub.GetClient("u1")
	require.True(t, ok)
	assert.Same(t, second, current)
}

func TestHub_RideRooms(t *testing.T) {
	hub := runHub(t)
	passenger := newTestClient(hub, "p1", models.RolePassenger)
	driver := newTestClient(hub, "d1", models.RoleDriver)
	outsider := newTestClient(hub, "x1", models.RolePassenger)

	for _, c := range []*Client{passenger, driver, outsider} {
		hub.Register <- c
	}

	hub.AddClientToRide(passenger, "ride-1")
	hub.AddClientToRide(driver, "ride-1")
	hub.AddClientToRide(outsider, "ride-2")
	assert.Len(t, hub.GetClientsInRide("ride-1"), 2)
	assert.Equal(t, 2, hub.GetRideCount())

	hub.SendToRide("ride-1", NewMessage(TypeRideUpdate, nil))
	assert.Equal(t, TypeRideUpdate, receive(t, passenger).Type)
	assert.Equal(t, TypeRideUpdate, receive(t, driver).Type)
	assert.Empty(t, outsider.Send)

	// Joining another room leaves the previous one.
	hub.AddClientToRide(outsider, "ride-1")
	assert.Len(t, hub.GetClientsInRide("ride-1"), 3)
	assert.Equal(t, 1, hub.GetRideCount())

	hub.RemoveClientFromRide(driver, "ride-1")
	assert.Len(t, hub.GetClientsInRide("ride-1"), 2)
	assert.Empty(t, driver.GetRide())

	// Leaving a room the client is not in is a no-op.
	hub.RemoveClientFromRide(passenger, "ride-9")
	assert.Equal(t, "ride-1", passenger.GetRide())
}

func TestHub_UnregisterLeavesRoom(t *testing.T) {
	hub := runHub(t)
	client := newTestClient(hub, "p1", models.RolePassenger)
	hub.Register <- client
	hub.AddClientToRide(client, "ride-1")

	hub.Unregister <- client
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, hub.GetRideCount())
}

func TestHub_HandleMessage(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "p1", models.RolePassenger)

	var handled *Message
	hub.RegisterHandler(TypeJoinRideRoom, func(c *Client, m *Message) { handled = m })

	hub.HandleMessage(client, &Message{Type: TypeJoinRideRoom, RideID: "ride-1"})
	require.NotNil(t, handled)
	assert.Equal(t, "ride-1", handled.RideID)

	hub.HandleMessage(client, &Message{Type: "bogus"})
	reply := <-client.Send
	assert.Equal(t, TypeError, reply.Type)
	assert.Contains(t, reply.Data["message"], "bogus")
}

func TestHub_BroadcastQueueFullDrops(t *testing.T) {
	hub := NewHub(nil) // not running, so nothing drains the queue
	for i := 0; i < cap(hub.Broadcast); i++ {
		hub.SendToAll(NewMessage("fill", nil))
	}
	assert.NotPanics(t, func() { hub.SendToAll(NewMessage("overflow", nil)) })
	assert.Len(t, hub.Broadcast, cap(hub.Broadcast))
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	up := NewUpgrader("https://app.alatoul.com, http://localhost:3000/")

	check := func(origin, host string) bool {
		r := httptest.NewRequest(http.MethodGet, "http://"+host+"/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return up.CheckOrigin(r)
	}

	assert.True(t, check("", "api.alatoul.com"))
	assert.True(t, check("https://app.alatoul.com", "api.alatoul.com"))
	assert.True(t, check("http://localhost:3000", "api.alatoul.com"))
	assert.True(t, check("https://api.alatoul.com", "api.alatoul.com"))
	assert.False(t, check("https://evil.example", "api.alatoul.com"))

	assert.True(t, NewUpgrader("*").CheckOrigin(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestHandler_UpgradesAuthenticatedClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const secret = "ws-secret"

	hub := runHub(t)
	router := gin.New()
	router.GET("/ws", middleware.AuthMiddleware(secret), Handler(hub, NewUpgrader("*"), zap.NewNop()))
	server := httptest.NewServer(router)
	defer server.Close()

	userID := uuid.New()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		UserID: userID,
		Role:   models.RoleDriver,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + signed
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsOnline(userID.String()) }, time.Second, 10*time.Millisecond)
	client, _ := hub.GetClient(userID.String())
	assert.Equal(t, models.RoleDriver, client.Role)

	hub.SendToUser(userID.String(), NewMessage(TypeRideUpdate, map[string]interface{}{"status": "accepted"}))

	var got Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeRideUpdate, got.Type)
	assert.Equal(t, "accepted", got.Data["status"])
}

func TestHandler_RejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", middleware.AuthMiddleware("s"), Handler(NewHub(nil), NewUpgrader("*"), zap.NewNop()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
