package websocket

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types understood by the realtime service.
const (
	TypeSendMessage    = "send_message"
	TypeNewMessage     = "new_message"
	TypeMessageSent    = "message_sent"
	TypeJoinRideRoom   = "join_ride_room"
	TypeJoinedRideRoom = "joined_ride_room"
	TypeLeaveRideRoom  = "leave_ride_room"
	TypeLeftRideRoom   = "left_ride_room"
	TypeTyping         = "typing"
	TypeRideUpdate     = "ride_update"
	TypeRideCancelled  = "ride_cancelled"
	TypeError          = "error"
)

// NewUpgrader builds an upgrader that admits the comma separated origins.
// "*" admits every origin.
func NewUpgrader(origins string) *websocket.Upgrader {
	allowed := map[string]struct{}{}
	allowAll := false
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll {
				return true
			}
			if _, ok := allowed[strings.TrimRight(origin, "/")]; ok {
				return true
			}
			// Same-host connections are always fine.
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// Handler returns the gin endpoint that upgrades an authenticated request.
// It must be mounted behind middleware.AuthMiddleware, which also accepts
// the token as a ?token= query parameter for browser clients.
func Handler(hub *Hub, upgrader *websocket.Upgrader, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := common.RequireUserID(c, middleware.GetUserID)
		if !ok {
			return
		}
		role, err := middleware.GetUserRole(c)
		if err != nil {
			common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			log.Warn("websocket upgrade failed", zap.String("user_id", userID.String()), zap.Error(err))
			return
		}

		client := NewClient(userID.String(), conn, hub, role, log)
		hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
