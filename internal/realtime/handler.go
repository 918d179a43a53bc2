package realtime

import (
	"net/http"

	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/middleware"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for the realtime service
type Handler struct {
	service ServiceInterface
	socket  gin.HandlerFunc
}

// NewHandler creates a new handler. socket upgrades /ws requests.
func NewHandler(service ServiceInterface, socket gin.HandlerFunc) *Handler {
	return &Handler{service: service, socket: socket}
}

// RegisterSocketRoute mounts GET /ws. The group must not buffer responses
// (no request timeout middleware), since the upgrade hijacks the connection.
func (h *Handler) RegisterSocketRoute(group *gin.RouterGroup, jwtSecret string) {
	if h.socket == nil {
		return
	}
	group.GET("/ws", middleware.AuthMiddleware(jwtSecret), h.socket)
}

// RegisterRoutes registers message routes on the /api/v1 group
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, jwtSecret string) {
	auth := middleware.AuthMiddleware(jwtSecret)

	messages := api.Group("/messages")
	messages.Use(auth)
	{
		messages.POST("", h.SendMessage)
		messages.GET("/conversation/:userId", h.GetConversation)
		messages.GET("/unread/count", h.GetUnreadCount)
		messages.POST("/:id/read", h.MarkAsRead)
	}

	api.GET("/realtime/stats", auth, middleware.RequireAdmin(), h.GetStats)
}

// SendMessage stores a chat message and pushes it to both parties
func (h *Handler) SendMessage(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if !common.BindJSON(c, &req) {
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), userID, &req)
	if common.HandleServiceError(c, err, "failed to send message") {
		return
	}
	common.CreatedResponse(c, msg)
}

// GetConversation returns the caller's messages with another user, oldest
// first, optionally limited to ?rideId=
func (h *Handler) GetConversation(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	otherID, ok := common.ParseUUIDParam(c, "userId", "user")
	if !ok {
		return
	}

	var rideID *uuid.UUID
	if raw := c.Query("rideId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "invalid ride")
			return
		}
		rideID = &id
	}

	messages, err := h.service.Conversation(c.Request.Context(), userID, otherID, rideID)
	if common.HandleServiceError(c, err, "failed to get conversation") {
		return
	}
	common.SuccessResponse(c, messages)
}

func (h *Handler) GetUnreadCount(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if common.HandleServiceError(c, err, "failed to get unread count") {
		return
	}
	common.SuccessResponse(c, gin.H{"count": count})
}

func (h *Handler) MarkAsRead(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id", "message")
	if !ok {
		return
	}

	msg, err := h.service.MarkAsRead(c.Request.Context(), id, userID)
	if common.HandleServiceError(c, err, "failed to mark message as read") {
		return
	}
	common.SuccessResponse(c, msg)
}

// GetStats returns connection statistics
func (h *Handler) GetStats(c *gin.Context) {
	common.SuccessResponse(c, h.service.Stats())
}
