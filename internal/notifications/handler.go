package notifications

import (
	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/middleware"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers notification routes on the /api/v1 group. guards
// run after authentication.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, jwtSecret string, guards ...gin.HandlerFunc) {
	protected := api.Group("/notifications")
	protected.Use(middleware.AuthMiddleware(jwtSecret))
	protected.Use(guards...)
	{
		protected.GET("", h.GetNotifications)
		protected.GET("/unread/count", h.GetUnreadCount)
		protected.PATCH("/read-all", h.MarkAllAsRead)
		protected.PATCH("/:id/read", h.MarkAsRead)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtSecret))
	admin.Use(middleware.RequireAdmin())
	admin.Use(guards...)
	{
		admin.POST("/notifications", h.SendNotification)
	}
}

// GetNotifications lists the caller's notifications. unreadOnly=true limits
// the list to unread ones.
func (h *Handler) GetNotifications(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	list, err := h.service.List(c.Request.Context(), userID, c.Query("unreadOnly") == "true")
	if common.HandleServiceError(c, err, "failed to get notifications") {
		return
	}
	common.SuccessResponse(c, list)
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
	id, ok := common.ParseUUIDParam(c, "id", "notification")
	if !ok {
		return
	}

	n, err := h.service.MarkAsRead(c.Request.Context(), id, userID)
	if common.HandleServiceError(c, err, "failed to mark notification as read") {
		return
	}
	common.SuccessResponse(c, n)
}

func (h *Handler) MarkAllAsRead(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllAsRead(c.Request.Context(), userID)
	if common.HandleServiceError(c, err, "failed to mark notifications as read") {
		return
	}
	common.SuccessResponse(c, gin.H{
		"message": "All notifications marked as read",
		"updated": updated,
	})
}

// SendNotification lets an admin post a notification to any user
func (h *Handler) SendNotification(c *gin.Context) {
	var req models.CreateNotificationRequest
	if !common.BindJSON(c, &req) {
		return
	}

	n, err := h.service.Create(c.Request.Context(), &req)
	if common.HandleServiceError(c, err, "failed to send notification") {
		return
	}
	common.CreatedResponse(c, n)
}
