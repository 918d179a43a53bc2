package settings

import (
	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/middleware"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for platform settings
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new settings handler
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// GetSettings returns the platform settings. Public.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.service.GetSettings(c.Request.Context())
	if common.HandleServiceError(c, err, "failed to get settings") {
		return
	}
	common.SuccessResponse(c, settings)
}

// UpdateSettings applies a partial settings update. Admin only.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req models.UpdateSettingsRequest
	if !common.BindJSON(c, &req) {
		return
	}

	settings, err := h.service.UpdateSettings(c.Request.Context(), &req)
	if common.HandleServiceError(c, err, "failed to update settings") {
		return
	}
	common.SuccessResponse(c, settings)
}

// UpdatePricing applies a partial fare rate update. Admin only.
func (h *Handler) UpdatePricing(c *gin.Context) {
	var req models.UpdatePricingRequest
	if !common.BindJSON(c, &req) {
		return
	}

	settings, err := h.service.UpdatePricing(c.Request.Context(), &req)
	if common.HandleServiceError(c, err, "failed to update pricing") {
		return
	}
	common.SuccessResponse(c, settings)
}

// RegisterRoutes registers settings routes on the /api/v1 group. guards run
// after authentication on the admin routes and ahead of the public read.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, jwtSecret string, guards ...gin.HandlerFunc) {
	public := api.Group("")
	public.Use(guards...)
	public.GET("/settings", h.GetSettings)

	admin := api.Group("/settings")
	admin.Use(middleware.AuthMiddleware(jwtSecret), middleware.RequireAdmin())
	admin.Use(guards...)
	{
		admin.PUT("", h.UpdateSettings)
		admin.PUT("/pricing", h.UpdatePricing)
	}
}
