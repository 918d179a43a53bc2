package rides

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/middleware"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/alatoul/ride-hailing/pkg/pagination"
	"github.com/alatoul/ride-hailing/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for rides
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new rides handler
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// CreateRide handles a passenger requesting a ride
func (h *Handler) CreateRide(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req models.CreateRideRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.CreateRide(c.Request.Context(), userID, &req)
	if common.HandleServiceError(c, err, "failed to create ride") {
		return
	}
	common.CreatedResponse(c, ride)
}

// ListRides handles listing rides with optional role and status filters
func (h *Handler) ListRides(c *gin.Context) {
	var query models.ListRidesQuery
	if !common.BindQuery(c, &query) {
		return
	}

	list, err := h.service.ListRides(c.Request.Context(), optionalUserID(c), &query)
	if common.HandleServiceError(c, err, "failed to list rides") {
		return
	}

	meta := pagination.BuildMeta(pagination.Params{Page: list.Page, Limit: list.Limit}, list.Total)
	common.SuccessResponseWithMeta(c, list.Rides, meta)
}

// PendingRides handles listing rides waiting for a driver
func (h *Handler) PendingRides(c *gin.Context) {
	rides, err := h.service.PendingRides(c.Request.Context())
	if common.HandleServiceError(c, err, "failed to list pending rides") {
		return
	}
	common.SuccessResponse(c, rides)
}

// Statistics handles ride counts for the caller
func (h *Handler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context(), optionalUserID(c))
	if common.HandleServiceError(c, err, "failed to get ride statistics") {
		return
	}
	common.SuccessResponse(c, stats)
}

// CalculateFare quotes a fare. Unparsable numbers count as zero.
func (h *Handler) CalculateFare(c *gin.Context) {
	distance, _ := strconv.ParseFloat(c.Query("distance"), 64)
	duration, _ := strconv.ParseFloat(c.Query("duration"), 64)

	quote, err := h.service.QuoteFare(c.Request.Context(), distance, duration)
	if common.HandleServiceError(c, err, "failed to calculate fare") {
		return
	}
	common.SuccessResponse(c, quote)
}

// GetRide handles getting a ride by ID
func (h *Handler) GetRide(c *gin.Context) {
	rideID, ok := common.ParseUUIDParam(c, "id", "ride")
	if !ok {
		return
	}

	ride, err := h.service.GetRide(c.Request.Context(), rideID)
	if common.HandleServiceError(c, err, "failed to get ride") {
		return
	}
	common.SuccessResponse(c, ride)
}

// AcceptRide handles a driver accepting a ride, optionally with a counter-offer
func (h *Handler) AcceptRide(c *gin.Context) {
	driverID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride")
	if !ok {
		return
	}

	var req models.AcceptRideRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := h.service.AcceptRide(c.Request.Context(), rideID, driverID, req.CounterOffer)
	if common.HandleServiceError(c, err, "failed to accept ride") {
		return
	}
	common.SuccessResponse(c, ride)
}

// UpdateRide handles a partial ride update
func (h *Handler) UpdateRide(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride")
	if !ok {
		return
	}

	var req models.UpdateRideRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.UpdateRide(c.Request.Context(), rideID, userID, &req)
	if common.HandleServiceError(c, err, "failed to update ride") {
		return
	}
	common.SuccessResponse(c, ride)
}

// TransitionRide handles moving a ride to its next status
func (h *Handler) TransitionRide(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride")
	if !ok {
		return
	}

	var req models.TransitionRideRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateStruct(&req); common.HandleServiceError(c, err, "invalid transition") {
		return
	}

	ride, err := h.service.TransitionRide(c.Request.Context(), rideID, userID, req.Status)
	if common.HandleServiceError(c, err, "failed to change ride status") {
		return
	}
	common.SuccessResponse(c, ride)
}

// EndRide handles completing a ride
func (h *Handler) EndRide(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride")
	if !ok {
		return
	}

	ride, err := h.service.EndRide(c.Request.Context(), rideID, userID)
	if common.HandleServiceError(c, err, "failed to end ride") {
		return
	}
	common.SuccessResponse(c, ride)
}

// CancelRide handles cancelling a ride
func (h *Handler) CancelRide(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride")
	if !ok {
		return
	}

	var req models.CancelRideRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateStruct(&req); common.HandleServiceError(c, err, "invalid cancellation") {
		return
	}

	ride, err := h.service.CancelRide(c.Request.Context(), rideID, userID, req.Reason)
	if common.HandleServiceError(c, err, "failed to cancel ride") {
		return
	}
	common.SuccessResponse(c, ride)
}

// DeleteRide handles removing a ride. Admin only.
func (h *Handler) DeleteRide(c *gin.Context) {
	rideID, ok := common.ParseUUIDParam(c, "id", "ride")
	if !ok {
		return
	}

	if err := h.service.RemoveRide(c.Request.Context(), rideID); common.HandleServiceError(c, err, "failed to delete ride") {
		return
	}
	common.SuccessResponse(c, gin.H{"message": "ride deleted"})
}

// RegisterRoutes registers ride routes on the /api/v1 group. guards run
// after authentication, so they can key on the caller.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, jwtSecret string, guards ...gin.HandlerFunc) {
	rides := api.Group("/rides")
	rides.Use(middleware.AuthMiddleware(jwtSecret))
	rides.Use(guards...)
	{
		rides.POST("", h.CreateRide)
		rides.GET("", h.ListRides)
		rides.GET("/pending", h.PendingRides)
		rides.GET("/statistics", h.Statistics)
		rides.GET("/calculate-fare", h.CalculateFare)
		rides.GET("/:id", h.GetRide)
		rides.POST("/:id/accept", middleware.RequireRole(models.RoleDriver), h.AcceptRide)
		rides.PATCH("/:id", h.UpdateRide)
		rides.POST("/:id/transition", h.TransitionRide)
		rides.POST("/:id/end", h.EndRide)
		rides.POST("/:id/cancel", h.CancelRide)
		rides.DELETE("/:id", middleware.RequireAdmin(), h.DeleteRide)
	}
}

func optionalUserID(c *gin.Context) *uuid.UUID {
	id, err := middleware.GetUserID(c)
	if err != nil {
		return nil
	}
	return &id
}
