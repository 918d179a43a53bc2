package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/alatoul/ride-hailing/pkg/common"
	apperrors "github.com/alatoul/ride-hailing/pkg/errors"
	"github.com/alatoul/ride-hailing/pkg/logger"
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SentryMiddleware attaches a Sentry hub to every request.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorHandler reports unexpected request errors and 5xx responses.
// Register it after SentryMiddleware.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		apperrors.AddBreadcrumbForRequest(c.Request.Method, c.Request.URL.Path, statusCode, duration)

		for _, ginErr := range c.Errors {
			if apperrors.ShouldReportError(ginErr.Err, statusCode) {
				captureError(c, ginErr.Err, statusCode, duration)
			}
		}

		if statusCode >= http.StatusInternalServerError && len(c.Errors) == 0 {
			hub := hubFor(c)
			hub.Scope().SetRequest(c.Request)
			hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s %s", statusCode, c.Request.Method, c.FullPath()))
		}
	}
}

// Recovery turns panics into a 500 envelope after reporting them.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				hub := hubFor(c)
				hub.Scope().SetRequest(c.Request)
				if userID, err := GetUserID(c); err == nil {
					hub.Scope().SetUser(sentry.User{ID: userID.String()})
				}
				hub.RecoverWithContext(c.Request.Context(), rec)

				logger.ErrorContext(c.Request.Context(), "panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
				)

				common.AppErrorResponse(c, common.NewInternalError("an unexpected error occurred", nil))
				c.Abort()
			}
		}()

		c.Next()
	}
}

func hubFor(c *gin.Context) *sentry.Hub {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		return hub
	}
	return sentry.CurrentHub().Clone()
}

func captureError(c *gin.Context, err error, statusCode int, duration time.Duration) {
	hub := hubFor(c)

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetLevel(sentry.LevelError)
		if userID, uerr := GetUserID(c); uerr == nil {
			scope.SetUser(sentry.User{ID: userID.String(), Email: c.GetString(userEmailKey), IPAddress: c.ClientIP()})
		}
		scope.SetTag("http.method", c.Request.Method)
		scope.SetTag("http.status_code", fmt.Sprintf("%d", statusCode))
		scope.SetTag("route", c.FullPath())
		if correlationID := GetCorrelationID(c); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}
		scope.SetContext("http", map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
			"user_agent":  c.Request.UserAgent(),
		})
		hub.CaptureException(err)
	})
}
