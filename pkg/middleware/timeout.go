package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/config"
	"github.com/alatoul/ride-hailing/pkg/logger"
	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestTimeout bounds every request by the route's configured timeout and
// answers 504 when it expires.
func RequestTimeout(cfg *config.TimeoutConfig) gin.HandlerFunc {
	var handlers sync.Map // time.Duration -> gin.HandlerFunc

	handlerFor := func(d time.Duration) gin.HandlerFunc {
		if h, ok := handlers.Load(d); ok {
			return h.(gin.HandlerFunc)
		}
		h := timeout.New(
			timeout.WithTimeout(d),
			timeout.WithResponse(func(c *gin.Context) {
				logger.WarnContext(c.Request.Context(), "request timeout",
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.Duration("timeout", d),
				)
				c.Header("X-Timeout", "true")
				common.ErrorResponse(c, http.StatusGatewayTimeout, "request timeout")
			}),
		)
		actual, _ := handlers.LoadOrStore(d, h)
		return actual.(gin.HandlerFunc)
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		handlerFor(cfg.TimeoutForRoute(c.Request.Method, path))(c)
	}
}
