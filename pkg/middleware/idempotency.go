package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/logger"
	redisclient "github.com/alatoul/ride-hailing/pkg/redis"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader is the HTTP header for idempotency keys
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
	idempotencyPrefix    = "idempotency:"
)

type idempotencyEntry struct {
	StatusCode  int             `json:"status_code"`
	Body        json.RawMessage `json:"body"`
	RequestHash string          `json:"request_hash"`
}

type idempotencyResponseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated POST carrying the
// same Idempotency-Key from the same user, so a retried ride request does not
// create a second ride. It must run after AuthMiddleware: requests without an
// authenticated user or without the header pass through. A nil store
// disables it.
func Idempotency(store redisclient.ClientInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if store == nil || key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		userID, err := GetUserID(c)
		if err != nil || userID == uuid.Nil {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		requestHash := hashRequest(c.Request.Method, c.Request.URL.Path, bodyBytes)
		redisKey := idempotencyKey(userID, key)

		if cached, err := store.GetString(c.Request.Context(), redisKey); err == nil && cached != "" {
			var entry idempotencyEntry
			if err := json.Unmarshal([]byte(cached), &entry); err == nil {
				if entry.RequestHash != requestHash {
					common.ErrorResponse(c, http.StatusUnprocessableEntity,
						"Idempotency-Key has already been used with a different request")
					c.Abort()
					return
				}
				c.Header("Idempotent-Replayed", "true")
				c.Data(entry.StatusCode, "application/json; charset=utf-8", entry.Body)
				c.Abort()
				return
			}
		}

		writer := &idempotencyResponseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		data, err := json.Marshal(idempotencyEntry{
			StatusCode:  status,
			Body:        writer.body.Bytes(),
			RequestHash: requestHash,
		})
		if err != nil {
			return
		}
		if err := store.SetWithExpiration(c.Request.Context(), redisKey, string(data), idempotencyTTL); err != nil {
			logger.WarnContext(c.Request.Context(), "failed to cache idempotency response",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}

func idempotencyKey(userID uuid.UUID, key string) string {
	return fmt.Sprintf("%s%s:%s", idempotencyPrefix, userID, key)
}

func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
