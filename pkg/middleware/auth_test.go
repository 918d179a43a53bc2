package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, userID uuid.UUID, role models.UserRole, expiresIn time.Duration, secret string) string {
	t.Helper()
	claims := Claims{
		UserID: userID,
		Email:  "user@alatoul.com",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(testSecret))
	r.GET("/me", func(c *gin.Context) {
		id, _ := GetUserID(c)
		role, _ := GetUserRole(c)
		c.JSON(http.StatusOK, gin.H{"id": id.String(), "role": role})
	})
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{"valid bearer", "Bearer " + signToken(t, userID, models.RolePassenger, time.Hour, testSecret), "", http.StatusOK},
		{"valid query token", "", signToken(t, userID, models.RoleDriver, time.Hour, testSecret), http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, userID, models.RolePassenger, time.Hour, "other"), "", http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, userID, models.RolePassenger, -time.Minute, testSecret), "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/me"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			authRouter().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), userID.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	admin := signToken(t, uuid.New(), models.RoleAdmin, time.Hour, testSecret)
	driver := signToken(t, uuid.New(), models.RoleDriver, time.Hour, testSecret)

	for token, want := range map[string]int{admin: http.StatusNoContent, driver: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		authRouter().ServeHTTP(w, req)
		assert.Equal(t, want, w.Code)
	}
}

func TestParseToken_RejectsNilUser(t *testing.T) {
	token := signToken(t, uuid.Nil, models.RolePassenger, time.Hour, testSecret)
	_, err := ParseToken(token, []byte(testSecret))
	assert.Error(t, err)
}

func TestGetUserID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := GetUserID(c)
	assert.Error(t, err)
	_, err = GetUserRole(c)
	assert.Error(t, err)
}
