package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        Params
	}{
		{"defaults", 0, 0, Params{Page: 1, Limit: 10}},
		{"negative", -3, -1, Params{Page: 1, Limit: 10}},
		{"capped", 2, 500, Params{Page: 2, Limit: 100}},
		{"kept", 3, 25, Params{Page: 3, Limit: 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.page, tt.limit))
		})
	}
}

func TestParseParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/rides?page=abc&limit=1000", nil)

	assert.Equal(t, Params{Page: 1, Limit: 100}, ParseParams(c))
}

func TestOffsetAndMeta(t *testing.T) {
	p := Params{Page: 3, Limit: 10}
	assert.Equal(t, 20, p.Offset())

	meta := BuildMeta(p, 21)
	assert.Equal(t, 3, meta.TotalPages)
	assert.Equal(t, int64(21), meta.Total)
}
