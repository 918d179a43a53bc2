package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"plain", "123 Main Street", 0, "123 Main Street"},
		{"trims and collapses", "  Driver   was\tlate  ", 0, "Driver was late"},
		{"keeps newlines", "line one\n  line two", 0, "line one\nline two"},
		{"strips tags", "<b>Airport</b> Terminal 2", 0, "Airport Terminal 2"},
		{"drops script bodies", "hi<script>alert(1)</script> there", 0, "hi there"},
		{"drops control chars", "wait\x00ing\x07", 0, "waiting"},
		{"truncates by rune", "héllo wörld", 5, "héllo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeText(tt.input, tt.max))
		})
	}
}

func TestTruncateString_NoLimit(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 0))
	assert.Equal(t, "abc", TruncateString("abc", 3))
}
