package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOrigins(t *testing.T) {
	normalized, allowAll := normalizeOrigins([]string{" https://Chat.Example ", "", "garbage", "*"})
	assert.Equal(t, []string{"https://chat.example"}, normalized)
	assert.True(t, allowAll)

	normalized, allowAll = normalizeOrigins(nil)
	assert.Nil(t, normalized)
	assert.False(t, allowAll)
}

// TestCheckOrigin verifies origin decisions against the active configuration.
func TestCheckOrigin(t *testing.T) {
	resetConfig(t)
	SetConfig(&Config{AllowedOrigins: []string{"http://localhost:8080"}})

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"no header", "", true},
		{"exact match", "http://localhost:8080", true},
		{"case insensitive", "HTTP://LOCALHOST:8080", true},
		{"path ignored", "http://localhost:8080/app", true},
		{"other port", "http://localhost:9999", false},
		{"other host", "http://evil.example", false},
		{"malformed", "://nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/chat", http.NoBody)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.allowed, checkOrigin(req))
		})
	}
}

func TestCheckOriginWildcard(t *testing.T) {
	resetConfig(t)
	SetConfig(&Config{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodGet, "/chat", http.NoBody)
	req.Header.Set("Origin", "https://anywhere.example")
	assert.True(t, checkOrigin(req))
}
