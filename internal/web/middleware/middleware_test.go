package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/nipa/internal/config"
	"github.com/stretchr/testify/assert"
)

func remoteAddrHandler(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = r.RemoteAddr
	})
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"untrusted proxy ignored", []string{"10.0.0.0/8"}, "203.0.113.5:1234",
			map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.5:1234"},
		{"trusted real ip", []string{"10.0.0.0/8"}, "10.1.2.3:1234",
			map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted forwarded for", []string{"10.0.0.0/8"}, "10.1.2.3:1234",
			map[string]string{"X-Forwarded-For": "1.2.3.4, 10.1.2.3"}, "1.2.3.4"},
		{"bare ip trusted", []string{"127.0.0.1"}, "127.0.0.1:80",
			map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
		{"invalid header kept", []string{"10.0.0.0/8"}, "10.1.2.3:1234",
			map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3:1234"},
		{"no trusted proxies", nil, "10.1.2.3:1234",
			map[string]string{"X-Real-IP": "1.2.3.4"}, "10.1.2.3:1234"},
		{"invalid cidr skipped", []string{"bogus", "10.0.0.0/8"}, "10.1.2.3:1234",
			map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			TrustedRealIP(tt.trusted)(remoteAddrHandler(&got)).ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	called := false
	h := APIKeyAuth(&config.SecurityConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	assert.True(t, called)
}

func TestAPIKeyAuth_NoKeysConfigured(t *testing.T) {
	h := APIKeyAuth(&config.SecurityConfig{RequireAPIKey: true})(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	req.Header.Set("X-API-Key", "anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"invalid API key","code":"AUTH_INVALID_KEY"}`, rec.Body.String())
}

func TestIsValidAPIKey(t *testing.T) {
	keys := []string{"alpha", "beta"}
	assert.True(t, isValidAPIKey("alpha", keys))
	assert.True(t, isValidAPIKey("beta", keys))
	assert.False(t, isValidAPIKey("gamma", keys))
	assert.False(t, isValidAPIKey("alph", keys))
	assert.False(t, isValidAPIKey("", nil))
}

func TestLogger_CapturesStatus(t *testing.T) {
	var seen *responseWriter
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.(*responseWriter)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, http.StatusTeapot, seen.status)
	assert.Equal(t, len("short and stout"), seen.bytes)
}
