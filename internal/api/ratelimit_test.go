package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quillchat/quill/internal/log"
)

func TestRateLimiter_BurstExhaustion(t *testing.T) {
	t.Parallel()

	// No refill to speak of within the test window.
	rl := newRateLimiter(0.0001, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("10.0.0.1"), "request %d should pass", i)
	}
	assert.False(t, rl.allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.allow("10.0.0.2"), "other IPs are unaffected")
}

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(0.0001, 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := rateLimitMiddleware(rl, false, log.NewNop())(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"

	w := httptest.NewRecorder()
	mw.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mw.ServeHTTP(w, r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "192.0.2.1:5000",
			want:       "192.0.2.1",
		},
		{
			name:       "x-real-ip ignored without trust",
			remoteAddr: "192.0.2.1:5000",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "192.0.2.1",
		},
		{
			name:       "x-real-ip honored with trust",
			remoteAddr: "192.0.2.1:5000",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			trustProxy: true,
			want:       "203.0.113.9",
		},
		{
			name:       "x-forwarded-for first hop",
			remoteAddr: "192.0.2.1:5000",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9, 198.51.100.2"},
			trustProxy: true,
			want:       "203.0.113.9",
		},
		{
			name:       "garbage header falls back",
			remoteAddr: "192.0.2.1:5000",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			trustProxy: true,
			want:       "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, clientIP(r, tt.trustProxy))
		})
	}
}
