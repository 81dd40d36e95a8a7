package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/crystalbeauty/pkg/logger"
)

func rateLimited(rps float64, burst int) http.Handler {
	return BearerToken()(RateLimit(rps, burst, nil, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
}

func TestRateLimit_BurstThen429(t *testing.T) {
	handler := rateLimited(1, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil)
		req.RemoteAddr = "203.0.113.5:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_SeparateBuckets(t *testing.T) {
	handler := rateLimited(0.001, 1)

	send := func(remote, token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/wishlist", nil)
		req.RemoteAddr = remote
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1:1", ""))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1:2", ""))
	assert.Equal(t, http.StatusOK, send("198.51.100.2:1", ""), "other IP has its own bucket")
	assert.Equal(t, http.StatusOK, send("198.51.100.1:3", "tok-a"), "signed-in caller charged per token")
	assert.Equal(t, http.StatusOK, send("198.51.100.1:4", "tok-b"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.9:4", "tok-a"))
}

func TestVisitorStore_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newVisitorStore(1, 1, time.Minute)
	s.nowFunc = func() time.Time { return now }

	s.get("ip:a")
	now = now.Add(30 * time.Second)
	s.get("ip:b")
	now = now.Add(45 * time.Second)

	s.sweep()
	assert.Equal(t, 1, s.len(), "only the entry idle past the ttl is evicted")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		realIP string
		remote string
		wantIP string
	}{
		{"forwarded chain", "garbage, 203.0.113.7, 10.0.0.1", "", "10.0.0.2:80", "203.0.113.7"},
		{"real ip", "", "198.51.100.4", "10.0.0.2:80", "198.51.100.4"},
		{"remote addr", "", "", "192.0.2.1:5000", "192.0.2.1"},
		{"remote addr without port", "", "", "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.wantIP, ClientIP(req))
		})
	}
}
