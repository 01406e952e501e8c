package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func send(handler http.Handler, method, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestPolicies(t *testing.T) {
	policies := Policies(config.RateLimitConfig{PublicPerMinute: 120})

	tests := []struct {
		tier     RateLimitTier
		requests int
		window   time.Duration
	}{
		{TierLogin, 10, 15 * time.Minute},
		{TierForgotPassword, 5, 15 * time.Minute},
		{TierVerifyOTP, 5, 5 * time.Minute},
		{TierResetPassword, 3, 10 * time.Minute},
		{TierNotifications, 30, time.Minute},
		{TierPublic, 120, time.Minute},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.requests, policies[tt.tier].Requests)
			assert.Equal(t, tt.window, policies[tt.tier].Window)
		})
	}
}

func TestRateLimit_AllowsBurstThenBlocks(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{}, "test")
	t.Cleanup(limiter.Stop)
	handler := limiter.Tier(TierResetPassword)(okHandler())

	for i := 0; i < 3; i++ {
		res := send(handler, http.MethodPost, "/api/v1/password/reset-password", "192.168.1.100:12345")
		require.Equal(t, http.StatusOK, res.Code, "request %d", i+1)
	}

	res := send(handler, http.MethodPost, "/api/v1/password/reset-password", "192.168.1.100:12345")
	require.Equal(t, http.StatusTooManyRequests, res.Code)
	// 10 minutes / 3 requests = 200s per token.
	assert.Equal(t, "200", res.Header().Get("Retry-After"))

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, apperr.CodeRateLimited, body.Code)
}

func TestRateLimit_PerIPIsolation(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{}, "test")
	t.Cleanup(limiter.Stop)
	handler := limiter.Tier(TierVerifyOTP)(okHandler())

	for i := 0; i < 5; i++ {
		send(handler, http.MethodPost, "/api/v1/password/verify-otp", "10.0.0.1:1000")
	}
	assert.Equal(t, http.StatusTooManyRequests, send(handler, http.MethodPost, "/api/v1/password/verify-otp", "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, send(handler, http.MethodPost, "/api/v1/password/verify-otp", "10.0.0.2:1000").Code)
}

func TestRateLimit_TiersAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{}, "test")
	t.Cleanup(limiter.Stop)
	reset := limiter.Tier(TierResetPassword)(okHandler())
	login := limiter.Tier(TierLogin)(okHandler())

	for i := 0; i < 3; i++ {
		send(reset, http.MethodPost, "/reset", "10.0.0.3:1")
	}
	require.Equal(t, http.StatusTooManyRequests, send(reset, http.MethodPost, "/reset", "10.0.0.3:1").Code)
	assert.Equal(t, http.StatusOK, send(login, http.MethodPost, "/login", "10.0.0.3:1").Code)
}

func TestRateLimit_DisabledPublicTier(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 0}, "test")
	t.Cleanup(limiter.Stop)
	handler := limiter.Tier(TierPublic)(okHandler())

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, send(handler, http.MethodGet, "/api/v1/events", "10.0.0.4:1").Code)
	}
}

func TestRateLimit_RecordsTierOnContext(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{}, "test")
	t.Cleanup(limiter.Stop)

	var got RateLimitTier
	handler := limiter.Tier(TierNotifications)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = r.Context().Value(rateLimitTierKey).(RateLimitTier)
	}))
	send(handler, http.MethodGet, "/api/v1/notifications", "10.0.0.5:1")
	assert.Equal(t, TierNotifications, got)
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trusted    []string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.9:4000",
			want:       "203.0.113.9",
		},
		{
			name:       "untrusted proxy header ignored",
			remoteAddr: "203.0.113.9:4000",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:       "203.0.113.9",
		},
		{
			name:       "trusted proxy uses first forwarded hop",
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 10.1.2.3"},
			trusted:    []string{"10.0.0.0/8"},
			want:       "1.2.3.4",
		},
		{
			name:       "trusted proxy falls back to X-Real-IP",
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Real-IP": "5.6.7.8"},
			trusted:    []string{"10.0.0.0/8"},
			want:       "5.6.7.8",
		},
		{
			name:       "invalid cidr ignored",
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			trusted:    []string{"not-a-cidr"},
			want:       "10.1.2.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientKey(req, tt.trusted))
		})
	}
}

func TestLimiterStoreCleanupDropsIdleEntries(t *testing.T) {
	store := newLimiterStore(Policies(config.RateLimitConfig{}))
	t.Cleanup(store.Stop)

	store.limiter(TierLogin, "10.0.0.9")
	store.mu.Lock()
	for _, entry := range store.limiters {
		entry.lastSeen = time.Now().Add(-time.Hour)
	}
	store.mu.Unlock()

	store.cleanup()
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.limiters)
}
