package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eventviewer/server/internal/api/problem"
	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/config"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic         RateLimitTier = "public"
	TierLogin          RateLimitTier = "login"
	TierForgotPassword RateLimitTier = "forgot-password"
	TierVerifyOTP      RateLimitTier = "verify-otp"
	TierResetPassword  RateLimitTier = "reset-password"
	TierNotifications  RateLimitTier = "notifications"
)

// Policy allows Requests per Window with the full allowance usable as a burst.
type Policy struct {
	Requests int
	Window   time.Duration
}

func (p Policy) interval() time.Duration {
	return p.Window / time.Duration(p.Requests)
}

// RetryAfter is the time until one request becomes available again.
func (p Policy) RetryAfter() time.Duration {
	return p.interval()
}

// Policies returns the fixed tier table. Only the public tier is configurable.
func Policies(cfg config.RateLimitConfig) map[RateLimitTier]Policy {
	return map[RateLimitTier]Policy{
		TierPublic:         {Requests: cfg.PublicPerMinute, Window: time.Minute},
		TierLogin:          {Requests: 10, Window: 15 * time.Minute},
		TierForgotPassword: {Requests: 5, Window: 15 * time.Minute},
		TierVerifyOTP:      {Requests: 5, Window: 5 * time.Minute},
		TierResetPassword:  {Requests: 3, Window: 10 * time.Minute},
		TierNotifications:  {Requests: 30, Window: time.Minute},
	}
}

var errRateLimited = apperr.New(http.StatusTooManyRequests, apperr.CodeRateLimited, "Too many requests. Please try again later.")

type rateLimitKey string

const rateLimitTierKey rateLimitKey = "rateLimitTier"

func WithRateLimitTier(ctx context.Context, tier RateLimitTier) context.Context {
	return context.WithValue(ctx, rateLimitTierKey, tier)
}

func WithRateLimitTierHandler(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithRateLimitTier(r.Context(), tier)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimiter keys limiters by tier and client IP.
type RateLimiter struct {
	store *limiterStore
	cfg   config.RateLimitConfig
	env   string
}

func NewRateLimiter(cfg config.RateLimitConfig, env string) *RateLimiter {
	return &RateLimiter{store: newLimiterStore(Policies(cfg)), cfg: cfg, env: env}
}

// Tier returns middleware enforcing one tier. The tier is also recorded on
// the request context so outer layers can log it.
func (l *RateLimiter) Tier(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				next.ServeHTTP(w, r)
				return
			}

			limiter, policy := l.store.limiter(tier, clientKey(r, l.cfg.TrustedProxyCIDRs))
			if limiter == nil {
				next.ServeHTTP(w, r.WithContext(WithRateLimitTier(r.Context(), tier)))
				return
			}

			if !limiter.Allow() {
				seconds := int(math.Ceil(policy.RetryAfter().Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				problem.Error(w, r, errRateLimited, l.env)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithRateLimitTier(r.Context(), tier)))
		})
	}
}

// Stop ends the background cleanup goroutine.
func (l *RateLimiter) Stop() {
	l.store.Stop()
}

type limiterStore struct {
	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	policies    map[RateLimitTier]Policy
	stopOnce    sync.Once
	stopCleanup chan struct{}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterStore(policies map[RateLimitTier]Policy) *limiterStore {
	store := &limiterStore{
		limiters:    make(map[string]*limiterEntry),
		policies:    policies,
		stopCleanup: make(chan struct{}),
	}

	go store.cleanupLoop()

	return store
}

func (s *limiterStore) limiter(tier RateLimitTier, key string) (*rate.Limiter, Policy) {
	policy := s.policies[tier]
	if policy.Requests <= 0 || policy.Window <= 0 {
		return nil, policy
	}

	lookup := string(tier) + ":" + key
	if key == "" {
		lookup = string(tier)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.limiters[lookup]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter, policy
	}

	limiter := rate.NewLimiter(rate.Every(policy.interval()), policy.Requests)
	s.limiters[lookup] = &limiterEntry{
		limiter:  limiter,
		lastSeen: time.Now(),
	}
	return limiter, policy
}

func (s *limiterStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup drops entries idle longer than the longest window, by which point
// their bucket is full again anyway.
func (s *limiterStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := 15 * time.Minute
	for _, p := range s.policies {
		if p.Window > ttl {
			ttl = p.Window
		}
	}

	now := time.Now()
	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > ttl {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

// clientKey trusts X-Forwarded-For and X-Real-IP only from configured proxy CIDRs.
func clientKey(r *http.Request, trustedProxyCIDRs []string) string {
	if r == nil {
		return ""
	}

	remoteIP := ""
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	} else {
		remoteIP = r.RemoteAddr
	}

	if isTrustedProxy(remoteIP, trustedProxyCIDRs) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			parts := strings.Split(forwarded, ",")
			if len(parts) > 0 {
				return strings.TrimSpace(parts[0])
			}
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
	}

	return remoteIP
}

func isTrustedProxy(ip string, trustedCIDRs []string) bool {
	if len(trustedCIDRs) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, cidrStr := range trustedCIDRs {
		_, cidr, err := net.ParseCIDR(cidrStr)
		if err != nil {
			continue
		}
		if cidr.Contains(parsedIP) {
			return true
		}
	}

	return false
}
