package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/auth"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/response"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/observability"
)

// RateLimitCode is the stable code carried by 429 responses.
const RateLimitCode = "rate_limited"

// Limiter is a fixed-window counter. Allow reports whether the request
// fits in the current window and, when it does not, how long until the
// window rolls over.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

type fixedWindow struct {
	count       int
	windowStart time.Time
}

type localFixedWindowLimiter struct {
	mu      sync.Mutex
	store   map[string]*fixedWindow
	cleanup time.Time
	now     func() time.Time
}

func NewLocalFixedWindowLimiter() Limiter {
	return &localFixedWindowLimiter{
		store:   make(map[string]*fixedWindow),
		cleanup: time.Now().Add(time.Minute),
		now:     time.Now,
	}
}

func (rl *localFixedWindowLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.cleanup) {
		for k, v := range rl.store {
			if now.Sub(v.windowStart) > 2*window {
				delete(rl.store, k)
			}
		}
		rl.cleanup = now.Add(window)
	}

	entry, ok := rl.store[key]
	if !ok || now.Sub(entry.windowStart) >= window {
		rl.store[key] = &fixedWindow{count: 1, windowStart: now}
		return true, 0, nil
	}
	if entry.count >= limit {
		retryAfter := window - now.Sub(entry.windowStart)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}
	entry.count++
	return true, 0, nil
}

// RateLimiter throttles admitted requests per subject, with separate read
// and write buckets. It must run after admission: requests without an
// auth context are rejected, never silently exempted.
type RateLimiter struct {
	limiter      Limiter
	defaultRead  int
	defaultWrite int
	window       time.Duration
	mode         FailureMode
	logger       *slog.Logger
}

func NewRateLimiter(limiter Limiter, defaultRead, defaultWrite int, window time.Duration, mode FailureMode, logger *slog.Logger) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limiter:      limiter,
		defaultRead:  defaultRead,
		defaultWrite: defaultWrite,
		window:       window,
		mode:         mode,
		logger:       logger,
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func bucketKey(subjectID, method string) string {
	kind := "r"
	if isWrite(method) {
		kind = "w"
	}
	return fmt.Sprintf("sub:%s:%s", subjectID, kind)
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := auth.FromRequest(r)
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, auth.CodeAuthError, "missing credentials", nil)
				return
			}

			limit := ac.RateLimitPerMin
			if limit <= 0 {
				if isWrite(r.Method) {
					limit = rl.defaultWrite
				} else {
					limit = rl.defaultRead
				}
			}

			key := bucketKey(ac.SubjectID, r.Method)
			allowed, retryAfter, err := rl.limiter.Allow(r.Context(), key, limit, rl.window)
			if err != nil {
				if rl.mode == FailOpen {
					rl.logger.Warn("rate limiter backend unavailable, allowing request",
						slog.String("subject_id", ac.SubjectID),
						slog.String("error", err.Error()))
					observability.RecordRateLimitDecision(r.Context(), "backend", "fail_open")
					next.ServeHTTP(w, r)
					return
				}
				w.Header().Set("Retry-After", retryAfterHeader(rl.window, rl.window))
				observability.RecordRateLimitDecision(r.Context(), "backend", "fail_closed")
				response.Error(w, r, http.StatusTooManyRequests, RateLimitCode, "too many requests", nil)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", retryAfterHeader(retryAfter, rl.window))
				observability.RecordRateLimitDecision(r.Context(), "subject", "throttled")
				response.Error(w, r, http.StatusTooManyRequests, RateLimitCode, "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), "subject", "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterHeader clamps the hint to [1, window] whole seconds.
func retryAfterHeader(d, window time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if max := int(window.Seconds()); max >= 1 && seconds > max {
		seconds = max
	}
	return fmt.Sprintf("%d", seconds)
}
