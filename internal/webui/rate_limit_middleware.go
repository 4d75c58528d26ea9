package webui

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBoardInterval is the minimum spacing of preview renders. A render
// can fetch from the API, so previews are throttled well below its limits.
const DefaultBoardInterval = 2 * time.Second

// RateLimitMiddleware throttles a route with a single shared limiter.
type RateLimitMiddleware struct {
	limiter *rate.Limiter
	every   time.Duration
	burst   int
}

// NewRateLimitMiddleware allows one request per every, with burst extra.
// every <= 0 disables limiting.
func NewRateLimitMiddleware(every time.Duration, burst int) *RateLimitMiddleware {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &RateLimitMiddleware{
		limiter: rate.NewLimiter(limit, burst),
		every:   every,
		burst:   burst,
	}
}

// Handler wraps next.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			rl.sendRateLimitExceeded(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) sendRateLimitExceeded(w http.ResponseWriter) {
	retryAfter := int(math.Ceil(rl.every.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status: "rate_limited",
		Detail: "board renders are throttled, retry later",
	})
}
