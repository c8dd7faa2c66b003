package httpserver

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	obsctx "github.com/fairyhunter13/career-diagnosis/internal/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/service/ratelimiter"
)

// Limit guards a route with the named per-client policy. The client is keyed
// by its real IP. Limiter backend errors fail open.
func (s *Server) Limit(policy string) func(http.Handler) http.Handler {
	l := s.Limiters[policy]
	retryAfter := retryAfterSeconds(s.Cfg.RateLimitPolicies()[policy].Window)
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return limitHandler(policy, l, retryAfter, next)
	}
}

func limitHandler(policy string, l ratelimiter.Limiter, retryAfter string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := httprate.KeyByRealIP(r)
		if err != nil || key == "" {
			key = r.RemoteAddr
		}
		allowed, err := l.Allow(r.Context(), key)
		if err != nil {
			LoggerFrom(r).Warn("rate limiter unavailable, allowing request",
				slog.String("policy", policy), slog.Any("error", err))
		}
		if !allowed {
			observability.RateLimited(policy)
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, r, fmt.Errorf("op=http.limit policy=%s: %w", policy, domain.ErrRateLimited), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(obsctx.ContextWithClientID(r.Context(), key)))
	})
}

func retryAfterSeconds(window time.Duration) string {
	if window <= 0 {
		window = time.Minute
	}
	return strconv.Itoa(int(math.Ceil(window.Seconds())))
}

// TooManyRequests answers requests rejected by the coarse per-IP guard.
func TooManyRequests(w http.ResponseWriter, r *http.Request) {
	observability.RateLimited("ip_guard")
	writeError(w, r, fmt.Errorf("op=http.ip_guard: %w", domain.ErrRateLimited), nil)
}
