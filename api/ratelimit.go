package api

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/seanlongden/lead-formatter-waitlist/config"
)

// RateLimit allows requests per client IP within window and answers the rest with a JSON 429
func RateLimit(requests int, window time.Duration, message string) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			zap.S().Infow("rate limit exceeded",
				"path", r.URL.Path,
				"requestId", RequestID(r.Context()))
			config.WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error":      message,
				"retryAfter": int(math.Ceil(window.Seconds())),
			})
		}),
	)
}
