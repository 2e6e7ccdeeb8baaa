package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ayo6706/retail-ledger/internal/api/problem"
	"github.com/go-chi/httprate"
)

// PublicRateLimiter limits register and login per client IP. rps <= 0 disables it.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return passthrough
	}
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limitExceeded(fmt.Sprintf("at most %d requests per second from one address", rps))),
	)
}

// AuthRateLimiter limits authenticated traffic per user, falling back to the
// IP before the user is known.
func AuthRateLimiter(rps int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return passthrough
	}
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if userID := UserIDFromContext(r.Context()); userID != 0 {
				return "u" + strconv.FormatInt(userID, 10), nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(limitExceeded(fmt.Sprintf("at most %d requests per second per user", rps))),
	)
}

func limitExceeded(detail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		problem.Write(w, r, http.StatusTooManyRequests, problem.Type("rate-limit-exceeded"), "", detail)
	}
}

func passthrough(next http.Handler) http.Handler { return next }
