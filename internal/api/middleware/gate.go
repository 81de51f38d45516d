package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/phrazzld/webapp-api/internal/api/shared"
	"github.com/phrazzld/webapp-api/internal/metrics"
	"github.com/phrazzld/webapp-api/internal/timegate"
)

var errOutsideWindow = errors.New("request outside the allowed time window")

// TimeGate rejects requests with 503 and message whenever allowed reports
// false for the current instant. now is injectable for tests; nil means
// time.Now.
func TimeGate(
	allowed timegate.Predicate,
	now timegate.Clock,
	message string,
	sink metrics.Sink,
) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	if sink == nil {
		sink = metrics.NewNoopSink()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed(now()) {
				sink.GateRejected()
				shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, message, errOutsideWindow)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
