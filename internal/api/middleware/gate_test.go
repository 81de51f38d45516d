package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/webapp-api/internal/config"
	"github.com/phrazzld/webapp-api/internal/metrics"
	"github.com/phrazzld/webapp-api/internal/timegate"
)

type gateSink struct {
	*metrics.NoopSink
	rejected atomic.Int64
}

func (s *gateSink) GateRejected() { s.rejected.Add(1) }

func TestTimeGate(t *testing.T) {
	gate, err := timegate.NewBusinessHours(config.GateConfig{
		Timezone: "UTC", Open: "09:00", Close: "17:00",
	})
	require.NoError(t, err)

	const message = "Only available during business hours"

	// 2024-03-04 is a Monday
	tests := []struct {
		name       string
		now        time.Time
		wantStatus int
	}{
		{"16:59 allowed", time.Date(2024, 3, 4, 16, 59, 0, 0, time.UTC), http.StatusOK},
		{"17:00 rejected", time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC), http.StatusServiceUnavailable},
		{"saturday rejected", time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sink := &gateSink{NoopSink: metrics.NewNoopSink()}
			called := false
			handler := TimeGate(gate.Allowed, func() time.Time { return tc.now }, message, sink)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					called = true
					w.WriteHeader(http.StatusOK)
				}))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/redis-pubsub-event", nil))

			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantStatus == http.StatusOK {
				assert.True(t, called)
				assert.Zero(t, sink.rejected.Load())
				return
			}
			assert.False(t, called)
			assert.Equal(t, int64(1), sink.rejected.Load())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, message, body["msg"])
		})
	}
}

func TestTimeGateAlways(t *testing.T) {
	handler := TimeGate(timegate.Always, nil, "closed", nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
