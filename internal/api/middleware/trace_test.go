package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/webapp-api/internal/api/shared"
	"github.com/phrazzld/webapp-api/internal/platform/logger"
)

func TestTraceAndAppHeaders(t *testing.T) {
	base, buf := logger.NewTestLogger()

	var traceID, reqID string
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(NewTraceMiddleware(base))
	r.Use(AppHeaders)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		reqID = chimw.GetReqID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, reqID)
	assert.Equal(t, reqID, traceID)
	assert.Equal(t, reqID, rr.Header().Get(RequestIDHeader))
	assert.Equal(t, Unauthenticated, rr.Header().Get(UserIDHeader))

	entries, err := buf.Entries()
	assert.NoError(t, err)
	found := false
	for _, e := range entries {
		if e["msg"] == "inside handler" {
			found = true
			assert.Equal(t, traceID, e["trace_id"])
		}
	}
	assert.True(t, found)
}

func TestTraceMiddlewareWithoutRequestID(t *testing.T) {
	base, _ := logger.NewTestLogger()

	var traceID string
	handler := NewTraceMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, traceID, 2*shared.TraceIDLength)
}
