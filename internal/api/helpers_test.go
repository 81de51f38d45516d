package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/webapp-api/internal/api/middleware"
	"github.com/phrazzld/webapp-api/internal/config"
	"github.com/phrazzld/webapp-api/internal/mocks"
	"github.com/phrazzld/webapp-api/internal/service/auth"
	"github.com/phrazzld/webapp-api/internal/timegate"
)

const testJWTSecret = "api-test-secret-that-is-long-enough"

var testAuthConfig = config.AuthConfig{
	JWTSecret:            testJWTSecret,
	TokenLifetimeMinutes: 60,
	CookieName:           "access_token_cookie",
	CookieSecure:         true,
}

// testServer wires NewRouter with mocks and a real JWT service.
type testServer struct {
	handler   http.Handler
	jwt       auth.JWTService
	users     *mocks.MockUserService
	submitter *mocks.MockReportSubmitter
	query     *mocks.MockReportQuery
	publisher *mocks.MockEventPublisher
	now       time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		jwt:       auth.NewTestJWTService(testJWTSecret, time.Hour, nil),
		users:     &mocks.MockUserService{},
		submitter: &mocks.MockReportSubmitter{},
		query:     &mocks.MockReportQuery{},
		publisher: &mocks.MockEventPublisher{},
		// a Monday, inside business hours
		now: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	}

	gate, err := timegate.NewBusinessHours(config.GateConfig{Timezone: "UTC", Open: "09:00", Close: "17:00"})
	require.NoError(t, err)

	ts.handler = NewRouter(RouterDeps{
		Logger:         discardLogger(),
		AuthMiddleware: middleware.NewAuthMiddleware(ts.jwt, testAuthConfig.CookieName),
		AuthHandler:    NewAuthHandler(ts.users, ts.jwt, testAuthConfig),
		ReportHandler:  NewReportHandler(ts.submitter, ts.query),
		EventHandler:   NewEventHandler(ts.publisher),
		Health:         NewHealthHandler(nil),
		Gate:           gate.Allowed,
		GateClock:      func() time.Time { return ts.now },
		GateMessage:    "Only available during business hours",
	})
	return ts
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (ts *testServer) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := ts.jwt.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}
