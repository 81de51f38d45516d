package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/webapp-api/internal/events"
	"github.com/phrazzld/webapp-api/internal/metrics"
	platformredis "github.com/phrazzld/webapp-api/internal/platform/redis"
	"github.com/phrazzld/webapp-api/internal/service/auth"
)

const (
	testChannel = "events:event"
	testSecret  = "relay-test-secret-that-is-long-enough"
)

// recorder collects state transitions per connection.
type recorder struct {
	mu     sync.Mutex
	states map[string][]State
}

func newRecorder() *recorder {
	return &recorder{states: make(map[string][]State)}
}

func (r *recorder) observe(id string, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = append(r.states[id], s)
}

func (r *recorder) all() map[string][]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]State, len(r.states))
	for id, s := range r.states {
		out[id] = append([]State(nil), s...)
	}
	return out
}

func (r *recorder) closedCount() int {
	n := 0
	for _, states := range r.all() {
		if len(states) > 0 && states[len(states)-1] == StateClosed {
			n++
		}
	}
	return n
}

type countingSink struct {
	*metrics.NoopSink
	opened, closed, rejected, forwarded atomic.Int64
}

func (s *countingSink) RelayConnectionOpened() { s.opened.Add(1) }
func (s *countingSink) RelayConnectionClosed() { s.closed.Add(1) }
func (s *countingSink) RelayAuthRejected()     { s.rejected.Add(1) }
func (s *countingSink) RelayMessageForwarded() { s.forwarded.Add(1) }

type harness struct {
	mr      *miniredis.Miniredis
	client  *goredis.Client
	server  *httptest.Server
	tokens  auth.JWTService
	rec     *recorder
	sink    *countingSink
	wsURL   string
	publish func(t *testing.T, payload string)
}

func newHarness(t *testing.T, receiveTimeout time.Duration, subscriber Subscriber) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if subscriber == nil {
		sub := platformredis.NewSubscriber(client, testChannel)
		subscriber = SubscriberFunc(func(ctx context.Context) (Subscription, error) {
			s, err := sub.Subscribe(ctx)
			if err != nil {
				return nil, err
			}
			return s, nil
		})
	}

	h := &harness{
		mr:     mr,
		client: client,
		tokens: auth.NewTestJWTService(testSecret, time.Hour, nil),
		rec:    newRecorder(),
		sink:   &countingSink{NoopSink: metrics.NewNoopSink()},
	}

	handler := NewHandler(subscriber, h.tokens, h.sink,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Options{
			ReceiveTimeout: receiveTimeout,
			WriteTimeout:   time.Second,
			Observer:       h.rec.observe,
		})

	h.server = httptest.NewServer(NewRouter(handler, "", nil))
	t.Cleanup(h.server.Close)
	h.wsURL = "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"

	h.publish = func(t *testing.T, payload string) {
		t.Helper()
		require.NoError(t, client.Publish(context.Background(), testChannel, payload).Err())
	}
	return h
}

func (h *harness) token(t *testing.T) string {
	t.Helper()
	token, err := h.tokens.GenerateToken(context.Background(), uuid.New())
	require.NoError(t, err)
	return token
}

func (h *harness) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Cookie", DefaultCookieName+"="+token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(h.wsURL, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (h *harness) subscribers() int {
	return h.mr.PubSubNumSub(testChannel)[testChannel]
}

func (h *harness) waitSubscribers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.subscribers() == n },
		2*time.Second, 10*time.Millisecond, "expected %d subscribers", n)
}

func eventJSON(t *testing.T, typ events.Type, data string) string {
	t.Helper()
	event, err := events.NewEvent(typ, json.RawMessage(data), time.Now())
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return string(body)
}

func TestRelayRejectsBadCredentials(t *testing.T) {
	h := newHarness(t, time.Second, nil)

	userID := uuid.New()
	expired, err := auth.NewTestJWTService(testSecret, time.Minute, func() time.Time {
		return time.Now().Add(-time.Hour)
	}).GenerateToken(context.Background(), userID)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantMsg string
	}{
		{"missing cookie", "", auth.ErrMissingToken.Error()},
		{"expired token", expired, auth.ErrExpiredToken.Error()},
		{"hs512 token", hs512, auth.ErrUnsupportedAlgorithm.Error()},
		{"garbage token", "garbage", auth.ErrInvalidToken.Error()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn := h.dial(t, tc.token)
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

			var msg map[string]string
			require.NoError(t, conn.ReadJSON(&msg))
			assert.Equal(t, tc.wantMsg, msg["auth_error"])

			_, _, err := conn.ReadMessage()
			var closeErr *websocket.CloseError
			require.True(t, errors.As(err, &closeErr), "expected close frame, got %v", err)
			assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		})
	}

	require.Eventually(t, func() bool { return h.rec.closedCount() == len(tests) },
		2*time.Second, 10*time.Millisecond)
	for id, states := range h.rec.all() {
		assert.NotContains(t, states, StateSubscribed, "connection %s", id)
		assert.NotContains(t, states, StateAuthenticated, "connection %s", id)
	}
	assert.Equal(t, int64(len(tests)), h.sink.rejected.Load())
	assert.Equal(t, 0, h.subscribers())
}

func TestRelayForwardsBroadcastEvents(t *testing.T) {
	h := newHarness(t, time.Second, nil)
	conn := h.dial(t, h.token(t))
	h.waitSubscribers(t, 1)

	h.publish(t, "not json at all")
	h.publish(t, `{"type":"a-simple-event"}`)
	want := eventJSON(t, events.TypeSimple, `{"n":1}`)
	h.publish(t, want)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, body, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.JSONEq(t, want, string(body))

	got, err := events.Decode(body)
	require.NoError(t, err)
	assert.Equal(t, events.TypeSimple, got.Type)
	assert.Eventually(t, func() bool { return h.sink.forwarded.Load() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestRelayForwardsTimestampWithoutOffset(t *testing.T) {
	h := newHarness(t, time.Second, nil)
	conn := h.dial(t, h.token(t))
	h.waitSubscribers(t, 1)

	want := `{"timestamp":"2025-06-16T10:00:00.123456","type":"a-complex-event","data":{"user_id":"u1"}}`
	h.publish(t, want)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, body, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, want, string(body))
	assert.Eventually(t, func() bool { return h.sink.forwarded.Load() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestRelayFansOutToEverySubscriber(t *testing.T) {
	h := newHarness(t, time.Second, nil)
	first := h.dial(t, h.token(t))
	second := h.dial(t, h.token(t))
	h.waitSubscribers(t, 2)

	want := eventJSON(t, events.TypeComplex, `{"items":[1,2]}`)
	h.publish(t, want)

	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, body, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, want, string(body))
	}
}

func TestRelayIdleConnectionOutlivesReceiveTimeout(t *testing.T) {
	receiveTimeout := 50 * time.Millisecond
	h := newHarness(t, receiveTimeout, nil)
	conn := h.dial(t, h.token(t))
	h.waitSubscribers(t, 1)

	time.Sleep(6 * receiveTimeout)
	assert.Equal(t, 1, h.subscribers())

	want := eventJSON(t, events.TypeSimple, `{}`)
	h.publish(t, want)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, body, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, want, string(body))

	for _, states := range h.rec.all() {
		assert.NotContains(t, states, StateDraining)
	}
}

func TestRelayDisconnectReleasesSubscription(t *testing.T) {
	h := newHarness(t, 100*time.Millisecond, nil)

	const cycles = 5
	for i := 0; i < cycles; i++ {
		conn := h.dial(t, h.token(t))
		h.waitSubscribers(t, 1)
		require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
		require.NoError(t, conn.Close())
		h.waitSubscribers(t, 0)
	}

	require.Eventually(t, func() bool { return h.rec.closedCount() == cycles },
		2*time.Second, 10*time.Millisecond)
	for _, states := range h.rec.all() {
		assert.Equal(t, []State{
			StateConnecting, StateAuthenticated, StateSubscribed, StateDraining, StateClosed,
		}, states)
	}
	assert.Eventually(t, func() bool { return h.sink.closed.Load() == cycles },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(cycles), h.sink.opened.Load())
}

func TestRelaySubscribeFailureClosesConnection(t *testing.T) {
	failing := SubscriberFunc(func(ctx context.Context) (Subscription, error) {
		return nil, errors.New("redis unavailable")
	})
	h := newHarness(t, time.Second, failing)

	conn := h.dial(t, h.token(t))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "expected close frame, got %v", err)
	assert.Equal(t, websocket.CloseInternalServerErr, closeErr.Code)

	require.Eventually(t, func() bool { return h.rec.closedCount() == 1 },
		time.Second, 10*time.Millisecond)
	for _, states := range h.rec.all() {
		assert.NotContains(t, states, StateSubscribed)
	}
}

func TestRelayHealth(t *testing.T) {
	h := newHarness(t, time.Second, nil)

	resp, err := http.Get(h.server.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "subscribed", StateSubscribed.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
