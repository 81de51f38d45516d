package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/webapp-api/internal/metrics"
)

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newTestDispatcher() (*Dispatcher, *recordingPublisher, *recordingPublisher) {
	d := NewDispatcher(metrics.NewNoopSink(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.now = func() time.Time { return time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC) }

	broadcast := &recordingPublisher{}
	durable := &recordingPublisher{}
	d.Register(BackendBroadcast, broadcast)
	d.Register(BackendDurable, durable)
	return d, broadcast, durable
}

func TestDispatcherPublish(t *testing.T) {
	d, broadcast, durable := newTestDispatcher()

	event, err := d.Publish(context.Background(), "a-simple-event", json.RawMessage(`{"k":"v"}`), BackendBroadcast)

	require.NoError(t, err)
	assert.Equal(t, TypeSimple, event.Type)
	assert.Equal(t, time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), event.Timestamp)
	assert.Equal(t, 1, broadcast.calls())
	assert.Equal(t, 0, durable.calls())
	assert.Same(t, event, broadcast.events[0])
}

func TestDispatcherRejectsBeforeIO(t *testing.T) {
	d, broadcast, durable := newTestDispatcher()

	_, err := d.Publish(context.Background(), "not-an-event", json.RawMessage(`{}`), BackendDurable)
	assert.ErrorIs(t, err, ErrInvalidEventType)

	_, err = d.Publish(context.Background(), "a-complex-event", json.RawMessage(`[1]`), BackendDurable)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = d.Publish(context.Background(), "a-complex-event", json.RawMessage(`{}`), Backend("carrier-pigeon"))
	assert.ErrorIs(t, err, ErrUnknownBackend)

	assert.Equal(t, 0, broadcast.calls())
	assert.Equal(t, 0, durable.calls())
}

func TestDispatcherWrapsTransportErrors(t *testing.T) {
	d, _, durable := newTestDispatcher()
	cause := errors.New("connection refused")
	durable.err = cause

	_, err := d.Publish(context.Background(), "a-complex-event", nil, BackendDurable)

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, durable.calls(), "no retry")
}

func TestDispatcherRegisterReplaces(t *testing.T) {
	d, first, _ := newTestDispatcher()
	var called bool
	d.Register(BackendBroadcast, PublisherFunc(func(ctx context.Context, e *Event) error {
		called = true
		return nil
	}))

	_, err := d.Publish(context.Background(), "a-simple-event", nil, BackendBroadcast)

	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 0, first.calls())
}
