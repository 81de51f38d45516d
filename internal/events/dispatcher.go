package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/webapp-api/internal/metrics"
)

// Backend selects how an event is delivered.
type Backend string

// Delivery backends.
const (
	// BackendBroadcast delivers to whoever is subscribed right now.
	BackendBroadcast Backend = "broadcast"

	// BackendDurable routes to a persistent queue per event type.
	BackendDurable Backend = "durable"
)

var (
	// ErrUnknownBackend is returned when no publisher is registered for a backend.
	ErrUnknownBackend = errors.New("unknown event backend")

	// ErrTransport wraps failures talking to a backend.
	ErrTransport = errors.New("event transport failed")
)

// Publisher delivers an already validated event to one backend.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event *Event) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Dispatcher validates events and routes them to the registered publisher
// for the requested backend. Failures are returned to the caller and never
// retried here.
type Dispatcher struct {
	publishers map[Backend]Publisher
	mu         sync.RWMutex
	metrics    metrics.Sink
	logger     *slog.Logger
	now        func() time.Time
}

// NewDispatcher creates a Dispatcher with no publishers.
func NewDispatcher(sink metrics.Sink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publishers: make(map[Backend]Publisher),
		metrics:    sink,
		logger:     logger.With("component", "event_dispatcher"),
		now:        time.Now,
	}
}

// Register sets the publisher for backend, replacing any previous one.
func (d *Dispatcher) Register(backend Backend, p Publisher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publishers[backend] = p
	d.logger.Debug("registered event publisher", "backend", backend)
}

// Publish validates eventType and data, stamps the event and sends it on
// backend. Validation errors are returned before any I/O happens.
func (d *Dispatcher) Publish(
	ctx context.Context,
	eventType string,
	data json.RawMessage,
	backend Backend,
) (*Event, error) {
	t, err := ParseType(eventType)
	if err != nil {
		d.metrics.EventPublished(string(backend), "unknown", metrics.OutcomeInvalid)
		return nil, err
	}

	d.mu.RLock()
	p, ok := d.publishers[backend]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}

	event, err := NewEvent(t, data, d.now())
	if err != nil {
		d.metrics.EventPublished(string(backend), string(t), metrics.OutcomeInvalid)
		return nil, err
	}

	if err := p.Publish(ctx, event); err != nil {
		d.metrics.EventPublished(string(backend), string(t), metrics.OutcomeFailed)
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, backend, err)
	}

	d.metrics.EventPublished(string(backend), string(t), metrics.OutcomeSuccess)
	d.logger.Debug("event published", "backend", backend, "event_type", t)
	return event, nil
}
