package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/phrazzld/webapp-api/internal/events"
)

// PublishCall captures one Publish invocation.
type PublishCall struct {
	EventType string
	Data      json.RawMessage
	Backend   events.Backend
}

// MockEventPublisher stands in for events.Dispatcher. By default it accepts
// known event types and rejects unknown ones the way the dispatcher does.
type MockEventPublisher struct {
	PublishFn func(ctx context.Context, eventType string, data json.RawMessage, backend events.Backend) (*events.Event, error)

	mu    sync.Mutex
	Calls []PublishCall
}

func (m *MockEventPublisher) Publish(
	ctx context.Context,
	eventType string,
	data json.RawMessage,
	backend events.Backend,
) (*events.Event, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, PublishCall{EventType: eventType, Data: data, Backend: backend})
	m.mu.Unlock()

	if m.PublishFn != nil {
		return m.PublishFn(ctx, eventType, data, backend)
	}
	t, err := events.ParseType(eventType)
	if err != nil {
		return nil, err
	}
	return events.NewEvent(t, data, time.Now())
}

// CallCount returns the number of Publish calls so far.
func (m *MockEventPublisher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
