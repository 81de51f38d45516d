package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Subscriber opens subscriptions to the events channel.
type Subscriber struct {
	client  goredis.UniversalClient
	channel string
}

// NewSubscriber creates a Subscriber for channel.
func NewSubscriber(client goredis.UniversalClient, channel string) *Subscriber {
	return &Subscriber{client: client, channel: channel}
}

// Subscribe opens a dedicated subscription and waits until Redis confirms it,
// so no message published after Subscribe returns is missed.
func (s *Subscriber) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := s.client.Subscribe(ctx, s.channel)

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	return &Subscription{ps: ps}, nil
}

// Subscription is one client's view of the channel. Receive must be called
// from a single goroutine; Close may be called from any goroutine, any number
// of times.
type Subscription struct {
	ps       *goredis.PubSub
	once     sync.Once
	closeErr error
}

// Receive waits up to timeout for the next message payload. It returns
// (nil, nil) when the timeout elapses or a non-message frame arrives, so the
// caller can check for cancellation and call again.
func (s *Subscription) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	msg, err := s.ps.ReceiveTimeout(ctx, timeout)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil
		}
		return nil, err
	}

	if m, ok := msg.(*goredis.Message); ok {
		return []byte(m.Payload), nil
	}
	return nil, nil
}

// Close unsubscribes and releases the connection. An in-flight Receive
// returns with an error.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.closeErr = s.ps.Close()
	})
	return s.closeErr
}
