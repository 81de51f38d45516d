package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/webapp-api/internal/events"
)

// BroadcastPublisher publishes events on a single pub/sub channel. Redis
// keeps nothing: subscribers that are not connected miss the event.
type BroadcastPublisher struct {
	client  goredis.UniversalClient
	channel string
}

// NewBroadcastPublisher creates a publisher for channel.
func NewBroadcastPublisher(client goredis.UniversalClient, channel string) *BroadcastPublisher {
	return &BroadcastPublisher{client: client, channel: channel}
}

var _ events.Publisher = (*BroadcastPublisher)(nil)

// Publish implements events.Publisher.
func (p *BroadcastPublisher) Publish(ctx context.Context, event *events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}
	return nil
}
