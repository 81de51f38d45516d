package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/phrazzld/webapp-api/internal/events"
)

// ContentType of every published message.
const ContentType = "application/json"

// DurablePublisher publishes persistent messages to the topic exchange with
// the event type as routing key. Once Publish returns nil, delivery is the
// broker's job; nothing is retried or buffered here.
type DurablePublisher struct {
	pool     *ChannelPool
	exchange string
}

// NewDurablePublisher creates a publisher sending to exchange.
func NewDurablePublisher(pool *ChannelPool, exchange string) *DurablePublisher {
	return &DurablePublisher{pool: pool, exchange: exchange}
}

var _ events.Publisher = (*DurablePublisher)(nil)

// Publish implements events.Publisher. The borrowed channel goes back to the
// pool on every path.
func (p *DurablePublisher) Publish(ctx context.Context, event *events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ch, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Release(ch)

	err = ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType:  ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Timestamp,
		Type:         string(event.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.exchange, err)
	}
	return nil
}
