package rabbitmq

import (
	"context"
	"fmt"

	"github.com/phrazzld/webapp-api/internal/events"
)

// ExchangeKind is the exchange type events are published to.
const ExchangeKind = "topic"

// QueueName returns the durable queue holding events of type t.
func QueueName(exchange string, t events.Type) string {
	return exchange + "." + string(t)
}

// DeclareTopology declares the durable exchange and, for every type, a
// durable queue bound with the type as routing key. Declarations are
// idempotent, so every process start runs it.
func DeclareTopology(ch Channel, exchange string, types []events.Type) error {
	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	for _, t := range types {
		name := QueueName(exchange, t)
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}
		if err := ch.QueueBind(name, string(t), exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", name, err)
		}
	}
	return nil
}

// SetupTopology runs DeclareTopology on a channel borrowed from pool.
func SetupTopology(ctx context.Context, pool *ChannelPool, exchange string, types []events.Type) error {
	ch, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer pool.Release(ch)

	return DeclareTopology(ch, exchange, types)
}
