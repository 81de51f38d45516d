package rabbitmq

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeBroker routes messages the way a topic exchange does for literal
// routing keys.
type fakeBroker struct {
	mu         sync.Mutex
	exchanges  map[string]string
	queues     map[string]bool
	bindings   map[string][]string // exchange|key -> queues
	messages   map[string][]amqp.Publishing
	opened     int
	openErr    error
	publishErr error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		exchanges: make(map[string]string),
		queues:    make(map[string]bool),
		bindings:  make(map[string][]string),
		messages:  make(map[string][]amqp.Publishing),
	}
}

func (b *fakeBroker) open() (Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opened++
	return &fakeChannel{broker: b}, nil
}

func (b *fakeBroker) queue(name string) []amqp.Publishing {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]amqp.Publishing(nil), b.messages[name]...)
}

type fakeChannel struct {
	broker *fakeBroker
	mu     sync.Mutex
	closed bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.IsClosed() {
		return amqp.ErrClosed
	}
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.publishErr != nil {
		// a failed publish closes the channel, as the broker does
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		return b.publishErr
	}
	if _, ok := b.exchanges[exchange]; !ok {
		return errors.New("NOT_FOUND - no exchange " + exchange)
	}
	for _, q := range b.bindings[exchange+"|"+key] {
		b.messages[q] = append(b.messages[q], msg)
	}
	return nil
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if !durable {
		return errors.New("test broker only accepts durable exchanges")
	}
	c.broker.exchanges[name] = kind
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.queues[name] = durable
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	k := exchange + "|" + key
	c.broker.bindings[k] = append(c.broker.bindings[k], name)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
