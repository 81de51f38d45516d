package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel this package uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Close() error
	IsClosed() bool
}

var _ Channel = (*amqp.Channel)(nil)

// ErrConnectorClosed is returned by Connector.Channel after Close.
var ErrConnectorClosed = errors.New("amqp connector is closed")

// Connector owns one AMQP connection and opens channels on it, dialing again
// if the broker dropped the previous connection.
type Connector struct {
	url    string
	dial   func(url string) (*amqp.Connection, error)
	mu     sync.Mutex
	conn   *amqp.Connection
	closed bool
}

// NewConnector dials url and returns a Connector.
func NewConnector(url string) (*Connector, error) {
	c := &Connector{url: url, dial: amqp.Dial}
	if _, err := c.connection(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connector) connection() (*amqp.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConnectorClosed
	}
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn, nil
	}

	conn, err := c.dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// Channel opens a new channel. It satisfies Opener.
func (c *Connector) Channel() (Channel, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

// Close closes the connection and every channel on it.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}
