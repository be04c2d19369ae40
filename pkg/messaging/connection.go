package messaging

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection wraps an AMQP connection and a single channel. The amqp091
// channel is not safe for concurrent publishing, so callers that publish
// from multiple goroutines should open one Connection per publisher or
// serialize access themselves.
type Connection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	cfg  Config
}

// Connect dials RabbitMQ, opens a channel, and declares the full saga
// topology. Declaration is idempotent so every service can call it at
// startup regardless of boot order.
func Connect(cfg Config) (*Connection, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := DeclareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Connection{conn: conn, ch: ch, cfg: cfg}, nil
}

// Channel returns the underlying AMQP channel.
func (c *Connection) Channel() *amqp.Channel {
	return c.ch
}

// Config returns the configuration used to establish the connection.
func (c *Connection) Config() Config {
	return c.cfg
}

// NewChannel opens an additional channel on the same connection. Consumers
// take their own channel so prefetch settings and consumption do not
// interfere with the publisher channel.
func (c *Connection) NewChannel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// Ping reports whether the connection is still usable. Used by readiness
// checks.
func (c *Connection) Ping(ctx context.Context) error {
	if c.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection closed")
	}
	return nil
}

// Close shuts the channel down before the connection.
func (c *Connection) Close() error {
	if err := c.ch.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}
