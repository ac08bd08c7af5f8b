// Package eventbus connects the service to its message broker: it owns the AMQP
// connection, declares the topology, consumes purchase confirmations and
// dispatches outbound events.
package eventbus

import (
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection is an explicitly owned AMQP connection. It does not reconnect: when
// the broker drops it, the listener stops and the process is expected to exit.
type Connection struct {
	conn   *amqp.Connection
	logger *slog.Logger
}

// Dial opens a connection to the broker at url.
func Dial(url string, logger *slog.Logger) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	logger.Info("connected to broker", slog.String("host", conn.RemoteAddr().String()))
	return &Connection{conn: conn, logger: logger}, nil
}

// Channel opens a new channel on the connection.
func (c *Connection) Channel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

// IsOpen reports whether the connection is still usable.
func (c *Connection) IsOpen() bool {
	return c != nil && c.conn != nil && !c.conn.IsClosed()
}

// Close closes the connection and every channel opened on it.
func (c *Connection) Close() error {
	if c == nil || c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close broker connection: %w", err)
	}
	c.logger.Info("broker connection closed")
	return nil
}
