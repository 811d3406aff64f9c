package messaging

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Dial opens the broker connection.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return conn, nil
}

// ConnPinger reports the connection as unhealthy once it is closed.
type ConnPinger struct {
	Conn *amqp.Connection
}

func (p ConnPinger) Ping(context.Context) error {
	if p.Conn == nil || p.Conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}
