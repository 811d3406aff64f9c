package messaging

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// HandlerFunc processes one delivery body.
type HandlerFunc func(ctx context.Context, eventType string, body []byte) error

// Consumer reads a durable queue with manual acks. A handler error requeues
// the delivery unless Discard says it can never succeed.
type Consumer struct {
	ch      *amqp.Channel
	queue   string
	log     zerolog.Logger
	Discard func(error) bool
}

func NewConsumer(conn *amqp.Connection, queue string, prefetch int, log zerolog.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{
		ch:    ch,
		queue: queue,
		log:   log.With().Str("queue", queue).Logger(),
	}, nil
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("consume %s: %w", c.queue, amqp.ErrClosed)
			}
			c.settle(ctx, d, handle)
		}
	}
}

func (c *Consumer) settle(ctx context.Context, d amqp.Delivery, handle HandlerFunc) {
	err := handle(ctx, d.Type, d.Body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Error().Err(ackErr).Str("message_id", d.MessageId).Msg("ack failed")
		}
		return
	}

	requeue := c.Discard == nil || !c.Discard(err)
	c.log.Warn().
		Err(err).
		Str("message_id", d.MessageId).
		Str("event_type", d.Type).
		Bool("requeue", requeue).
		Msg("delivery rejected")
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		c.log.Error().Err(nackErr).Str("message_id", d.MessageId).Msg("nack failed")
	}
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
