package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const contentTypeJSON = "application/json"

var ErrNotConfirmed = errors.New("message not confirmed by broker")

// Message is one outbox event on its way to the broker.
type Message struct {
	ID        string
	Type      string
	Key       string // aggregate id, carried as a header
	Body      []byte
	Timestamp time.Time
}

// Routes maps an event type to the queue it is delivered to. Types without
// an entry go to Default.
type Routes struct {
	ByType  map[string]string
	Default string
}

func (r Routes) Queue(eventType string) string {
	if q, ok := r.ByType[eventType]; ok {
		return q
	}
	return r.Default
}

func (r Routes) queues() []string {
	seen := map[string]bool{}
	var out []string
	for _, q := range append([]string{r.Default}, mapValues(r.ByType)...) {
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

func mapValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// confirmation is the broker's pending answer for one publishing.
// *amqp.DeferredConfirmation satisfies it.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type publishFunc func(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error)

// Publisher sends persistent JSON messages on a confirm-mode channel and
// waits for the broker ack of each one. Every publishing waits on its own
// delivery tag, so a confirm that arrives after its caller gave up is never
// read by the next publish.
type Publisher struct {
	mu      sync.Mutex
	routes  Routes
	publish publishFunc
	close   func() error
}

func NewPublisher(conn *amqp.Connection, routes Routes) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	for _, q := range routes.queues() {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	publish := func(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error) {
		dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
		if err != nil {
			return nil, err
		}
		if dc == nil {
			return nil, errors.New("channel is not in confirm mode")
		}
		return dc, nil
	}
	return newPublisher(routes, publish, ch.Close), nil
}

func newPublisher(routes Routes, publish publishFunc, closeFn func() error) *Publisher {
	return &Publisher{routes: routes, publish: publish, close: closeFn}
}

func publishing(msg Message) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         msg.Type,
		Timestamp:    msg.Timestamp,
		Headers:      amqp.Table{"aggregate_id": msg.Key},
		Body:         msg.Body,
	}
}

func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	queue := p.routes.Queue(msg.Type)
	if queue == "" {
		return fmt.Errorf("no queue for event type %s", msg.Type)
	}

	p.mu.Lock()
	confirm, err := p.publish(ctx, queue, publishing(msg))
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("publish to %s: %w", queue, ErrNotConfirmed)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.close()
}
