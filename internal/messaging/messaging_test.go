package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAck struct {
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (f *fakeAck) Ack(tag uint64, _ bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAck) Nack(tag uint64, _ bool, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	f.requeue = append(f.requeue, requeue)
	return nil
}

func (f *fakeAck) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

var errPermanent = errors.New("permanent")

func delivery(ack *fakeAck, tag uint64) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		Type:         "CLINICAL_RECORD_REQUESTED",
		Body:         []byte(`{}`),
	}
}

func TestSettle(t *testing.T) {
	c := &Consumer{
		log:     zerolog.Nop(),
		Discard: func(err error) bool { return errors.Is(err, errPermanent) },
	}
	ack := &fakeAck{}

	var gotType string
	c.settle(context.Background(), delivery(ack, 1), func(_ context.Context, eventType string, _ []byte) error {
		gotType = eventType
		return nil
	})
	c.settle(context.Background(), delivery(ack, 2), func(context.Context, string, []byte) error {
		return errors.New("db down")
	})
	c.settle(context.Background(), delivery(ack, 3), func(context.Context, string, []byte) error {
		return errPermanent
	})

	assert.Equal(t, "CLINICAL_RECORD_REQUESTED", gotType)
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2, 3}, ack.nacked)
	assert.Equal(t, []bool{true, false}, ack.requeue)
}

func TestSettle_NoDiscardRequeues(t *testing.T) {
	c := &Consumer{log: zerolog.Nop()}
	ack := &fakeAck{}

	c.settle(context.Background(), delivery(ack, 7), func(context.Context, string, []byte) error {
		return errPermanent
	})
	assert.Equal(t, []bool{true}, ack.requeue)
}

func TestRoutes(t *testing.T) {
	r := Routes{
		ByType:  map[string]string{"CLINICAL_RECORD_REQUESTED": "records"},
		Default: "events",
	}

	assert.Equal(t, "records", r.Queue("CLINICAL_RECORD_REQUESTED"))
	assert.Equal(t, "events", r.Queue("APPOINTMENT_SCHEDULED"))
	assert.ElementsMatch(t, []string{"events", "records"}, r.queues())

	assert.Empty(t, Routes{}.Queue("ANY"))
}

func TestPublishing(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	p := publishing(Message{ID: "42", Type: "APPOINTMENT_SCHEDULED", Key: "a1", Body: []byte(`{"x":1}`), Timestamp: at})

	assert.Equal(t, amqp.Persistent, p.DeliveryMode)
	assert.Equal(t, "application/json", p.ContentType)
	assert.Equal(t, "42", p.MessageId)
	assert.Equal(t, "APPOINTMENT_SCHEDULED", p.Type)
	assert.Equal(t, at, p.Timestamp)
	require.Contains(t, p.Headers, "aggregate_id")
	assert.Equal(t, "a1", p.Headers["aggregate_id"])
}

func TestConnPinger_Nil(t *testing.T) {
	assert.ErrorIs(t, ConnPinger{}.Ping(context.Background()), amqp.ErrClosed)
}

type fakeConfirm struct {
	acked chan bool
}

func (f *fakeConfirm) WaitContext(ctx context.Context) (bool, error) {
	select {
	case ack := <-f.acked:
		return ack, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func TestPublisher_LateConfirmDoesNotLeakIntoNextPublish(t *testing.T) {
	pending := []*fakeConfirm{
		{acked: make(chan bool, 1)},
		{acked: make(chan bool, 1)},
	}
	sent := 0
	pub := newPublisher(Routes{Default: "events"}, func(_ context.Context, queue string, _ amqp.Publishing) (confirmation, error) {
		assert.Equal(t, "events", queue)
		c := pending[sent]
		sent++
		return c, nil
	}, func() error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := pub.Publish(ctx, Message{ID: "1", Type: "APPOINTMENT_SCHEDULED"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The broker acks the first message only after its caller timed out,
	// then nacks the second.
	pending[0].acked <- true
	pending[1].acked <- false

	err = pub.Publish(context.Background(), Message{ID: "2", Type: "APPOINTMENT_SCHEDULED"})
	assert.ErrorIs(t, err, ErrNotConfirmed)
}

func TestPublisher_Acked(t *testing.T) {
	pub := newPublisher(Routes{Default: "events"}, func(context.Context, string, amqp.Publishing) (confirmation, error) {
		c := &fakeConfirm{acked: make(chan bool, 1)}
		c.acked <- true
		return c, nil
	}, func() error { return nil })

	assert.NoError(t, pub.Publish(context.Background(), Message{ID: "1", Type: "APPOINTMENT_SCHEDULED"}))
	assert.Error(t, newPublisher(Routes{}, nil, nil).Publish(context.Background(), Message{Type: "X"}))
}
