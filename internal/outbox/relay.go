package outbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/messaging"
)

// Batch is a set of claimed, unpublished rows. Rows stay claimed until the
// surrounding transaction ends.
type Batch interface {
	ClaimUnpublished(ctx context.Context, limit int) ([]appointment.EventLog, error)
	MarkPublished(ctx context.Context, ids []int64, at time.Time) error
}

type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, b Batch) error) error
}

type Publisher interface {
	Publish(ctx context.Context, msg messaging.Message) error
}

// Relay moves committed event_logs rows to the broker. Delivery is
// at-least-once: a crash between publish and commit republishes the row.
type Relay struct {
	store     Store
	publisher Publisher
	batchSize int
	clock     clock.Clock
	log       zerolog.Logger
}

func NewRelay(store Store, publisher Publisher, batchSize int, clk clock.Clock, log zerolog.Logger) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		batchSize: batchSize,
		clock:     clk,
		log:       log.With().Str("component", "outbox_relay").Logger(),
	}
}

func toMessage(ev appointment.EventLog) messaging.Message {
	key := ""
	if ev.AppointmentID != nil {
		key = ev.AppointmentID.String()
	}
	return messaging.Message{
		ID:        strconv.FormatInt(ev.ID, 10),
		Type:      ev.EventType,
		Key:       key,
		Body:      ev.Payload,
		Timestamp: ev.CreatedAt,
	}
}

// RunOnce publishes one batch in id order and returns how many rows were
// marked. It stops at the first publish failure; rows before it stay marked.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	var (
		published  int
		publishErr error
	)

	err := r.store.WithinTx(ctx, func(ctx context.Context, b Batch) error {
		events, err := b.ClaimUnpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(events))
		for _, ev := range events {
			if err := r.publisher.Publish(ctx, toMessage(ev)); err != nil {
				publishErr = fmt.Errorf("publish event %d: %w", ev.ID, err)
				break
			}
			ids = append(ids, ev.ID)
		}

		if len(ids) == 0 {
			return nil
		}
		if err := b.MarkPublished(ctx, ids, r.clock.Now()); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("outbox relay: %w", err)
	}

	return published, publishErr
}

// Run drains the outbox on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	r.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("shutdown signal received, stopping outbox relay")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Relay) tick(ctx context.Context) {
	for {
		runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		start := time.Now()
		n, err := r.RunOnce(runCtx)
		cancel()

		if err != nil {
			if !errors.Is(err, context.Canceled) {
				r.log.Error().Err(err).Int("published", n).Msg("outbox run failed")
			}
			return
		}
		if n > 0 {
			r.log.Info().Int("published", n).Dur("took", time.Since(start)).Msg("outbox batch published")
		}
		if n < r.batchSize {
			return
		}
	}
}
