package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) WithinTx(ctx context.Context, fn func(ctx context.Context, b Batch) error) error {
	return db.WithinTx(ctx, s.pool, nil, func(tx pgx.Tx) error {
		return fn(ctx, pgBatch{q: tx})
	})
}

type pgBatch struct {
	q db.Querier
}

// ClaimUnpublished skips rows another relay holds so parallel relays never
// publish the same row in the same window.
func (b pgBatch) ClaimUnpublished(ctx context.Context, limit int) ([]appointment.EventLog, error) {
	rows, err := b.q.Query(ctx, `
		SELECT id, event_type, appointment_id, payload, created_at
		FROM event_logs
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim event logs: %w", err)
	}
	defer rows.Close()

	var out []appointment.EventLog
	for rows.Next() {
		var ev appointment.EventLog
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event log: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (b pgBatch) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	_, err := b.q.Exec(ctx, `UPDATE event_logs SET published_at = $2 WHERE id = ANY($1)`, ids, at)
	if err != nil {
		return fmt.Errorf("mark event logs published: %w", err)
	}
	return nil
}
