package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/domainerr"
)

type PgRepository struct {
	q db.Querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{q: pool}
}

// PgUnitOfWork binds a PgRepository to one transaction per call.
type PgUnitOfWork struct {
	pool *pgxpool.Pool
}

func NewPgUnitOfWork(pool *pgxpool.Pool) *PgUnitOfWork {
	return &PgUnitOfWork{pool: pool}
}

func (u *PgUnitOfWork) WithinPartitions(ctx context.Context, keys []string, fn func(ctx context.Context, repo Repository) error) error {
	return db.WithinTx(ctx, u.pool, keys, func(tx pgx.Tx) error {
		return fn(ctx, &PgRepository{q: tx})
	})
}

const appointmentColumns = `
	id, patient_id, clinician_id, department_id, appointment_date, start_minute,
	duration_minutes, status, type, priority, chief_complaint, notes, scheduled_by,
	rescheduling, cancellation, version, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a            Appointment
		day          time.Time
		startMinute  int
		rescheduling []byte
		cancellation []byte
	)

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ClinicianID,
		&a.DepartmentID,
		&day,
		&startMinute,
		&a.DurationMinutes,
		&a.Status,
		&a.Type,
		&a.Priority,
		&a.ChiefComplaint,
		&a.Notes,
		&a.ScheduledBy,
		&rescheduling,
		&cancellation,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = clock.DateOf(day)
	a.StartTime = clock.TimeOfDay(startMinute)

	if len(rescheduling) > 0 {
		a.Rescheduling = &Rescheduling{}
		if err := json.Unmarshal(rescheduling, a.Rescheduling); err != nil {
			return nil, fmt.Errorf("decode rescheduling: %w", err)
		}
	}
	if len(cancellation) > 0 {
		a.Cancellation = &Cancellation{}
		if err := json.Unmarshal(cancellation, a.Cancellation); err != nil {
			return nil, fmt.Errorf("decode cancellation: %w", err)
		}
	}

	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func jsonOrNil(v any, isNil bool) ([]byte, error) {
	if isNil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindCommittedAppointments(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinician_id = $1
		  AND appointment_date = $2
		  AND status = ANY($3)
		ORDER BY start_minute
	`, clinicianID, date.In(time.UTC), statusStrings(CommittedStatuses))
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListByClinicianAndDate(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinician_id = $1
		  AND appointment_date = $2
		ORDER BY start_minute, created_at
	`, clinicianID, date.In(time.UTC))
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	rescheduling, err := jsonOrNil(a.Rescheduling, a.Rescheduling == nil)
	if err != nil {
		return err
	}
	cancellation, err := jsonOrNil(a.Cancellation, a.Cancellation == nil)
	if err != nil {
		return err
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		a.ID, a.PatientID, a.ClinicianID, a.DepartmentID, a.Date.In(time.UTC), int(a.StartTime),
		a.DurationMinutes, a.Status, a.Type, a.Priority, a.ChiefComplaint, a.Notes, a.ScheduledBy,
		rescheduling, cancellation, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// UpdateAppointment writes a only if the stored version still matches, then
// bumps a.Version.
func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment) error {
	rescheduling, err := jsonOrNil(a.Rescheduling, a.Rescheduling == nil)
	if err != nil {
		return err
	}
	cancellation, err := jsonOrNil(a.Cancellation, a.Cancellation == nil)
	if err != nil {
		return err
	}

	tag, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET appointment_date = $3,
		    start_minute = $4,
		    duration_minutes = $5,
		    status = $6,
		    rescheduling = $7,
		    cancellation = $8,
		    notes = $9,
		    updated_at = $10,
		    version = version + 1
		WHERE id = $1
		  AND version = $2
	`,
		a.ID, a.Version, a.Date.In(time.UTC), int(a.StartTime), a.DurationMinutes, a.Status,
		rescheduling, cancellation, a.Notes, a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainerr.ErrConflictOnWrite
	}

	a.Version++
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func statusStrings(statuses []AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
