package labtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/domainerr"
)

type PgRepository struct {
	q db.Querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{q: pool}
}

type PgUnitOfWork struct {
	pool *pgxpool.Pool
}

func NewPgUnitOfWork(pool *pgxpool.Pool) *PgUnitOfWork {
	return &PgUnitOfWork{pool: pool}
}

func (u *PgUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return db.WithinTx(ctx, u.pool, nil, func(tx pgx.Tx) error {
		return fn(ctx, &PgRepository{q: tx})
	})
}

const labTestColumns = `
	id, code, appointment_id, patient_id, clinician_id, department_id, technician_id,
	test_name, test_type, priority, status, clinical_indication, special_instructions,
	requested_at, assigned_at, started_at, completed_at, results, review, cancellation,
	version, created_at, updated_at`

func scanLabTest(row pgx.Row) (*LabTest, error) {
	var (
		lt                            LabTest
		results, review, cancellation []byte
	)

	err := row.Scan(
		&lt.ID,
		&lt.Code,
		&lt.AppointmentID,
		&lt.PatientID,
		&lt.ClinicianID,
		&lt.DepartmentID,
		&lt.TechnicianID,
		&lt.TestName,
		&lt.TestType,
		&lt.Priority,
		&lt.Status,
		&lt.ClinicalIndication,
		&lt.SpecialInstructions,
		&lt.RequestedAt,
		&lt.AssignedAt,
		&lt.StartedAt,
		&lt.CompletedAt,
		&results,
		&review,
		&cancellation,
		&lt.Version,
		&lt.CreatedAt,
		&lt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLabTestNotFound
		}
		return nil, err
	}

	if len(results) > 0 {
		lt.Results = &Results{}
		if err := json.Unmarshal(results, lt.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
	}
	if len(review) > 0 {
		lt.Review = &Review{}
		if err := json.Unmarshal(review, lt.Review); err != nil {
			return nil, fmt.Errorf("decode review: %w", err)
		}
	}
	if len(cancellation) > 0 {
		lt.Cancellation = &Cancellation{}
		if err := json.Unmarshal(cancellation, lt.Cancellation); err != nil {
			return nil, fmt.Errorf("decode cancellation: %w", err)
		}
	}

	return &lt, nil
}

// documents encodes the optional JSON columns, leaving nil ones NULL.
func documents(lt *LabTest) (results, review, cancellation []byte, err error) {
	if lt.Results != nil {
		if results, err = json.Marshal(lt.Results); err != nil {
			return nil, nil, nil, err
		}
	}
	if lt.Review != nil {
		if review, err = json.Marshal(lt.Review); err != nil {
			return nil, nil, nil, err
		}
	}
	if lt.Cancellation != nil {
		if cancellation, err = json.Marshal(lt.Cancellation); err != nil {
			return nil, nil, nil, err
		}
	}
	return results, review, cancellation, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+labTestColumns+`
		FROM lab_tests
		WHERE id = $1
	`, id)
	return scanLabTest(row)
}

func (r *PgRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]LabTest, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+labTestColumns+`
		FROM lab_tests
		WHERE appointment_id = $1
		ORDER BY requested_at DESC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LabTest
	for rows.Next() {
		lt, err := scanLabTest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *lt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) Insert(ctx context.Context, lt *LabTest) error {
	results, review, cancellation, err := documents(lt)
	if err != nil {
		return err
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO lab_tests (`+labTestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`,
		lt.ID, lt.Code, lt.AppointmentID, lt.PatientID, lt.ClinicianID, lt.DepartmentID, lt.TechnicianID,
		lt.TestName, lt.TestType, lt.Priority, lt.Status, lt.ClinicalIndication, lt.SpecialInstructions,
		lt.RequestedAt, lt.AssignedAt, lt.StartedAt, lt.CompletedAt, results, review, cancellation,
		lt.Version, lt.CreatedAt, lt.UpdatedAt,
	)
	return err
}

func (r *PgRepository) Update(ctx context.Context, lt *LabTest) error {
	results, review, cancellation, err := documents(lt)
	if err != nil {
		return err
	}

	tag, err := r.q.Exec(ctx, `
		UPDATE lab_tests
		SET technician_id = $3,
		    status = $4,
		    assigned_at = $5,
		    started_at = $6,
		    completed_at = $7,
		    results = $8,
		    review = $9,
		    cancellation = $10,
		    updated_at = $11,
		    version = version + 1
		WHERE id = $1
		  AND version = $2
	`,
		lt.ID, lt.Version, lt.TechnicianID, lt.Status, lt.AssignedAt, lt.StartedAt, lt.CompletedAt,
		results, review, cancellation, lt.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainerr.ErrConflictOnWrite
	}

	lt.Version++
	return nil
}

func (r *PgRepository) NextSequence(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, `SELECT nextval('lab_test_code_seq')`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// LockTechnicians takes transaction-scoped advisory locks, so it must run
// inside WithinTx.
func (r *PgRepository) LockTechnicians(ctx context.Context, ids []uuid.UUID) error {
	tx, ok := r.q.(pgx.Tx)
	if !ok {
		return errors.New("lock technicians outside a transaction")
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "technician:" + id.String()
	}
	return db.LockKeys(ctx, tx, keys)
}

func (r *PgRepository) CountActive(ctx context.Context, technicianID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT count(*)
		FROM lab_tests
		WHERE technician_id = $1
		  AND status = ANY($2)
	`, technicianID, statusStrings(ActiveStatuses)).Scan(&n)
	return n, err
}

func (r *PgRepository) TechnicianStats(ctx context.Context, ids []uuid.UUID, dayStart, dayEnd time.Time) (map[uuid.UUID]Stats, error) {
	rows, err := r.q.Query(ctx, `
		SELECT technician_id,
		       count(*) FILTER (WHERE status = ANY($2)),
		       count(*),
		       count(*) FILTER (WHERE completed_at >= $3 AND completed_at < $4)
		FROM lab_tests
		WHERE technician_id = ANY($1::uuid[])
		GROUP BY technician_id
	`, uuidStrings(ids), statusStrings(ActiveStatuses), dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]Stats, len(ids))
	for rows.Next() {
		var (
			id uuid.UUID
			st Stats
		)
		if err := rows.Scan(&id, &st.Active, &st.TotalAssigned, &st.CompletedToday); err != nil {
			return nil, err
		}
		out[id] = st
	}
	return out, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
