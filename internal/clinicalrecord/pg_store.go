package clinicalrecord

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/db"
)

type PgStore struct {
	q db.Querier
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{q: pool}
}

func (s *PgStore) Create(ctx context.Context, r *Record) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO medical_records (
			id, appointment_id, patient_id, clinician_id, department_id,
			record_type, record_date, chief_complaint, notes, status, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (appointment_id) DO NOTHING
	`,
		r.ID, r.AppointmentID, r.PatientID, r.ClinicianID, r.DepartmentID,
		r.RecordType, r.RecordDate, r.ChiefComplaint, r.Notes, r.Status, r.CreatedBy, r.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert medical record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
