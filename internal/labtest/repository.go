package labtest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

var ErrLabTestNotFound = errors.New("lab test not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]LabTest, error)

	// Insert and Update. Update compares on Version and returns
	// domainerr.ErrConflictOnWrite when another writer got there first.
	Insert(ctx context.Context, lt *LabTest) error
	Update(ctx context.Context, lt *LabTest) error

	// NextSequence feeds the human test code.
	NextSequence(ctx context.Context) (int64, error)

	// Workload. LockTechnicians serialises assignment decisions that share a
	// technician until the surrounding transaction ends.
	LockTechnicians(ctx context.Context, ids []uuid.UUID) error
	CountActive(ctx context.Context, technicianID uuid.UUID) (int, error)
	TechnicianStats(ctx context.Context, ids []uuid.UUID, dayStart, dayEnd time.Time) (map[uuid.UUID]Stats, error)
}

// UnitOfWork runs fn against a Repository bound to one transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// AppointmentReader is the slice of the appointment store lab ordering needs.
type AppointmentReader interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}
