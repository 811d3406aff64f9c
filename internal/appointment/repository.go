package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/clock"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks
	FindCommittedAppointments(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]Appointment, error)

	// Creation and updates. UpdateAppointment compares on Version and returns
	// domainerr.ErrConflictOnWrite when the row moved underneath the caller.
	InsertAppointment(ctx context.Context, a *Appointment) error
	UpdateAppointment(ctx context.Context, a *Appointment) error

	// Read side
	ListByClinicianAndDate(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]Appointment, error)

	// Outbox
	InsertEvent(ctx context.Context, ev EventLog) error
}

// UnitOfWork runs fn against a Repository bound to one transaction that holds
// an exclusive lock on every partition key. Nothing fn writes is visible
// unless fn returns nil.
type UnitOfWork interface {
	WithinPartitions(ctx context.Context, keys []string, fn func(ctx context.Context, repo Repository) error) error
}

// PartitionKey names the (clinician, date) partition guarded during booking.
func PartitionKey(clinicianID uuid.UUID, date clock.Date) string {
	return fmt.Sprintf("clinician:%s:%s", clinicianID, date)
}
