package api

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/labtest"
)

var errUnexpected = errors.New("unexpected call")

type stubAppointments struct {
	create     func(ctx context.Context, in appointment.CreateInput) (*appointment.Result, error)
	reschedule func(ctx context.Context, id uuid.UUID, in appointment.RescheduleInput) (*appointment.Result, error)
	advance    func(ctx context.Context, id uuid.UUID, target appointment.AppointmentStatus, actor uuid.UUID) (*appointment.Result, error)
	cancel     func(ctx context.Context, id, actor uuid.UUID, reason string) (*appointment.Result, error)
	get        func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	list       func(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]appointment.Appointment, error)
	slots      func(ctx context.Context, clinicianID uuid.UUID, date clock.Date, opts appointment.SlotOptions) ([]appointment.Slot, error)
	conflict   func(ctx context.Context, q appointment.ConflictQuery) (bool, *appointment.Appointment, error)
}

func (s *stubAppointments) CreateAppointment(ctx context.Context, in appointment.CreateInput) (*appointment.Result, error) {
	if s.create == nil {
		return nil, errUnexpected
	}
	return s.create(ctx, in)
}

func (s *stubAppointments) RescheduleAppointment(ctx context.Context, id uuid.UUID, in appointment.RescheduleInput) (*appointment.Result, error) {
	if s.reschedule == nil {
		return nil, errUnexpected
	}
	return s.reschedule(ctx, id, in)
}

func (s *stubAppointments) AdvanceStatus(ctx context.Context, id uuid.UUID, target appointment.AppointmentStatus, actor uuid.UUID) (*appointment.Result, error) {
	if s.advance == nil {
		return nil, errUnexpected
	}
	return s.advance(ctx, id, target, actor)
}

func (s *stubAppointments) CancelAppointment(ctx context.Context, id, actor uuid.UUID, reason string) (*appointment.Result, error) {
	if s.cancel == nil {
		return nil, errUnexpected
	}
	return s.cancel(ctx, id, actor, reason)
}

func (s *stubAppointments) GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if s.get == nil {
		return nil, errUnexpected
	}
	return s.get(ctx, id)
}

func (s *stubAppointments) ListForClinicianDay(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]appointment.Appointment, error) {
	if s.list == nil {
		return nil, errUnexpected
	}
	return s.list(ctx, clinicianID, date)
}

func (s *stubAppointments) AvailableSlots(ctx context.Context, clinicianID uuid.UUID, date clock.Date, opts appointment.SlotOptions) ([]appointment.Slot, error) {
	if s.slots == nil {
		return nil, errUnexpected
	}
	return s.slots(ctx, clinicianID, date, opts)
}

func (s *stubAppointments) HasConflict(ctx context.Context, q appointment.ConflictQuery) (bool, *appointment.Appointment, error) {
	if s.conflict == nil {
		return false, nil, errUnexpected
	}
	return s.conflict(ctx, q)
}

type stubLabs struct {
	request    func(ctx context.Context, in labtest.RequestInput) (*labtest.Outcome, error)
	assign     func(ctx context.Context, id, technicianID uuid.UUID) (*labtest.LabTest, error)
	autoAssign func(ctx context.Context, id uuid.UUID) (*labtest.LabTest, error)
	start      func(ctx context.Context, id, actor uuid.UUID) (*labtest.LabTest, error)
	complete   func(ctx context.Context, id, actor uuid.UUID, results labtest.Results) (*labtest.LabTest, error)
	review     func(ctx context.Context, id, actor uuid.UUID, comments, actionTaken string) (*labtest.LabTest, error)
	cancel     func(ctx context.Context, id, actor uuid.UUID, reason string) (*labtest.LabTest, error)
	get        func(ctx context.Context, id uuid.UUID) (*labtest.LabTest, error)
	list       func(ctx context.Context, appointmentID uuid.UUID) ([]labtest.LabTest, error)
	workload   func(ctx context.Context, departmentID *uuid.UUID) ([]labtest.Workload, error)
}

func (s *stubLabs) Request(ctx context.Context, in labtest.RequestInput) (*labtest.Outcome, error) {
	if s.request == nil {
		return nil, errUnexpected
	}
	return s.request(ctx, in)
}

func (s *stubLabs) Assign(ctx context.Context, id, technicianID uuid.UUID) (*labtest.LabTest, error) {
	if s.assign == nil {
		return nil, errUnexpected
	}
	return s.assign(ctx, id, technicianID)
}

func (s *stubLabs) AutoAssign(ctx context.Context, id uuid.UUID) (*labtest.LabTest, error) {
	if s.autoAssign == nil {
		return nil, errUnexpected
	}
	return s.autoAssign(ctx, id)
}

func (s *stubLabs) Start(ctx context.Context, id, actor uuid.UUID) (*labtest.LabTest, error) {
	if s.start == nil {
		return nil, errUnexpected
	}
	return s.start(ctx, id, actor)
}

func (s *stubLabs) Complete(ctx context.Context, id, actor uuid.UUID, results labtest.Results) (*labtest.LabTest, error) {
	if s.complete == nil {
		return nil, errUnexpected
	}
	return s.complete(ctx, id, actor, results)
}

func (s *stubLabs) Review(ctx context.Context, id, actor uuid.UUID, comments, actionTaken string) (*labtest.LabTest, error) {
	if s.review == nil {
		return nil, errUnexpected
	}
	return s.review(ctx, id, actor, comments, actionTaken)
}

func (s *stubLabs) Cancel(ctx context.Context, id, actor uuid.UUID, reason string) (*labtest.LabTest, error) {
	if s.cancel == nil {
		return nil, errUnexpected
	}
	return s.cancel(ctx, id, actor, reason)
}

func (s *stubLabs) Get(ctx context.Context, id uuid.UUID) (*labtest.LabTest, error) {
	if s.get == nil {
		return nil, errUnexpected
	}
	return s.get(ctx, id)
}

func (s *stubLabs) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]labtest.LabTest, error) {
	if s.list == nil {
		return nil, errUnexpected
	}
	return s.list(ctx, appointmentID)
}

func (s *stubLabs) Workload(ctx context.Context, departmentID *uuid.UUID) ([]labtest.Workload, error) {
	if s.workload == nil {
		return nil, errUnexpected
	}
	return s.workload(ctx, departmentID)
}

type stubChecker struct{ err error }

func (c stubChecker) Ping(context.Context) error { return c.err }
