package appointment

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/domainerr"
	"github.com/hackgods/clinic-scheduling/internal/resource"
)

// memStore is an in-memory Repository. The unit of work snapshots it and
// restores the snapshot when fn fails, so tests see all-or-nothing commits.
type memStore struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	events       []EventLog

	failInsertEvent error
}

func newMemStore() *memStore {
	return &memStore{
		patients:     map[uuid.UUID]Patient{},
		appointments: map[uuid.UUID]Appointment{},
	}
}

func (m *memStore) addPatient() uuid.UUID {
	id := uuid.New()
	m.patients[id] = Patient{ID: id, Name: "Test Patient"}
	return id
}

func (m *memStore) put(a Appointment) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	m.appointments[a.ID] = a
}

// repo is the Repository view used outside and inside the fake unit of work.
type memRepo struct{ s *memStore }

func (r memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := r.s.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r memRepo) FindCommittedAppointments(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]Appointment, error) {
	all, _ := r.ListByClinicianAndDate(ctx, clinicianID, date)
	var out []Appointment
	for _, a := range all {
		if a.Status.Committed() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memRepo) ListByClinicianAndDate(_ context.Context, clinicianID uuid.UUID, date clock.Date) ([]Appointment, error) {
	var out []Appointment
	for _, a := range r.s.appointments {
		if a.ClinicianID == clinicianID && a.Date == date {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b Appointment) int { return int(a.StartTime) - int(b.StartTime) })
	return out, nil
}

func (r memRepo) InsertAppointment(_ context.Context, a *Appointment) error {
	r.s.appointments[a.ID] = *a
	return nil
}

func (r memRepo) UpdateAppointment(_ context.Context, a *Appointment) error {
	stored, ok := r.s.appointments[a.ID]
	if !ok || stored.Version != a.Version {
		return domainerr.ErrConflictOnWrite
	}
	a.Version++
	r.s.appointments[a.ID] = *a
	return nil
}

func (r memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	if r.s.failInsertEvent != nil {
		return r.s.failInsertEvent
	}
	r.s.events = append(r.s.events, ev)
	return nil
}

// lockedRepo guards every call with the store mutex for use outside a unit of work.
type lockedRepo struct{ s *memStore }

func (r lockedRepo) with() (memRepo, func()) {
	r.s.mu.Lock()
	return memRepo{s: r.s}, r.s.mu.Unlock
}

func (r lockedRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	m, unlock := r.with()
	defer unlock()
	return m.GetPatientByID(ctx, id)
}

func (r lockedRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m, unlock := r.with()
	defer unlock()
	return m.GetAppointmentByID(ctx, id)
}

func (r lockedRepo) FindCommittedAppointments(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]Appointment, error) {
	m, unlock := r.with()
	defer unlock()
	return m.FindCommittedAppointments(ctx, clinicianID, date)
}

func (r lockedRepo) ListByClinicianAndDate(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]Appointment, error) {
	m, unlock := r.with()
	defer unlock()
	return m.ListByClinicianAndDate(ctx, clinicianID, date)
}

func (r lockedRepo) InsertAppointment(ctx context.Context, a *Appointment) error {
	m, unlock := r.with()
	defer unlock()
	return m.InsertAppointment(ctx, a)
}

func (r lockedRepo) UpdateAppointment(ctx context.Context, a *Appointment) error {
	m, unlock := r.with()
	defer unlock()
	return m.UpdateAppointment(ctx, a)
}

func (r lockedRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	m, unlock := r.with()
	defer unlock()
	return m.InsertEvent(ctx, ev)
}

type memUnitOfWork struct {
	s    *memStore
	keys [][]string
}

func (u *memUnitOfWork) WithinPartitions(ctx context.Context, keys []string, fn func(ctx context.Context, repo Repository) error) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	u.keys = append(u.keys, slices.Clone(keys))

	apptSnapshot := make(map[uuid.UUID]Appointment, len(u.s.appointments))
	for k, v := range u.s.appointments {
		apptSnapshot[k] = v
	}
	eventCount := len(u.s.events)

	if err := fn(ctx, memRepo{s: u.s}); err != nil {
		u.s.appointments = apptSnapshot
		u.s.events = u.s.events[:eventCount]
		return err
	}
	return nil
}

type passLocker struct {
	err error
}

func (l passLocker) WithLock(ctx context.Context, _ []string, fn func(ctx context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

type stubDirectory struct {
	resources map[uuid.UUID]resource.Resource
}

func (d *stubDirectory) add(role resource.Role, active bool, dept *uuid.UUID) uuid.UUID {
	id := uuid.New()
	d.resources[id] = resource.Resource{ID: id, Name: string(role), Role: role, Active: active, DepartmentID: dept}
	return id
}

func (d *stubDirectory) GetActiveResource(_ context.Context, id uuid.UUID) (*resource.Resource, error) {
	r, ok := d.resources[id]
	if !ok || !r.Active {
		return nil, resource.ErrResourceNotFound
	}
	return &r, nil
}

func (d *stubDirectory) ListActiveResources(_ context.Context, role resource.Role, departmentID *uuid.UUID) ([]resource.Resource, error) {
	var out []resource.Resource
	for _, r := range d.resources {
		if r.Role == role && r.Active && (departmentID == nil || (r.DepartmentID != nil && *r.DepartmentID == *departmentID)) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var errBoom = errors.New("boom")

func testConfig() config.Config {
	return config.Config{
		Env:                "test",
		SlotMinutes:        30,
		WorkdayStart:       clock.MustTimeOfDay(9, 0),
		WorkdayEnd:         clock.MustTimeOfDay(17, 0),
		MinDurationMinutes: 15,
		MaxDurationMinutes: 180,
		DefaultDuration:    30,
		Location:           time.UTC,
	}
}

type harness struct {
	svc       *Service
	store     *memStore
	uow       *memUnitOfWork
	dir       *stubDirectory
	clinician uuid.UUID
	patient   uuid.UUID
	dept      uuid.UUID
}

func newHarness() *harness {
	store := newMemStore()
	dir := &stubDirectory{resources: map[uuid.UUID]resource.Resource{}}
	dept := uuid.New()
	h := &harness{
		store:     store,
		uow:       &memUnitOfWork{s: store},
		dir:       dir,
		dept:      dept,
		clinician: dir.add(resource.RoleClinician, true, &dept),
		patient:   store.addPatient(),
	}
	h.svc = NewService(
		lockedRepo{s: store},
		h.uow,
		dir,
		passLocker{},
		testConfig(),
		fixedClock{t: time.Date(2024, 5, 30, 8, 0, 0, 0, time.UTC)},
		zerolog.Nop(),
	)
	return h
}
