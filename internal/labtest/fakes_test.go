package labtest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/domainerr"
	"github.com/hackgods/clinic-scheduling/internal/resource"
)

type memStore struct {
	mu     sync.Mutex
	tests  map[uuid.UUID]LabTest
	seq    int64
	locked [][]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{tests: map[uuid.UUID]LabTest{}}
}

// seedActive gives technician n active tests.
func (m *memStore) seedActive(technician uuid.UUID, n int) {
	for i := 0; i < n; i++ {
		id := uuid.New()
		tech := technician
		m.tests[id] = LabTest{ID: id, TechnicianID: &tech, Status: StatusAssigned, Version: 1}
	}
}

func (m *memStore) activeCounts() map[uuid.UUID]int {
	out := map[uuid.UUID]int{}
	for _, lt := range m.tests {
		if lt.TechnicianID != nil && lt.Status.Active() {
			out[*lt.TechnicianID]++
		}
	}
	return out
}

type memRepo struct{ s *memStore }

func (r memRepo) GetByID(_ context.Context, id uuid.UUID) (*LabTest, error) {
	lt, ok := r.s.tests[id]
	if !ok {
		return nil, ErrLabTestNotFound
	}
	return &lt, nil
}

func (r memRepo) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]LabTest, error) {
	var out []LabTest
	for _, lt := range r.s.tests {
		if lt.AppointmentID == appointmentID {
			out = append(out, lt)
		}
	}
	return out, nil
}

func (r memRepo) Insert(_ context.Context, lt *LabTest) error {
	r.s.tests[lt.ID] = *lt
	return nil
}

func (r memRepo) Update(_ context.Context, lt *LabTest) error {
	stored, ok := r.s.tests[lt.ID]
	if !ok || stored.Version != lt.Version {
		return domainerr.ErrConflictOnWrite
	}
	lt.Version++
	r.s.tests[lt.ID] = *lt
	return nil
}

func (r memRepo) NextSequence(context.Context) (int64, error) {
	r.s.seq++
	return r.s.seq, nil
}

func (r memRepo) LockTechnicians(_ context.Context, ids []uuid.UUID) error {
	r.s.locked = append(r.s.locked, slices.Clone(ids))
	return nil
}

func (r memRepo) CountActive(_ context.Context, technicianID uuid.UUID) (int, error) {
	return r.s.activeCounts()[technicianID], nil
}

func (r memRepo) TechnicianStats(_ context.Context, ids []uuid.UUID, dayStart, dayEnd time.Time) (map[uuid.UUID]Stats, error) {
	out := map[uuid.UUID]Stats{}
	for _, lt := range r.s.tests {
		if lt.TechnicianID == nil || !slices.Contains(ids, *lt.TechnicianID) {
			continue
		}
		st := out[*lt.TechnicianID]
		st.TotalAssigned++
		if lt.Status.Active() {
			st.Active++
		}
		if lt.CompletedAt != nil && !lt.CompletedAt.Before(dayStart) && lt.CompletedAt.Before(dayEnd) {
			st.CompletedToday++
		}
		out[*lt.TechnicianID] = st
	}
	return out, nil
}

// lockedRepo serialises reads made outside a unit of work.
type lockedRepo struct{ memRepo }

func (r lockedRepo) GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.memRepo.GetByID(ctx, id)
}

func (r lockedRepo) ListByAppointment(ctx context.Context, id uuid.UUID) ([]LabTest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.memRepo.ListByAppointment(ctx, id)
}

func (r lockedRepo) TechnicianStats(ctx context.Context, ids []uuid.UUID, dayStart, dayEnd time.Time) (map[uuid.UUID]Stats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.memRepo.TechnicianStats(ctx, ids, dayStart, dayEnd)
}

type memUnitOfWork struct{ s *memStore }

func (u memUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	snapshot := make(map[uuid.UUID]LabTest, len(u.s.tests))
	for k, v := range u.s.tests {
		snapshot[k] = v
	}
	seq := u.s.seq

	if err := fn(ctx, memRepo{s: u.s}); err != nil {
		u.s.tests = snapshot
		u.s.seq = seq
		return err
	}
	return nil
}

type stubAppointments map[uuid.UUID]appointment.Appointment

func (s stubAppointments) GetAppointmentByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := s[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

type stubDirectory struct {
	resources map[uuid.UUID]resource.Resource
}

func (d *stubDirectory) add(name string, role resource.Role, dept *uuid.UUID) uuid.UUID {
	id := uuid.New()
	d.resources[id] = resource.Resource{ID: id, Name: name, Role: role, Active: true, DepartmentID: dept}
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
		if r.Role != role || !r.Active {
			continue
		}
		if departmentID != nil && (r.DepartmentID == nil || *r.DepartmentID != *departmentID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

type harness struct {
	svc          *Service
	store        *memStore
	dir          *stubDirectory
	appointments stubAppointments
	lab          uuid.UUID
	clinician    uuid.UUID
	appt         uuid.UUID
}

func newHarness() *harness {
	store := newMemStore()
	dir := &stubDirectory{resources: map[uuid.UUID]resource.Resource{}}
	lab := uuid.New()
	clinician := dir.add("Dr D", resource.RoleClinician, nil)
	apptID := uuid.New()
	appts := stubAppointments{
		apptID: {ID: apptID, PatientID: uuid.New(), ClinicianID: clinician, DepartmentID: &lab, Status: appointment.StatusInProgress},
	}

	cfg := config.Config{Location: time.UTC}
	h := &harness{
		store:        store,
		dir:          dir,
		appointments: appts,
		lab:          lab,
		clinician:    clinician,
		appt:         apptID,
	}
	h.svc = NewService(lockedRepo{memRepo{s: store}}, memUnitOfWork{s: store}, appts, dir, cfg,
		clock.Clock(fixedClock{t: testNow}), zerolog.Nop())
	return h
}

func (h *harness) request(techID *uuid.UUID) (*Outcome, error) {
	return h.svc.Request(context.Background(), RequestInput{
		AppointmentID: h.appt,
		OrderedBy:     h.clinician,
		TechnicianID:  techID,
		TestName:      "Complete Blood Count",
		TestType:      TypeHematology,
	})
}
