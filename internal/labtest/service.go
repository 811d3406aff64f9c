package labtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/domainerr"
	"github.com/hackgods/clinic-scheduling/internal/resource"
)

var (
	ErrInvalidLabTest = errors.New("invalid lab test request")
	ErrNoDepartment   = errors.New("appointment has no department and no default lab department is configured")
)

const (
	DefaultCancelReason = "Not specified"
	UnassignedMessage   = "unassigned: no technician available"
)

var transitions = map[Status][]Status{
	StatusRequested:  {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusAssigned, StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {StatusReviewed},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &domainerr.InvalidTransitionError{
			Entity:  "lab_test",
			Current: string(from),
			Target:  string(to),
		}
	}
	return nil
}

type Service struct {
	repo         Repository
	uow          UnitOfWork
	appointments AppointmentReader
	directory    resource.Directory
	balancer     *Balancer
	cfg          config.Config
	clock        clock.Clock
	log          zerolog.Logger
}

func NewService(
	repo Repository,
	uow UnitOfWork,
	appointments AppointmentReader,
	directory resource.Directory,
	cfg config.Config,
	clk clock.Clock,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		uow:          uow,
		appointments: appointments,
		directory:    directory,
		balancer:     NewBalancer(directory),
		cfg:          cfg,
		clock:        clk,
		log:          log.With().Str("component", "labtest").Logger(),
	}
}

// RequestInput orders a test against an appointment. A nil TechnicianID
// asks the balancer to pick one.
type RequestInput struct {
	AppointmentID       uuid.UUID
	OrderedBy           uuid.UUID
	TechnicianID        *uuid.UUID
	TestName            string
	TestType            TestType
	Priority            Priority
	ClinicalIndication  string
	SpecialInstructions string
}

// Outcome reports where a new request ended up. An empty pool is not an
// error: the test stays requested and Assigned is false.
type Outcome struct {
	LabTest  *LabTest `json:"lab_test"`
	Assigned bool     `json:"assigned"`
	Message  string   `json:"message"`
}

func (s *Service) Request(ctx context.Context, in RequestInput) (*Outcome, error) {
	if _, err := resource.Lookup(ctx, s.directory, in.OrderedBy, resource.RoleClinician); err != nil {
		return nil, err
	}

	appt, err := s.appointments.GetAppointmentByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.ClinicianID != in.OrderedBy {
		return nil, &domainerr.NotPermittedError{ActorID: in.OrderedBy, Action: "order lab tests for appointment " + appt.ID.String()}
	}

	name := strings.TrimSpace(in.TestName)
	if name == "" {
		return nil, fmt.Errorf("%w: test name is required", ErrInvalidLabTest)
	}
	if !in.TestType.Valid() {
		return nil, fmt.Errorf("%w: test type %q", ErrInvalidLabTest, in.TestType)
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityRoutine
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: priority %q", ErrInvalidLabTest, priority)
	}

	department := appt.DepartmentID
	if department == nil {
		department = s.cfg.DefaultLabDepartment
	}
	if department == nil {
		return nil, ErrNoDepartment
	}

	var manual *resource.Resource
	if in.TechnicianID != nil {
		manual, err = resource.Lookup(ctx, s.directory, *in.TechnicianID, resource.RoleLabTechnician)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	lt := &LabTest{
		ID:                  uuid.New(),
		AppointmentID:       appt.ID,
		PatientID:           appt.PatientID,
		ClinicianID:         in.OrderedBy,
		DepartmentID:        *department,
		TestName:            name,
		TestType:            in.TestType,
		Priority:            priority,
		Status:              StatusRequested,
		ClinicalIndication:  in.ClinicalIndication,
		SpecialInstructions: in.SpecialInstructions,
		RequestedAt:         now,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	outcome := &Outcome{LabTest: lt, Message: UnassignedMessage}
	err = s.uow.WithinTx(ctx, func(txCtx context.Context, repo Repository) error {
		seq, err := repo.NextSequence(txCtx)
		if err != nil {
			return fmt.Errorf("next test code: %w", err)
		}
		lt.Code = FormatCode(now, seq)

		assignee := manual
		if assignee != nil {
			if err := repo.LockTechnicians(txCtx, []uuid.UUID{assignee.ID}); err != nil {
				return fmt.Errorf("lock technicians: %w", err)
			}
		} else {
			pick, err := s.balancer.Pick(txCtx, repo, &lt.DepartmentID)
			switch {
			case errors.Is(err, ErrNoAssigneeAvailable):
			case err != nil:
				return err
			default:
				assignee = &pick.Technician
			}
		}
		if assignee != nil {
			assign(lt, assignee.ID, now)
			outcome.Assigned = true
			outcome.Message = "assigned to " + assignee.Name
		}

		if err := repo.Insert(txCtx, lt); err != nil {
			return fmt.Errorf("insert lab test: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := s.log.Info().
		Str("lab_test_id", lt.ID.String()).
		Str("code", lt.Code).
		Str("status", string(lt.Status))
	if lt.TechnicianID != nil {
		ev = ev.Str("technician_id", lt.TechnicianID.String())
	}
	ev.Msg("lab test requested")

	return outcome, nil
}

// Assign hands a requested or already assigned test to a specific technician.
func (s *Service) Assign(ctx context.Context, id, technicianID uuid.UUID) (*LabTest, error) {
	tech, err := resource.Lookup(ctx, s.directory, technicianID, resource.RoleLabTechnician)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(txCtx context.Context, repo Repository, lt *LabTest, now time.Time) error {
		if err := checkTransition(lt.Status, StatusAssigned); err != nil {
			return err
		}
		// Both the new and the previous technician's workload change.
		affected := []uuid.UUID{tech.ID}
		if lt.TechnicianID != nil && *lt.TechnicianID != tech.ID {
			affected = append(affected, *lt.TechnicianID)
		}
		if err := repo.LockTechnicians(txCtx, affected); err != nil {
			return fmt.Errorf("lock technicians: %w", err)
		}
		assign(lt, tech.ID, now)
		return nil
	})
}

// AutoAssign runs the balancer for a requested test. An empty pool returns
// ErrNoAssigneeAvailable and leaves the test unchanged.
func (s *Service) AutoAssign(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return s.mutate(ctx, id, func(txCtx context.Context, repo Repository, lt *LabTest, now time.Time) error {
		if lt.Status != StatusRequested {
			return &domainerr.InvalidTransitionError{Entity: "lab_test", Current: string(lt.Status), Target: string(StatusAssigned)}
		}
		pick, err := s.balancer.Pick(txCtx, repo, &lt.DepartmentID)
		if err != nil {
			return err
		}
		assign(lt, pick.Technician.ID, now)
		return nil
	})
}

// Start may only be called by the assigned technician.
func (s *Service) Start(ctx context.Context, id, actor uuid.UUID) (*LabTest, error) {
	return s.mutate(ctx, id, func(_ context.Context, _ Repository, lt *LabTest, now time.Time) error {
		if err := checkTransition(lt.Status, StatusInProgress); err != nil {
			return err
		}
		if err := requireTechnician(lt, actor, "start"); err != nil {
			return err
		}
		lt.Status = StatusInProgress
		lt.StartedAt = &now
		return nil
	})
}

// Complete attaches results. Only the assigned technician may complete.
func (s *Service) Complete(ctx context.Context, id, actor uuid.UUID, results Results) (*LabTest, error) {
	return s.mutate(ctx, id, func(_ context.Context, _ Repository, lt *LabTest, now time.Time) error {
		if err := checkTransition(lt.Status, StatusCompleted); err != nil {
			return err
		}
		if err := requireTechnician(lt, actor, "complete"); err != nil {
			return err
		}
		if results.Values == nil {
			results.Values = []ResultValue{}
		}
		lt.Status = StatusCompleted
		lt.CompletedAt = &now
		lt.Results = &results
		return nil
	})
}

// Review closes a completed test. Only the ordering clinician may review.
func (s *Service) Review(ctx context.Context, id, actor uuid.UUID, comments, actionTaken string) (*LabTest, error) {
	return s.mutate(ctx, id, func(_ context.Context, _ Repository, lt *LabTest, now time.Time) error {
		if err := checkTransition(lt.Status, StatusReviewed); err != nil {
			return err
		}
		if lt.ClinicianID != actor {
			return &domainerr.NotPermittedError{ActorID: actor, Action: "review lab test " + lt.Code}
		}
		lt.Status = StatusReviewed
		lt.Review = &Review{ReviewedBy: actor, ReviewedAt: now, Comments: comments, ActionTaken: actionTaken}
		return nil
	})
}

// Cancel is allowed before work starts. The technician, if any, is kept.
func (s *Service) Cancel(ctx context.Context, id, actor uuid.UUID, reason string) (*LabTest, error) {
	return s.mutate(ctx, id, func(_ context.Context, _ Repository, lt *LabTest, now time.Time) error {
		if err := checkTransition(lt.Status, StatusCancelled); err != nil {
			return err
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = DefaultCancelReason
		}
		lt.Status = StatusCancelled
		lt.Cancellation = &Cancellation{CancelledBy: actor, CancelledAt: now, Reason: reason}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]LabTest, error) {
	tests, err := s.repo.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list lab tests: %w", err)
	}
	return tests, nil
}

// Workload lists active technicians, optionally limited to one department,
// with their current load. "Today" is the current day in the configured zone.
func (s *Service) Workload(ctx context.Context, departmentID *uuid.UUID) ([]Workload, error) {
	techs, err := s.directory.ListActiveResources(ctx, resource.RoleLabTechnician, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	if len(techs) == 0 {
		return []Workload{}, nil
	}

	ids := make([]uuid.UUID, len(techs))
	for i, t := range techs {
		ids[i] = t.ID
	}

	now := s.clock.Now()
	dayStart, dayEnd := clock.DateOf(now).Bounds(now.Location())
	stats, err := s.repo.TechnicianStats(ctx, ids, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("technician stats: %w", err)
	}

	out := make([]Workload, 0, len(techs))
	for _, t := range techs {
		st := stats[t.ID]
		out = append(out, Workload{
			TechnicianID:   t.ID,
			Name:           t.Name,
			DepartmentID:   t.DepartmentID,
			Active:         st.Active,
			TotalAssigned:  st.TotalAssigned,
			CompletedToday: st.CompletedToday,
		})
	}
	return out, nil
}

// mutate loads id inside a transaction, applies fn and saves with a version
// check.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, repo Repository, lt *LabTest, now time.Time) error) (*LabTest, error) {
	var out *LabTest
	err := s.uow.WithinTx(ctx, func(txCtx context.Context, repo Repository) error {
		lt, err := repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		from := lt.Status
		now := s.clock.Now()
		if err := fn(txCtx, repo, lt, now); err != nil {
			return err
		}
		lt.UpdatedAt = now
		if err := repo.Update(txCtx, lt); err != nil {
			return fmt.Errorf("update lab test: %w", err)
		}

		s.log.Info().
			Str("lab_test_id", lt.ID.String()).
			Str("from", string(from)).
			Str("to", string(lt.Status)).
			Msg("lab test updated")

		out = lt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func assign(lt *LabTest, technicianID uuid.UUID, now time.Time) {
	id := technicianID
	lt.TechnicianID = &id
	lt.Status = StatusAssigned
	lt.AssignedAt = &now
}

func requireTechnician(lt *LabTest, actor uuid.UUID, action string) error {
	if lt.TechnicianID == nil || *lt.TechnicianID != actor {
		return &domainerr.NotPermittedError{ActorID: actor, Action: action + " lab test " + lt.Code}
	}
	return nil
}
