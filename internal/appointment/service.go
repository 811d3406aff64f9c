package appointment

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
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/resource"
)

const (
	DefaultReason = "Not specified"
	DefaultType   = "consultation"
)

type Service struct {
	repo      Repository
	uow       UnitOfWork
	directory resource.Directory
	locker    redisclient.Locker
	detector  *ConflictDetector
	slots     *SlotGenerator
	cfg       config.Config
	clock     clock.Clock
	log       zerolog.Logger
}

func NewService(
	repo Repository,
	uow UnitOfWork,
	directory resource.Directory,
	locker redisclient.Locker,
	cfg config.Config,
	clk clock.Clock,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		uow:       uow,
		directory: directory,
		locker:    locker,
		detector:  NewConflictDetector(repo),
		slots: NewSlotGenerator(repo, SlotOptions{
			SlotMinutes: cfg.SlotMinutes,
			WindowStart: cfg.WorkdayStart,
			WindowEnd:   cfg.WorkdayEnd,
		}),
		cfg:   cfg,
		clock: clk,
		log:   log.With().Str("component", "appointment").Logger(),
	}
}

// CreateInput is a booking request. Time accepts "14:30" or "2:30 PM".
type CreateInput struct {
	PatientID       uuid.UUID
	ClinicianID     uuid.UUID
	DepartmentID    *uuid.UUID
	Date            clock.Date
	Time            string
	DurationMinutes int
	Type            string
	Priority        Priority
	ChiefComplaint  string
	Notes           string
	ScheduledBy     *uuid.UUID
}

// CreateAppointment books a clinician for a patient. The conflict check and
// the insert run inside one unit of work on the (clinician, date) partition.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (*Result, error) {
	clinician, err := resource.Lookup(ctx, s.directory, in.ClinicianID, resource.RoleClinician)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", clock.ErrInvalidDate)
	}

	interval, err := s.resolveInterval(in.Time, in.DurationMinutes)
	if err != nil {
		return nil, err
	}

	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	apptType := strings.TrimSpace(in.Type)
	if apptType == "" {
		apptType = DefaultType
	}

	department := in.DepartmentID
	if department == nil {
		department = clinician.DepartmentID
	}

	now := s.clock.Now()
	appt := &Appointment{
		ID:              uuid.New(),
		PatientID:       in.PatientID,
		ClinicianID:     in.ClinicianID,
		DepartmentID:    department,
		Date:            in.Date,
		StartTime:       interval.Start,
		DurationMinutes: interval.Minutes,
		Status:          StatusScheduled,
		Type:            apptType,
		Priority:        priority,
		ChiefComplaint:  in.ChiefComplaint,
		Notes:           in.Notes,
		ScheduledBy:     in.ScheduledBy,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	events := []Event{{
		Type: EventAppointmentScheduled,
		Payload: map[string]any{
			"patient_id":   appt.PatientID.String(),
			"clinician_id": appt.ClinicianID.String(),
			"date":         appt.Date.String(),
			"time":         appt.StartTime.String(),
			"duration":     appt.DurationMinutes,
		},
	}}

	keys := []string{PartitionKey(appt.ClinicianID, appt.Date)}
	err = s.atomically(ctx, keys, func(txCtx context.Context, repo Repository) error {
		existing, err := repo.FindCommittedAppointments(txCtx, appt.ClinicianID, appt.Date)
		if err != nil {
			return fmt.Errorf("load committed appointments: %w", err)
		}
		if hit := FindConflict(existing, appt.Interval(), nil); hit != nil {
			return &SchedulingConflictError{Conflicting: hit}
		}
		if err := repo.InsertAppointment(txCtx, appt); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		return writeEvents(txCtx, repo, appt.ID, now, events)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("clinician_id", appt.ClinicianID.String()).
		Str("date", appt.Date.String()).
		Str("time", appt.StartTime.String()).
		Msg("appointment scheduled")

	return &Result{Appointment: appt, Events: events}, nil
}

// RescheduleInput moves an appointment. Nil Date, empty Time and zero
// DurationMinutes keep the current value.
type RescheduleInput struct {
	Date            *clock.Date
	Time            string
	DurationMinutes int
	Reason          string
	Actor           uuid.UUID
}

// RescheduleAppointment applies a new interval to a non-terminal appointment.
// Status is unchanged. When the date moves both partitions are locked.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, in RescheduleInput) (*Result, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	newDate := current.Date
	if in.Date != nil && !in.Date.IsZero() {
		newDate = *in.Date
	}

	rawTime := in.Time
	if strings.TrimSpace(rawTime) == "" {
		rawTime = current.StartTime.String()
	}
	duration := in.DurationMinutes
	if duration == 0 {
		duration = current.DurationMinutes
	}
	interval, err := s.resolveInterval(rawTime, duration)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = DefaultReason
	}

	keys := []string{PartitionKey(current.ClinicianID, current.Date)}
	if newDate != current.Date {
		keys = append(keys, PartitionKey(current.ClinicianID, newDate))
	}

	var (
		result *Result
		now    = s.clock.Now()
	)
	err = s.atomically(ctx, keys, func(txCtx context.Context, repo Repository) error {
		appt, err := repo.GetAppointmentByID(txCtx, id)
		if err != nil {
			return err
		}
		// The row moved to another day after we picked the partitions.
		if appt.Date != current.Date || appt.ClinicianID != current.ClinicianID {
			return domainerr.ErrConflictOnWrite
		}
		if appt.Status.Terminal() {
			return &domainerr.InvalidTransitionError{
				Entity:  "appointment",
				Current: string(appt.Status),
				Target:  "rescheduled",
			}
		}

		dateChanged := newDate != appt.Date
		timeChanged := interval.Start != appt.StartTime
		if !dateChanged && !timeChanged && interval.Minutes == appt.DurationMinutes {
			result = &Result{Appointment: appt}
			return nil
		}

		existing, err := repo.FindCommittedAppointments(txCtx, appt.ClinicianID, newDate)
		if err != nil {
			return fmt.Errorf("load committed appointments: %w", err)
		}
		if hit := FindConflict(existing, interval, &appt.ID); hit != nil {
			return &SchedulingConflictError{Conflicting: hit}
		}

		if dateChanged || timeChanged {
			appt.Rescheduling = &Rescheduling{
				OriginalDate:  appt.Date,
				OriginalTime:  appt.StartTime,
				RescheduledBy: in.Actor,
				RescheduledAt: now,
				Reason:        reason,
			}
		}
		payload := map[string]any{
			"from_date": appt.Date.String(),
			"from_time": appt.StartTime.String(),
			"to_date":   newDate.String(),
			"to_time":   interval.Start.String(),
			"duration":  interval.Minutes,
			"reason":    reason,
			"actor":     in.Actor.String(),
		}

		appt.Date = newDate
		appt.StartTime = interval.Start
		appt.DurationMinutes = interval.Minutes
		appt.UpdatedAt = now

		if err := repo.UpdateAppointment(txCtx, appt); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}

		events := []Event{{Type: EventAppointmentRescheduled, Payload: payload}}
		if err := writeEvents(txCtx, repo, appt.ID, now, events); err != nil {
			return err
		}
		result = &Result{Appointment: appt, Events: events}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Events) > 0 {
		s.log.Info().
			Str("appointment_id", id.String()).
			Str("date", result.Appointment.Date.String()).
			Str("time", result.Appointment.StartTime.String()).
			Msg("appointment rescheduled")
	}
	return result, nil
}

// AdvanceStatus moves an appointment along the lifecycle. Asking for the
// status it already has returns it unchanged with no events.
func (s *Service) AdvanceStatus(ctx context.Context, id uuid.UUID, target AppointmentStatus, actor uuid.UUID) (*Result, error) {
	return s.transition(ctx, id, target, actor, "")
}

func (s *Service) ConfirmAppointment(ctx context.Context, id, actor uuid.UUID) (*Result, error) {
	return s.transition(ctx, id, StatusConfirmed, actor, "")
}

func (s *Service) StartAppointment(ctx context.Context, id, actor uuid.UUID) (*Result, error) {
	return s.transition(ctx, id, StatusInProgress, actor, "")
}

// CompleteAppointment requests the clinical record exactly once, on the edge
// into completed.
func (s *Service) CompleteAppointment(ctx context.Context, id, actor uuid.UUID) (*Result, error) {
	return s.transition(ctx, id, StatusCompleted, actor, "")
}

func (s *Service) MarkNoShow(ctx context.Context, id, actor uuid.UUID) (*Result, error) {
	return s.transition(ctx, id, StatusNoShow, actor, "")
}

// CancelAppointment records who cancelled and why. No conflict check runs.
func (s *Service) CancelAppointment(ctx context.Context, id, actor uuid.UUID, reason string) (*Result, error) {
	return s.transition(ctx, id, StatusCancelled, actor, reason)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target AppointmentStatus, actor uuid.UUID, reason string) (*Result, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	var (
		result *Result
		now    = s.clock.Now()
	)
	// Status changes never add a commitment, so no partition lock is needed;
	// the version compare-and-set catches concurrent writers.
	err := s.uow.WithinPartitions(ctx, nil, func(txCtx context.Context, repo Repository) error {
		appt, err := repo.GetAppointmentByID(txCtx, id)
		if err != nil {
			return err
		}
		if appt.Status == target {
			result = &Result{Appointment: appt}
			return nil
		}
		if err := checkTransition(appt.Status, target); err != nil {
			return err
		}

		var events []Event
		switch target {
		case StatusCompleted:
			events = append(events, Event{
				Type: EventClinicalRecordRequested,
				Payload: ClinicalRecordRequested{
					AppointmentID:  appt.ID,
					PatientID:      appt.PatientID,
					ClinicianID:    appt.ClinicianID,
					DepartmentID:   appt.DepartmentID,
					ChiefComplaint: appt.ChiefComplaint,
					Notes:          appt.Notes,
					CompletedBy:    actor,
					CompletedAt:    now,
				},
			})
		case StatusCancelled:
			r := strings.TrimSpace(reason)
			if r == "" {
				r = DefaultReason
			}
			appt.Cancellation = &Cancellation{CancelledBy: actor, CancelledAt: now, Reason: r}
			events = append(events, Event{
				Type: EventAppointmentCancelled,
				Payload: map[string]any{
					"previous_status": string(appt.Status),
					"reason":          r,
					"actor":           actor.String(),
				},
			})
		}

		from := appt.Status
		appt.Status = target
		appt.UpdatedAt = now
		if err := repo.UpdateAppointment(txCtx, appt); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		if err := writeEvents(txCtx, repo, appt.ID, now, events); err != nil {
			return err
		}

		s.log.Info().
			Str("appointment_id", appt.ID.String()).
			Str("from", string(from)).
			Str("to", string(target)).
			Msg("appointment status changed")

		result = &Result{Appointment: appt, Events: events}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListForClinicianDay returns every appointment of the clinician on date,
// including cancelled and completed ones, ordered by start time.
func (s *Service) ListForClinicianDay(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]Appointment, error) {
	appts, err := s.repo.ListByClinicianAndDate(ctx, clinicianID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) AvailableSlots(ctx context.Context, clinicianID uuid.UUID, date clock.Date, opts SlotOptions) ([]Slot, error) {
	if _, err := resource.Lookup(ctx, s.directory, clinicianID, resource.RoleClinician); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", clock.ErrInvalidDate)
	}
	return s.slots.AvailableSlots(ctx, clinicianID, date, opts)
}

// HasConflict applies the same duration bounds and single-day rule as a
// booking before asking the detector.
func (s *Service) HasConflict(ctx context.Context, q ConflictQuery) (bool, *Appointment, error) {
	if err := s.checkInterval(clock.Interval{Start: q.Start, Minutes: q.DurationMinutes}); err != nil {
		return false, nil, err
	}
	return s.detector.HasConflict(ctx, q)
}

// resolveInterval parses the start time and applies the duration default and
// bounds. Intervals that run past midnight are rejected.
func (s *Service) resolveInterval(raw string, duration int) (clock.Interval, error) {
	start, err := clock.ParseTimeOfDay(raw)
	if err != nil {
		return clock.Interval{}, fmt.Errorf("%w: %w", ErrInvalidTime, err)
	}
	if duration == 0 {
		duration = s.cfg.DefaultDuration
	}
	interval := clock.Interval{Start: start, Minutes: duration}
	if err := s.checkInterval(interval); err != nil {
		return clock.Interval{}, err
	}
	return interval, nil
}

func (s *Service) checkInterval(i clock.Interval) error {
	if i.Minutes < s.cfg.MinDurationMinutes || i.Minutes > s.cfg.MaxDurationMinutes {
		return fmt.Errorf("%w: %d minutes outside [%d, %d]",
			ErrInvalidDuration, i.Minutes, s.cfg.MinDurationMinutes, s.cfg.MaxDurationMinutes)
	}
	if !i.WithinDay() {
		return fmt.Errorf("%w: %s + %d minutes crosses midnight", ErrInvalidDuration, i.Start, i.Minutes)
	}
	return nil
}

// atomically holds the Redis partition locks across instances and runs fn in
// a transaction holding the same partitions.
func (s *Service) atomically(ctx context.Context, keys []string, fn func(ctx context.Context, repo Repository) error) error {
	err := s.locker.WithLock(ctx, keys, func(lockCtx context.Context) error {
		return s.uow.WithinPartitions(lockCtx, keys, fn)
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return fmt.Errorf("%w: %w", domainerr.ErrConflictOnWrite, err)
	}
	return err
}

func writeEvents(ctx context.Context, repo Repository, appointmentID uuid.UUID, at time.Time, events []Event) error {
	for _, ev := range events {
		row, err := ev.Log(appointmentID, at)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", ev.Type, err)
		}
		if err := repo.InsertEvent(ctx, row); err != nil {
			return fmt.Errorf("insert %s event: %w", ev.Type, err)
		}
	}
	return nil
}
