package appointment

import (
	"errors"
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/domainerr"
)

var (
	ErrSchedulingConflict = errors.New("clinician is not available at the selected time")
	ErrInvalidDuration    = errors.New("invalid appointment duration")
	ErrInvalidTime        = errors.New("invalid appointment time")
	ErrInvalidStatus      = errors.New("invalid appointment status")
	ErrInvalidPriority    = errors.New("invalid appointment priority")
)

// SchedulingConflictError carries the committed appointment that blocks a booking.
type SchedulingConflictError struct {
	Conflicting *Appointment
}

func (e *SchedulingConflictError) Error() string {
	if e.Conflicting == nil {
		return ErrSchedulingConflict.Error()
	}
	return fmt.Sprintf("%s: overlaps appointment %s at %s-%s",
		ErrSchedulingConflict, e.Conflicting.ID, e.Conflicting.StartTime, e.Conflicting.EndTime())
}

func (e *SchedulingConflictError) Unwrap() error { return ErrSchedulingConflict }

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
// Terminal statuses have no outgoing edges.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to AppointmentStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if !CanTransition(from, to) {
		return &domainerr.InvalidTransitionError{
			Entity:  "appointment",
			Current: string(from),
			Target:  string(to),
		}
	}
	return nil
}
