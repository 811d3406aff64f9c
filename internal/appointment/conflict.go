package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/clock"
)

// CommittedFinder is the read the conflict detector needs.
type CommittedFinder interface {
	FindCommittedAppointments(ctx context.Context, clinicianID uuid.UUID, date clock.Date) ([]Appointment, error)
}

// ConflictQuery describes a candidate booking. Exclude is set when an
// appointment is being moved and must not collide with itself.
type ConflictQuery struct {
	ClinicianID     uuid.UUID
	Date            clock.Date
	Start           clock.TimeOfDay
	DurationMinutes int
	Exclude         *uuid.UUID
}

// ConflictDetector decides whether a candidate interval overlaps any committed
// appointment of the same clinician on the same day. It never writes.
type ConflictDetector struct {
	finder CommittedFinder
}

func NewConflictDetector(finder CommittedFinder) *ConflictDetector {
	return &ConflictDetector{finder: finder}
}

// HasConflict returns the first committed appointment overlapping q, if any.
func (d *ConflictDetector) HasConflict(ctx context.Context, q ConflictQuery) (bool, *Appointment, error) {
	existing, err := d.finder.FindCommittedAppointments(ctx, q.ClinicianID, q.Date)
	if err != nil {
		return false, nil, fmt.Errorf("load committed appointments: %w", err)
	}
	hit := FindConflict(existing, clock.Interval{Start: q.Start, Minutes: q.DurationMinutes}, q.Exclude)
	return hit != nil, hit, nil
}

// FindConflict scans existing for the first committed appointment overlapping
// candidate. Each existing appointment is measured with its own duration.
func FindConflict(existing []Appointment, candidate clock.Interval, exclude *uuid.UUID) *Appointment {
	for i := range existing {
		a := &existing[i]
		if !a.Status.Committed() {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if candidate.Overlaps(a.Interval()) {
			hit := *a
			return &hit
		}
	}
	return nil
}
