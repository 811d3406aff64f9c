package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/clock"
)

var ErrInvalidSlotWindow = errors.New("invalid slot window")

// SlotOptions shapes the working day enumerated by the slot generator.
type SlotOptions struct {
	SlotMinutes int
	WindowStart clock.TimeOfDay
	WindowEnd   clock.TimeOfDay
}

func DefaultSlotOptions() SlotOptions {
	return SlotOptions{
		SlotMinutes: 30,
		WindowStart: clock.MustTimeOfDay(9, 0),
		WindowEnd:   clock.MustTimeOfDay(17, 0),
	}
}

func (o SlotOptions) validate() error {
	if o.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot size %d", ErrInvalidSlotWindow, o.SlotMinutes)
	}
	if !o.WindowStart.Valid() || o.WindowEnd > clock.MinutesPerDay || o.WindowEnd <= o.WindowStart {
		return fmt.Errorf("%w: %s-%s", ErrInvalidSlotWindow, o.WindowStart, o.WindowEnd)
	}
	return nil
}

// SlotGenerator produces a clinician's availability for one day from the
// committed appointments read at call time.
type SlotGenerator struct {
	finder   CommittedFinder
	defaults SlotOptions
}

func NewSlotGenerator(finder CommittedFinder, defaults SlotOptions) *SlotGenerator {
	return &SlotGenerator{finder: finder, defaults: defaults}
}

// AvailableSlots lists every slot in the window in time order. Zero fields of
// opts fall back to the generator's defaults.
func (g *SlotGenerator) AvailableSlots(ctx context.Context, clinicianID uuid.UUID, date clock.Date, opts SlotOptions) ([]Slot, error) {
	if opts.SlotMinutes == 0 {
		opts.SlotMinutes = g.defaults.SlotMinutes
	}
	if opts.WindowStart == 0 && opts.WindowEnd == 0 {
		opts.WindowStart, opts.WindowEnd = g.defaults.WindowStart, g.defaults.WindowEnd
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	existing, err := g.finder.FindCommittedAppointments(ctx, clinicianID, date)
	if err != nil {
		return nil, fmt.Errorf("load committed appointments: %w", err)
	}

	starts := clock.EnumerateSlots(opts.WindowStart, opts.WindowEnd, opts.SlotMinutes)
	slots := make([]Slot, 0, len(starts))
	for _, start := range starts {
		candidate := clock.Interval{Start: start, Minutes: opts.SlotMinutes}
		slots = append(slots, Slot{
			Time:      start,
			Label:     start.Format12Hour(),
			Available: FindConflict(existing, candidate, nil) == nil,
		})
	}
	return slots, nil
}
