package clock

// Interval is a half-open [Start, Start+Minutes) span within one day.
type Interval struct {
	Start   TimeOfDay
	Minutes int
}

func (i Interval) End() TimeOfDay { return i.Start.Add(i.Minutes) }

// Overlaps reports whether two intervals share any minute. Touching ends
// (one ending exactly when the other starts) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End() && i.End() > o.Start
}

// WithinDay reports whether the interval starts and ends on the same calendar day.
func (i Interval) WithinDay() bool {
	return i.Start.Valid() && i.Minutes > 0 && int(i.End()) <= MinutesPerDay
}

// EnumerateSlots lists every step-aligned start in [windowStart, windowEnd).
func EnumerateSlots(windowStart, windowEnd TimeOfDay, step int) []TimeOfDay {
	if step <= 0 || windowEnd <= windowStart {
		return nil
	}
	out := make([]TimeOfDay, 0, (int(windowEnd-windowStart)+step-1)/step)
	for t := windowStart; t < windowEnd; t = t.Add(step) {
		out = append(out, t)
	}
	return out
}
