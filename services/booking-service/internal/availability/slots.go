package availability

import (
	"slices"
	"time"
)

// Interval is a half-open span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) shares any instant with iv. Touching
// endpoints do not overlap.
func (iv Interval) Overlaps(start, end time.Time) bool {
	return start.Before(iv.End) && iv.Start.Before(end)
}

// Bounds limits which slot starts may be offered. A zero value disables that side.
type Bounds struct {
	Earliest time.Time
	Latest   time.Time
}

// Allows reports whether a slot may start at t.
func (b Bounds) Allows(t time.Time) bool {
	if !b.Earliest.IsZero() && t.Before(b.Earliest) {
		return false
	}
	return b.Latest.IsZero() || !t.After(b.Latest)
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration fits entirely, starts inside bounds, and does not overlap any busy interval.
// busy may be unsorted and may contain overlapping intervals.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, bounds Bounds) []time.Time {
	if duration <= 0 || step <= 0 || !windowEnd.After(windowStart) {
		return nil
	}

	sorted := slices.Clone(busy)
	slices.SortFunc(sorted, func(a, b Interval) int { return a.End.Compare(b.End) })

	var slots []time.Time
	next := 0
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if !bounds.Latest.IsZero() && t.After(bounds.Latest) {
			break
		}
		if !bounds.Allows(t) {
			continue
		}
		// Intervals ending at or before t can never block this or any later candidate.
		for next < len(sorted) && !sorted[next].End.After(t) {
			next++
		}
		if !blocked(t, t.Add(duration), sorted[next:]) {
			slots = append(slots, t)
		}
	}
	return slots
}

func blocked(start, end time.Time, busy []Interval) bool {
	for _, iv := range busy {
		if iv.Overlaps(start, end) {
			return true
		}
	}
	return false
}
