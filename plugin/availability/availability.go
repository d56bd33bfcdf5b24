// Package availability computes conflict-free slots from per-attendee
// busy intervals. All instants must be normalized to a single reference
// timezone before entering this package.
package availability

import (
	"sort"
	"time"
)

// Interval is a half-open [Start, End) busy range for one attendee.
type Interval struct {
	Start time.Time
	End   time.Time
}

// ConflictWindow is a candidate free slot, ranked chronologically
// (rank 1 is the earliest).
type ConflictWindow struct {
	Start time.Time
	End   time.Time
	Rank  int
}

// Duration returns the window length.
func (w ConflictWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// WorkingHours restricts the search to a daily mask.
type WorkingHours struct {
	// StartHour and EndHour bound each searched day, e.g. 9 and 18.
	StartHour int
	EndHour   int
	// SkipWeekends excludes Saturday and Sunday entirely.
	SkipWeekends bool
}

// DefaultWorkingHours is the 9AM-6PM mask used when none is configured.
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{StartHour: 9, EndHour: 18}
}

// FindFreeSlots unions all attendees' busy intervals and returns the free
// gaps of at least minDuration inside window, restricted to the
// working-hours mask. The result is chronological and non-overlapping;
// an empty result is a valid "no availability" outcome, not an error.
func FindFreeSlots(busyByAttendee map[string][]Interval, window Interval, minDuration time.Duration, hours WorkingHours) []ConflictWindow {
	if !window.End.After(window.Start) || minDuration <= 0 {
		return nil
	}

	var all []Interval
	for _, intervals := range busyByAttendee {
		all = append(all, mergeIntervals(intervals)...)
	}
	busy := mergeIntervals(all)

	var out []ConflictWindow
	for _, segment := range maskSegments(window, hours) {
		for _, gap := range subtract(segment, busy) {
			if gap.End.Sub(gap.Start) >= minDuration {
				out = append(out, ConflictWindow{Start: gap.Start, End: gap.End})
			}
		}
	}

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// mergeIntervals sorts intervals by start and coalesces overlaps and
// adjacencies into a disjoint ascending sequence.
func mergeIntervals(intervals []Interval) []Interval {
	valid := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.End.After(iv.Start) {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool { return valid[i].Start.Before(valid[j].Start) })

	merged := []Interval{valid[0]}
	for _, iv := range valid[1:] {
		last := &merged[len(merged)-1]
		if iv.Start.After(last.End) {
			merged = append(merged, iv)
			continue
		}
		if iv.End.After(last.End) {
			last.End = iv.End
		}
	}
	return merged
}

// maskSegments splits the search window into per-day working-hour
// segments, clamped to the window bounds.
func maskSegments(window Interval, hours WorkingHours) []Interval {
	if hours.StartHour >= hours.EndHour {
		return []Interval{window}
	}

	var segments []Interval
	loc := window.Start.Location()
	day := time.Date(window.Start.Year(), window.Start.Month(), window.Start.Day(), 0, 0, 0, 0, loc)

	for day.Before(window.End) {
		if hours.SkipWeekends && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
			day = day.AddDate(0, 0, 1)
			continue
		}

		seg := Interval{
			Start: day.Add(time.Duration(hours.StartHour) * time.Hour),
			End:   day.Add(time.Duration(hours.EndHour) * time.Hour),
		}
		if seg.Start.Before(window.Start) {
			seg.Start = window.Start
		}
		if seg.End.After(window.End) {
			seg.End = window.End
		}
		if seg.End.After(seg.Start) {
			segments = append(segments, seg)
		}
		day = day.AddDate(0, 0, 1)
	}
	return segments
}

// subtract removes the disjoint ascending busy intervals from segment and
// returns the remaining gaps in order.
func subtract(segment Interval, busy []Interval) []Interval {
	var gaps []Interval
	cursor := segment.Start

	for _, b := range busy {
		if !b.End.After(segment.Start) || !b.Start.Before(segment.End) {
			continue
		}
		if b.Start.After(cursor) {
			gaps = append(gaps, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}

	if cursor.Before(segment.End) {
		gaps = append(gaps, Interval{Start: cursor, End: segment.End})
	}
	return gaps
}
