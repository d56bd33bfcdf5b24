package lexicon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Patterns for time expression detection and parsing.
var (
	clockPattern    = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	meridiemPattern = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	monthDayPattern = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
)

// weekdays maps lowercase day names to time.Weekday.
var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// months maps lowercase month names to time.Month.
var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// periodHours maps time-of-day words to their default hour.
var periodHours = map[string]int{
	"morning":   9,
	"noon":      12,
	"afternoon": 14,
	"evening":   19,
	"night":     20,
	"midnight":  0,
}

// relDateOffsets maps relative date words to day offsets from now.
var relDateOffsets = map[string]int{
	"today":    0,
	"tonight":  0,
	"tomorrow": 1,
}

// Scan orders for resolution. Maps iterate in random order, so an
// expression containing two day words would resolve nondeterministically
// without a fixed sequence. Longer period words come before their
// substrings ("afternoon" before "noon", "midnight" before "night").
var (
	relDateScan = []string{"today", "tomorrow", "tonight"}
	weekdayScan = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
	periodScan  = []string{"afternoon", "midnight", "morning", "evening", "noon", "night"}
)

// FindTimeExpression returns the time-related fragment of the normalized
// text, or "" when no time expression is syntactically present.
func FindTimeExpression(text string) string {
	var parts []string

	if m := monthDayPattern.FindString(text); m != "" {
		parts = append(parts, m)
	}
	for _, tok := range strings.Fields(text) {
		word := strings.Trim(tok, ".,!?;:")
		if _, ok := weekdays[word]; ok {
			parts = append(parts, word)
			continue
		}
		if _, ok := relDateOffsets[word]; ok {
			parts = append(parts, word)
			continue
		}
		if _, ok := periodHours[word]; ok {
			parts = append(parts, word)
		}
	}
	// Clock times only count when anchored by "at" or a meridiem suffix,
	// so bare numbers ("meet the 3 of us") are not mistaken for times.
	if m := meridiemPattern.FindString(text); m != "" {
		parts = append(parts, m)
	} else if m := regexp.MustCompile(`\bat\s+(\d{1,2}(?::\d{2})?)\b`).FindStringSubmatch(text); m != nil {
		parts = append(parts, m[1])
	}

	return strings.Join(parts, " ")
}

// ResolveTime resolves a time expression to a concrete instant anchored at
// now. It returns an error when the expression is time-like but cannot be
// mapped to a valid calendar instant.
func (l *Lexicon) ResolveTime(expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(strings.ToLower(expr))
	if expr == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}

	now = now.In(l.location)
	base := now
	dateFound := false

	// Explicit month + day resolves to the next occurrence of that date.
	if m := monthDayPattern.FindStringSubmatch(expr); m != nil {
		month := months[m[1]]
		day, _ := strconv.Atoi(m[2])
		candidate := time.Date(now.Year(), month, day, 0, 0, 0, 0, l.location)
		if candidate.Day() != day {
			return time.Time{}, fmt.Errorf("invalid day of month: %s", m[0])
		}
		if candidate.Before(now.Truncate(24 * time.Hour)) {
			candidate = candidate.AddDate(1, 0, 0)
		}
		base = candidate
		dateFound = true
	}

	if !dateFound {
		for _, word := range relDateScan {
			if strings.Contains(expr, word) {
				base = now.AddDate(0, 0, relDateOffsets[word])
				dateFound = true
				break
			}
		}
	}

	if !dateFound {
		for _, name := range weekdayScan {
			wd := weekdays[name]
			if strings.Contains(expr, name) {
				daysAhead := (int(wd) - int(now.Weekday()) + 7) % 7
				if daysAhead == 0 {
					daysAhead = 7
				}
				base = now.AddDate(0, 0, daysAhead)
				dateFound = true
				break
			}
		}
	}

	hour, minute, clockFound, err := parseClock(expr)
	if err != nil {
		return time.Time{}, err
	}

	if !clockFound {
		for _, word := range periodScan {
			if strings.Contains(expr, word) {
				hour, minute, clockFound = periodHours[word], 0, true
				break
			}
		}
	}

	switch {
	case clockFound:
		return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, l.location), nil
	case dateFound:
		// Date without a clock time defaults to 9:00.
		return time.Date(base.Year(), base.Month(), base.Day(), 9, 0, 0, 0, l.location), nil
	default:
		return time.Time{}, fmt.Errorf("unable to resolve time expression: %s", expr)
	}
}

// parseClock extracts an hour and minute from a clock-like fragment.
// A bare hour without a meridiem follows common meeting hours: 1-6
// defaults to PM, 7-11 stays AM.
func parseClock(expr string) (hour, minute int, found bool, err error) {
	m := clockPattern.FindStringSubmatch(expr)
	if m == nil {
		return 0, 0, false, nil
	}

	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	meridiem := m[3]

	if minute > 59 {
		return 0, 0, false, fmt.Errorf("invalid clock time: %s", strings.TrimSpace(m[0]))
	}

	switch meridiem {
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, false, fmt.Errorf("invalid clock time: %s", strings.TrimSpace(m[0]))
		}
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour < 1 || hour > 12 {
			return 0, 0, false, fmt.Errorf("invalid clock time: %s", strings.TrimSpace(m[0]))
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour > 23 {
			return 0, 0, false, fmt.Errorf("invalid clock time: %s", strings.TrimSpace(m[0]))
		}
		if hour >= 1 && hour <= 6 {
			hour += 12
		}
	}

	return hour, minute, true, nil
}
