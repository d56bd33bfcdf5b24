// Package intent defines the structured extraction result for a scheduling
// query and the pattern-rule extractor that produces it.
package intent

import "time"

// Action is the closed vocabulary of supported scheduling actions.
type Action string

const (
	// ActionCreate schedules a new meeting.
	ActionCreate Action = "create"
	// ActionReschedule moves an existing meeting to a new time.
	ActionReschedule Action = "reschedule"
	// ActionCancel deletes an existing meeting.
	ActionCancel Action = "cancel"
	// ActionListParticipants lists the attendees of a meeting.
	ActionListParticipants Action = "list_participants"
	// ActionFindFreeSlot searches for a conflict-free time slot.
	ActionFindFreeSlot Action = "find_free_slot"
	// ActionListEvents lists upcoming events.
	ActionListEvents Action = "list_events"
	// ActionSummarizePreference summarizes a coarse time-of-day preference.
	ActionSummarizePreference Action = "summarize_preference"
)

// RefKind discriminates how an intent refers to an existing event.
type RefKind int

const (
	// RefNone means no event reference is present.
	RefNone RefKind = iota
	// RefExplicitID means the query names a concrete event identifier.
	RefExplicitID
	// RefDeictic means the query refers to a prior action in the
	// conversation ("the meeting I just created").
	RefDeictic
)

// EventReference identifies an existing event, either explicitly or via a
// deictic marker bound later against the session history.
type EventReference struct {
	Kind RefKind
	// ID is the concrete event identifier when Kind is RefExplicitID, or
	// after a deictic reference has been resolved.
	ID string
	// PriorAction is the action kind the deictic marker implies
	// ("just created" binds to the most recent create).
	PriorAction Action
}

// Attendee is a single attendee mention. Unresolvable mentions are carried
// through with Resolved false rather than dropped; the engine decides
// whether the action can proceed with them.
type Attendee struct {
	// Email is the canonical identity when resolved, otherwise the raw mention.
	Email string
	// Raw is the original mention text.
	Raw string
	// Resolved reports whether Email is a canonical identity.
	Resolved bool
}

// TimeSpec is a resolved point in time or an open-ended search window.
// Absence and ambiguity are representable: a nil *TimeSpec on an Intent
// means no time expression was present.
type TimeSpec struct {
	// At is the resolved instant for point-in-time specs.
	At time.Time
	// Raw is the time expression as it appeared in the query.
	Raw string
}

// Intent is the structured, validated action request extracted from a
// query. Action is always present; every other field is optional.
type Intent struct {
	Action    Action
	Attendees []Attendee
	Time      *TimeSpec
	Summary   string
	EventRef  EventReference
}

// ResolvedAttendees returns the canonical identities of all resolved attendees.
func (i *Intent) ResolvedAttendees() []string {
	var out []string
	for _, a := range i.Attendees {
		if a.Resolved {
			out = append(out, a.Email)
		}
	}
	return out
}

// UnresolvedAttendees returns the raw mentions that did not resolve.
func (i *Intent) UnresolvedAttendees() []string {
	var out []string
	for _, a := range i.Attendees {
		if !a.Resolved {
			out = append(out, a.Raw)
		}
	}
	return out
}
