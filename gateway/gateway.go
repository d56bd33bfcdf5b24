// Package gateway defines the narrow calendar collaborator interface the
// scheduling core calls through, plus the Google Calendar implementation.
package gateway

import (
	"context"
	"time"
)

// Event is the calendar-owned domain object. The core treats it as an
// opaque record and never mutates it directly.
type Event struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Attendees []string  `json:"attendees"`
	MeetLink  string    `json:"meet_link,omitempty"`
	// CalendarID is the calendar the event lives on.
	CalendarID string `json:"calendar_id,omitempty"`
}

// BusyInterval is a [Start, End) range during which an attendee's
// calendar shows them occupied.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TimeWindow bounds a listing or busy-interval query.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// CreateRequest carries everything needed to create an event.
type CreateRequest struct {
	Summary   string
	Start     time.Time
	End       time.Time
	Attendees []string
	// WithConference requests a generated conferencing link.
	WithConference bool
}

// CalendarGateway is the external calendar collaborator. Implementations
// must translate provider failures into the scheduling error codes:
// transient failures as GatewayUnavailable, permission or validation
// failures as GatewayRejected, unknown identifiers as NoMatchingEvent.
type CalendarGateway interface {
	// Create inserts a new event and returns it with its identifier and
	// conferencing link populated.
	Create(ctx context.Context, req CreateRequest) (*Event, error)

	// Update moves an existing event to a new start and end.
	Update(ctx context.Context, eventID string, newStart, newEnd time.Time) (*Event, error)

	// Delete removes an event.
	Delete(ctx context.Context, eventID string) error

	// Get fetches a single event by identifier.
	Get(ctx context.Context, eventID string) (*Event, error)

	// ListEvents returns events on the given calendars inside window,
	// ordered by start time.
	ListEvents(ctx context.Context, calendarIDs []string, window TimeWindow) ([]*Event, error)

	// ListBusyIntervals returns each attendee's busy ranges inside window.
	ListBusyIntervals(ctx context.Context, attendeeIDs []string, window TimeWindow) (map[string][]BusyInterval, error)
}
