package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	scherrors "github.com/Kash6/SchedulingAgent/internal/errors"
)

// FakeGateway is an in-memory CalendarGateway for tests and local
// development. It derives busy intervals from its stored events.
type FakeGateway struct {
	mu     sync.Mutex
	events map[string]*Event
	nextID int

	// Fail, when set, is returned by every call. Used to exercise
	// retry and failure paths.
	Fail error
	// Calls counts gateway invocations by method name.
	Calls map[string]int
}

// NewFakeGateway creates an empty fake.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		events: make(map[string]*Event),
		Calls:  make(map[string]int),
	}
}

// Seed inserts an event directly, bypassing failure injection.
func (f *FakeGateway) Seed(ev *Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[ev.ID] = ev
}

func (f *FakeGateway) begin(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[method]++
	return f.Fail
}

// Create implements CalendarGateway.
func (f *FakeGateway) Create(_ context.Context, req CreateRequest) (*Event, error) {
	if err := f.begin("Create"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ev := &Event{
		ID:        fmt.Sprintf("fake-ev-%d", f.nextID),
		Summary:   req.Summary,
		Start:     req.Start,
		End:       req.End,
		Attendees: append([]string(nil), req.Attendees...),
	}
	if req.WithConference {
		ev.MeetLink = fmt.Sprintf("https://meet.example.com/%s", ev.ID)
	}
	f.events[ev.ID] = ev
	return ev, nil
}

// Update implements CalendarGateway.
func (f *FakeGateway) Update(_ context.Context, eventID string, newStart, newEnd time.Time) (*Event, error) {
	if err := f.begin("Update"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[eventID]
	if !ok {
		return nil, scherrors.NoMatchingEvent(fmt.Sprintf("identifier %s", eventID))
	}
	ev.Start, ev.End = newStart, newEnd
	return ev, nil
}

// Delete implements CalendarGateway.
func (f *FakeGateway) Delete(_ context.Context, eventID string) error {
	if err := f.begin("Delete"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[eventID]; !ok {
		return scherrors.NoMatchingEvent(fmt.Sprintf("identifier %s", eventID))
	}
	delete(f.events, eventID)
	return nil
}

// Get implements CalendarGateway.
func (f *FakeGateway) Get(_ context.Context, eventID string) (*Event, error) {
	if err := f.begin("Get"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[eventID]
	if !ok {
		return nil, scherrors.NoMatchingEvent(fmt.Sprintf("identifier %s", eventID))
	}
	return ev, nil
}

// ListEvents implements CalendarGateway.
func (f *FakeGateway) ListEvents(_ context.Context, _ []string, window TimeWindow) ([]*Event, error) {
	if err := f.begin("ListEvents"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Event
	for _, ev := range f.events {
		if ev.Start.Before(window.End) && ev.End.After(window.Start) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// ListBusyIntervals implements CalendarGateway, deriving busy time from
// the stored events each attendee participates in.
func (f *FakeGateway) ListBusyIntervals(_ context.Context, attendeeIDs []string, window TimeWindow) (map[string][]BusyInterval, error) {
	if err := f.begin("ListBusyIntervals"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]BusyInterval, len(attendeeIDs))
	for _, attendee := range attendeeIDs {
		out[attendee] = nil
		for _, ev := range f.events {
			if !ev.Start.Before(window.End) || !ev.End.After(window.Start) {
				continue
			}
			for _, a := range ev.Attendees {
				if a == attendee {
					out[attendee] = append(out[attendee], BusyInterval{Start: ev.Start, End: ev.End})
					break
				}
			}
		}
		sort.Slice(out[attendee], func(i, j int) bool { return out[attendee][i].Start.Before(out[attendee][j].Start) })
	}
	return out, nil
}

var _ CalendarGateway = (*FakeGateway)(nil)
