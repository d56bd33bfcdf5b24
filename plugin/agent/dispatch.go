package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Kash6/SchedulingAgent/gateway"
	"github.com/Kash6/SchedulingAgent/internal/errors"
	"github.com/Kash6/SchedulingAgent/internal/timeout"
	"github.com/Kash6/SchedulingAgent/plugin/availability"
	"github.com/Kash6/SchedulingAgent/plugin/intent"
	"github.com/Kash6/SchedulingAgent/plugin/lexicon"
)

func (e *Engine) dispatch(ctx context.Context, sessionID string, in *intent.Intent, norm lexicon.NormalizedQuery) (*Response, error) {
	switch in.Action {
	case intent.ActionCreate:
		return e.handleCreate(ctx, sessionID, in)
	case intent.ActionReschedule:
		return e.handleReschedule(ctx, sessionID, in)
	case intent.ActionCancel:
		return e.handleCancel(ctx, sessionID, in)
	case intent.ActionListParticipants:
		return e.handleListParticipants(ctx, in)
	case intent.ActionFindFreeSlot:
		return e.handleFindFreeSlot(ctx, in)
	case intent.ActionListEvents:
		return e.handleListEvents(ctx)
	case intent.ActionSummarizePreference:
		return e.handleSummarizePreference(norm), nil
	default:
		return nil, errors.MissingRequiredSlot("action")
	}
}

func (e *Engine) handleCreate(ctx context.Context, sessionID string, in *intent.Intent) (*Response, error) {
	summary := in.Summary
	if summary == "" {
		summary = "Meeting"
	}
	req := gateway.CreateRequest{
		Summary:        summary,
		Start:          in.Time.At,
		End:            in.Time.At.Add(timeout.DefaultMeetingDuration),
		Attendees:      in.ResolvedAttendees(),
		WithConference: true,
	}

	var ev *gateway.Event
	err := e.withRetry(ctx, "create event", func(ctx context.Context) error {
		var err error
		ev, err = e.gateway.Create(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := e.memory.Record(ctx, sessionID, intent.ActionCreate, ev.ID, ev.Attendees); err != nil {
		e.logger.Warn("failed to record action", "session_id", sessionID, "event_id", ev.ID, "error", err)
	}

	msg := fmt.Sprintf("Scheduled %q on %s", ev.Summary, ev.Start.Format("Monday, Jan 2 at 3:04 PM"))
	if ev.MeetLink != "" {
		msg += " with Meet link " + ev.MeetLink
	}
	return &Response{Status: StatusCompleted, Action: in.Action, Message: msg, Data: ev}, nil
}

func (e *Engine) handleReschedule(ctx context.Context, sessionID string, in *intent.Intent) (*Response, error) {
	// The time slot on a reschedule is the target, so matching goes by
	// reference or attendees only.
	target, err := e.locateEvent(ctx, in, false)
	if err != nil {
		return nil, err
	}

	newStart := in.Time.At
	newEnd := newStart.Add(target.End.Sub(target.Start))

	var ev *gateway.Event
	err = e.withRetry(ctx, "reschedule event", func(ctx context.Context) error {
		var err error
		ev, err = e.gateway.Update(ctx, target.ID, newStart, newEnd)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := e.memory.Record(ctx, sessionID, intent.ActionReschedule, ev.ID, ev.Attendees); err != nil {
		e.logger.Warn("failed to record action", "session_id", sessionID, "event_id", ev.ID, "error", err)
	}

	msg := fmt.Sprintf("Moved %q to %s", ev.Summary, ev.Start.Format("Monday, Jan 2 at 3:04 PM"))
	return &Response{Status: StatusCompleted, Action: in.Action, Message: msg, Data: ev}, nil
}

func (e *Engine) handleCancel(ctx context.Context, sessionID string, in *intent.Intent) (*Response, error) {
	target, err := e.locateEvent(ctx, in, true)
	if err != nil {
		return nil, err
	}

	err = e.withRetry(ctx, "cancel event", func(ctx context.Context) error {
		return e.gateway.Delete(ctx, target.ID)
	})
	if err != nil {
		return nil, err
	}

	if err := e.memory.Record(ctx, sessionID, intent.ActionCancel, target.ID, target.Attendees); err != nil {
		e.logger.Warn("failed to record action", "session_id", sessionID, "event_id", target.ID, "error", err)
	}

	msg := fmt.Sprintf("Canceled %q on %s", target.Summary, target.Start.Format("Monday, Jan 2 at 3:04 PM"))
	return &Response{Status: StatusCompleted, Action: in.Action, Message: msg, Data: target}, nil
}

func (e *Engine) handleListParticipants(ctx context.Context, in *intent.Intent) (*Response, error) {
	target, err := e.locateEvent(ctx, in, true)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("%q has %d participant(s): %s",
		target.Summary, len(target.Attendees), strings.Join(target.Attendees, ", "))
	return &Response{Status: StatusCompleted, Action: in.Action, Message: msg, Data: target.Attendees}, nil
}

func (e *Engine) handleFindFreeSlot(ctx context.Context, in *intent.Intent) (*Response, error) {
	attendees := in.ResolvedAttendees()
	if len(e.users) > 0 {
		attendees = appendUnique(attendees, e.users[0])
	}
	if len(attendees) == 0 {
		return nil, errors.MissingRequiredSlot("attendee")
	}

	start := e.now()
	if in.Time != nil {
		start = in.Time.At
	}
	window := gateway.TimeWindow{Start: start, End: start.AddDate(0, 0, timeout.DefaultSearchDays)}

	bctx, cancel := context.WithTimeout(ctx, timeout.BusyFetchTimeout)
	defer cancel()
	busy, err := e.gateway.ListBusyIntervals(bctx, attendees, window)
	if err != nil {
		if bctx.Err() == context.DeadlineExceeded {
			return nil, errors.Timeout("busy interval fetch", err)
		}
		return nil, err
	}

	busyByAttendee := make(map[string][]availability.Interval, len(busy))
	for attendee, intervals := range busy {
		converted := make([]availability.Interval, 0, len(intervals))
		for _, iv := range intervals {
			converted = append(converted, availability.Interval{Start: iv.Start, End: iv.End})
		}
		busyByAttendee[attendee] = converted
	}

	slots := availability.FindFreeSlots(busyByAttendee,
		availability.Interval{Start: window.Start, End: window.End},
		timeout.DefaultMeetingDuration, e.hours)

	if len(slots) == 0 {
		return &Response{
			Status:  StatusCompleted,
			Action:  in.Action,
			Message: "No common availability in the next " + fmt.Sprintf("%d days", timeout.DefaultSearchDays),
			Data:    []availability.ConflictWindow{},
		}, nil
	}

	first := slots[0]
	msg := fmt.Sprintf("Found %d open slot(s); earliest is %s to %s",
		len(slots), first.Start.Format("Monday, Jan 2 at 3:04 PM"), first.End.Format("3:04 PM"))
	return &Response{Status: StatusCompleted, Action: in.Action, Message: msg, Data: slots}, nil
}

func (e *Engine) handleListEvents(ctx context.Context) (*Response, error) {
	window := gateway.TimeWindow{Start: e.now(), End: e.now().AddDate(0, 0, timeout.DefaultSearchDays)}

	var events []*gateway.Event
	err := e.withRetry(ctx, "list events", func(ctx context.Context) error {
		var err error
		events, err = e.gateway.ListEvents(ctx, e.users, window)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(events) == 0 {
		return &Response{Status: StatusCompleted, Action: intent.ActionListEvents, Message: "No upcoming events", Data: []*gateway.Event{}}, nil
	}
	msg := fmt.Sprintf("You have %d upcoming event(s)", len(events))
	return &Response{Status: StatusCompleted, Action: intent.ActionListEvents, Message: msg, Data: events}, nil
}

// preferenceSummaries maps coarse time-of-day mentions to a canned summary.
var preferenceSummaries = []struct {
	keyword string
	summary string
}{
	{"morning", "Prefers 9AM-12PM"},
	{"afternoon", "Prefers 1PM-5PM"},
}

func (e *Engine) handleSummarizePreference(norm lexicon.NormalizedQuery) *Response {
	for _, p := range preferenceSummaries {
		if strings.Contains(norm.Text, p.keyword) {
			return &Response{Status: StatusCompleted, Action: intent.ActionSummarizePreference, Message: p.summary, Data: p.summary}
		}
	}
	return &Response{
		Status:  StatusCompleted,
		Action:  intent.ActionSummarizePreference,
		Message: "No strong preference detected",
		Data:    "No strong preference detected",
	}
}

// locateEvent resolves the intent to exactly one calendar event. Explicit
// identifiers win; otherwise upcoming events are matched by attendee
// overlap and, when allowed, by start time. Zero matches and multiple
// matches are distinct failures so the caller can react differently.
func (e *Engine) locateEvent(ctx context.Context, in *intent.Intent, matchByTime bool) (*gateway.Event, error) {
	if in.EventRef.Kind == intent.RefExplicitID {
		var ev *gateway.Event
		err := e.withRetry(ctx, "get event", func(ctx context.Context) error {
			var err error
			ev, err = e.gateway.Get(ctx, in.EventRef.ID)
			return err
		})
		return ev, err
	}

	window := gateway.TimeWindow{Start: e.now(), End: e.now().AddDate(0, 0, timeout.DefaultSearchDays)}
	var events []*gateway.Event
	err := e.withRetry(ctx, "list events", func(ctx context.Context) error {
		var err error
		events, err = e.gateway.ListEvents(ctx, e.users, window)
		return err
	})
	if err != nil {
		return nil, err
	}

	wanted := in.ResolvedAttendees()
	var matches []*gateway.Event
	for _, ev := range events {
		if len(wanted) > 0 && !attendeeOverlap(ev.Attendees, wanted) {
			continue
		}
		if matchByTime && in.Time != nil && !ev.Start.Equal(in.Time.At) {
			continue
		}
		matches = append(matches, ev)
	}

	switch len(matches) {
	case 0:
		return nil, errors.NoMatchingEvent(describeCriteria(wanted, in, matchByTime))
	case 1:
		return matches[0], nil
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i].Start.Before(matches[j].Start) })
		candidates := make([]string, 0, len(matches))
		for _, ev := range matches {
			candidates = append(candidates, fmt.Sprintf("%q at %s", ev.Summary, ev.Start.Format("Mon Jan 2 3:04 PM")))
		}
		return nil, errors.AmbiguousMatch(candidates)
	}
}

func describeCriteria(wanted []string, in *intent.Intent, matchByTime bool) string {
	var parts []string
	if len(wanted) > 0 {
		parts = append(parts, "attendees "+strings.Join(wanted, ", "))
	}
	if matchByTime && in.Time != nil {
		parts = append(parts, "time "+in.Time.At.Format("Mon Jan 2 3:04 PM"))
	}
	if len(parts) == 0 {
		return "the given criteria"
	}
	return strings.Join(parts, " and ")
}

func attendeeOverlap(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if strings.EqualFold(x, v) {
			return s
		}
	}
	return append(s, v)
}

// withRetry runs a gateway call with a per-attempt deadline, retrying
// transient failures with exponential backoff. Rejections and not-found
// results are returned immediately.
func (e *Engine) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < timeout.GatewayMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := timeout.GatewayRetryDelay << (attempt - 1)
			e.logger.Debug("retrying gateway call", "op", op, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return errors.Timeout(op, ctx.Err())
			case <-time.After(delay):
			}
		}

		cctx, cancel := context.WithTimeout(ctx, timeout.GatewayCallTimeout)
		err := fn(cctx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.IsRetryable(err) {
			return err
		}
		e.logger.Warn("gateway call failed", "op", op, "attempt", attempt, "error", err)
	}
	return lastErr
}
