package agent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kash6/SchedulingAgent/gateway"
	scherrors "github.com/Kash6/SchedulingAgent/internal/errors"
	"github.com/Kash6/SchedulingAgent/internal/timeout"
	"github.com/Kash6/SchedulingAgent/plugin/availability"
	"github.com/Kash6/SchedulingAgent/plugin/lexicon"
	"github.com/Kash6/SchedulingAgent/plugin/memory"
)

// fixedNow is a Wednesday morning.
var fixedNow = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

const (
	akash = "akashmehta556@gmail.com"
	odell = "odelllaxx@gmail.com"
	self  = "me@example.com"
)

type mockOracle struct {
	answers map[string]string
	err     error
}

func (m *mockOracle) Resolve(_ context.Context, field, text string, _ map[string]string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if v, ok := m.answers[field+"|"+text]; ok {
		return v, nil
	}
	return "", fmt.Errorf("no answer for %s %q", field, text)
}

func newTestEngine(t *testing.T, gw gateway.CalendarGateway, opts ...Option) *Engine {
	t.Helper()
	lex := lexicon.New()
	mem := memory.New(nil, memory.WithNow(func() time.Time { return fixedNow }))
	opts = append([]Option{
		WithNow(func() time.Time { return fixedNow }),
		WithUsers([]string{self}),
	}, opts...)
	return New(lex, mem, gw, opts...)
}

func TestHandleQuery_CreateWithMeetLink(t *testing.T) {
	gw := gateway.NewFakeGateway()
	eng := newTestEngine(t, gw)

	resp := eng.HandleQuery(context.Background(), "sess-1", "Schedule a meeting with odell at 2pm on saturday")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)

	ev, ok := resp.Data.(*gateway.Event)
	require.True(t, ok)
	assert.Equal(t, []string{odell}, ev.Attendees)
	assert.Equal(t, time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC), ev.End)
	assert.NotEmpty(t, ev.MeetLink)
	assert.Contains(t, resp.Message, ev.MeetLink)
}

func TestHandleQuery_DeicticCancel(t *testing.T) {
	gw := gateway.NewFakeGateway()
	eng := newTestEngine(t, gw)
	ctx := context.Background()

	created := eng.HandleQuery(ctx, "sess-1", "schedule a meeting with akash at 2pm on friday")
	require.Equal(t, StatusCompleted,created.Status, created.Message)

	resp := eng.HandleQuery(ctx, "sess-1", "cancel the meeting we just created")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)
	assert.Equal(t, 1, gw.Calls["Delete"])

	_, err := gw.Get(ctx, created.Data.(*gateway.Event).ID)
	assert.Equal(t, scherrors.CodeNoMatchingEvent, scherrors.CodeOf(err))
}

func TestHandleQuery_DeicticWithoutHistory(t *testing.T) {
	eng := newTestEngine(t, gateway.NewFakeGateway())

	resp := eng.HandleQuery(context.Background(), "sess-1", "cancel the meeting we just created")
	require.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, string(scherrors.CodeNoMatchingPriorEvent), resp.Reason)
	assert.NotEmpty(t, resp.Suggestion)
}

func TestHandleQuery_SessionIsolation(t *testing.T) {
	gw := gateway.NewFakeGateway()
	eng := newTestEngine(t, gw)
	ctx := context.Background()

	created := eng.HandleQuery(ctx, "sess-1", "schedule a meeting with akash at 2pm on friday")
	require.Equal(t, StatusCompleted,created.Status, created.Message)

	// Another session cannot see sess-1's history.
	resp := eng.HandleQuery(ctx, "sess-2", "cancel the meeting we just created")
	require.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, string(scherrors.CodeNoMatchingPriorEvent), resp.Reason)
}

func TestHandleQuery_MissingTime(t *testing.T) {
	eng := newTestEngine(t, gateway.NewFakeGateway())

	resp := eng.HandleQuery(context.Background(), "sess-1", "schedule a meeting with akash")
	require.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, string(scherrors.CodeMissingRequiredSlot), resp.Reason)
	assert.Contains(t, resp.Suggestion, "time")
}

func TestHandleQuery_UnresolvableTime(t *testing.T) {
	eng := newTestEngine(t, gateway.NewFakeGateway())

	resp := eng.HandleQuery(context.Background(), "sess-1", "schedule a meeting with akash at 26:70")
	require.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, string(scherrors.CodeUnresolvableTime), resp.Reason)
	assert.NotEmpty(t, resp.Suggestion)
}

func TestHandleQuery_OracleClarifiesTime(t *testing.T) {
	gw := gateway.NewFakeGateway()
	o := &mockOracle{answers: map[string]string{"time|26:70": "tomorrow at 3pm"}}
	eng := newTestEngine(t, gw, WithOracle(o))

	resp := eng.HandleQuery(context.Background(), "sess-1", "schedule a meeting with akash at 26:70")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)

	ev := resp.Data.(*gateway.Event)
	assert.Equal(t, time.Date(2026, 8, 27, 15, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, []string{akash}, ev.Attendees)
}

func TestHandleQuery_OracleAnswerStillValidated(t *testing.T) {
	// A nonsense oracle answer must not bypass time resolution.
	o := &mockOracle{answers: map[string]string{"time|26:70": "whenever works"}}
	eng := newTestEngine(t, gateway.NewFakeGateway(), WithOracle(o))

	resp := eng.HandleQuery(context.Background(), "sess-1", "schedule a meeting with akash at 26:70")
	require.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, string(scherrors.CodeUnresolvableTime), resp.Reason)
}

func TestHandleQuery_OracleResolvesAttendee(t *testing.T) {
	gw := gateway.NewFakeGateway()
	o := &mockOracle{answers: map[string]string{"attendee|zorro": "akash"}}
	eng := newTestEngine(t, gw, WithOracle(o))

	resp := eng.HandleQuery(context.Background(), "sess-1", "schedule a meeting with zorro at 2pm on friday")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)
	assert.Equal(t, []string{akash}, resp.Data.(*gateway.Event).Attendees)
}

func TestHandleQuery_RescheduleByAttendee(t *testing.T) {
	gw := gateway.NewFakeGateway()
	gw.Seed(&gateway.Event{
		ID:        "seed-1",
		Summary:   "Sync",
		Start:     time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 8, 27, 11, 0, 0, 0, time.UTC),
		Attendees: []string{akash},
	})
	eng := newTestEngine(t, gw)

	resp := eng.HandleQuery(context.Background(), "sess-1", "reschedule my meeting with akash to friday at 3pm")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)

	ev := resp.Data.(*gateway.Event)
	assert.Equal(t, time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC), ev.Start)
	// Duration is preserved.
	assert.Equal(t, time.Date(2026, 8, 28, 16, 0, 0, 0, time.UTC), ev.End)
}

func TestHandleQuery_AmbiguousMatch(t *testing.T) {
	gw := gateway.NewFakeGateway()
	gw.Seed(&gateway.Event{
		ID: "seed-1", Summary: "Standup",
		Start:     time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 8, 27, 11, 0, 0, 0, time.UTC),
		Attendees: []string{akash},
	})
	gw.Seed(&gateway.Event{
		ID: "seed-2", Summary: "Review",
		Start:     time.Date(2026, 8, 27, 15, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 8, 27, 16, 0, 0, 0, time.UTC),
		Attendees: []string{akash},
	})
	eng := newTestEngine(t, gw)

	resp := eng.HandleQuery(context.Background(), "sess-1", "cancel my meeting with akash")
	require.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, string(scherrors.CodeAmbiguousMatch), resp.Reason)
	assert.Contains(t, resp.Message, "Standup")
	assert.Contains(t, resp.Message, "Review")
	assert.Equal(t, 0, gw.Calls["Delete"])
}

func TestHandleQuery_CancelByTime(t *testing.T) {
	gw := gateway.NewFakeGateway()
	gw.Seed(&gateway.Event{
		ID: "seed-1", Summary: "Standup",
		Start:     time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 8, 27, 11, 0, 0, 0, time.UTC),
		Attendees: []string{akash},
	})
	gw.Seed(&gateway.Event{
		ID: "seed-2", Summary: "Review",
		Start:     time.Date(2026, 8, 27, 15, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 8, 27, 16, 0, 0, 0, time.UTC),
		Attendees: []string{akash},
	})
	eng := newTestEngine(t, gw)

	resp := eng.HandleQuery(context.Background(), "sess-1", "cancel my meeting with akash at 10am tomorrow")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)
	assert.Contains(t, resp.Message, "Standup")

	_, err := gw.Get(context.Background(), "seed-1")
	assert.Equal(t, scherrors.CodeNoMatchingEvent, scherrors.CodeOf(err))
	_, err = gw.Get(context.Background(), "seed-2")
	assert.NoError(t, err)
}

func TestHandleQuery_CancelByExplicitID(t *testing.T) {
	gw := gateway.NewFakeGateway()
	gw.Seed(&gateway.Event{
		ID: "abc123xyz", Summary: "One on one",
		Start:     time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 8, 27, 11, 0, 0, 0, time.UTC),
		Attendees: []string{akash},
	})
	eng := newTestEngine(t, gw)

	resp := eng.HandleQuery(context.Background(), "sess-1", "cancel event id: abc123xyz")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)
	assert.Equal(t, 1, gw.Calls["Delete"])
}

func TestHandleQuery_NoMatchingEvent(t *testing.T) {
	eng := newTestEngine(t, gateway.NewFakeGateway())

	resp := eng.HandleQuery(context.Background(), "sess-1", "cancel my meeting with eliana")
	require.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, string(scherrors.CodeNoMatchingEvent), resp.Reason)
	assert.Contains(t, resp.Message, "eliana@gocadre.ai")
}

func TestHandleQuery_ListParticipants(t *testing.T) {
	gw := gateway.NewFakeGateway()
	gw.Seed(&gateway.Event{
		ID: "seed-1", Summary: "Planning",
		Start:     time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 8, 27, 11, 0, 0, 0, time.UTC),
		Attendees: []string{akash, odell},
	})
	eng := newTestEngine(t, gw)

	resp := eng.HandleQuery(context.Background(), "sess-1", "who is in my meeting with akash")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)
	assert.Equal(t, []string{akash, odell}, resp.Data.([]string))
	assert.Contains(t, resp.Message, akash)
}

func TestHandleQuery_ListEvents(t *testing.T) {
	gw := gateway.NewFakeGateway()
	gw.Seed(&gateway.Event{
		ID: "seed-1", Summary: "Standup",
		Start: time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 27, 11, 0, 0, 0, time.UTC),
	})
	gw.Seed(&gateway.Event{
		ID: "seed-2", Summary: "Review",
		Start: time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 28, 16, 0, 0, 0, time.UTC),
	})
	eng := newTestEngine(t, gw)

	resp := eng.HandleQuery(context.Background(), "sess-1", "list meetings")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)

	events := resp.Data.([]*gateway.Event)
	require.Len(t, events, 2)
	// Chronological order.
	assert.Equal(t, "seed-1", events[0].ID)
	assert.Equal(t, "seed-2", events[1].ID)
}

func TestHandleQuery_ListEventsEmpty(t *testing.T) {
	eng := newTestEngine(t, gateway.NewFakeGateway())

	resp := eng.HandleQuery(context.Background(), "sess-1", "show my upcoming events")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)
	assert.Empty(t, resp.Data)
}

func TestHandleQuery_FindFreeSlot(t *testing.T) {
	gw := gateway.NewFakeGateway()
	// Akash is busy tomorrow morning.
	gw.Seed(&gateway.Event{
		ID: "seed-1", Summary: "Busy",
		Start:     time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
		Attendees: []string{akash},
	})
	eng := newTestEngine(t, gw)

	resp := eng.HandleQuery(context.Background(), "sess-1", "find a slot with akash")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)

	slots := resp.Data.([]availability.ConflictWindow)
	require.NotEmpty(t, slots)
	assert.Equal(t, 1, slots[0].Rank)
	assert.Equal(t, fixedNow, slots[0].Start)

	busyStart := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	busyEnd := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	for _, s := range slots {
		assert.GreaterOrEqual(t, s.Duration(), timeout.DefaultMeetingDuration)
		overlap := s.Start.Before(busyEnd) && s.End.After(busyStart)
		assert.False(t, overlap, "slot %v overlaps busy time", s)
	}
}

func TestHandleQuery_FindFreeSlotNoAvailability(t *testing.T) {
	gw := gateway.NewFakeGateway()
	// One long event covering the whole search window.
	gw.Seed(&gateway.Event{
		ID: "seed-1", Summary: "Offsite",
		Start:     fixedNow.AddDate(0, 0, -1),
		End:       fixedNow.AddDate(0, 0, 8),
		Attendees: []string{akash},
	})
	eng := newTestEngine(t, gw)

	resp := eng.HandleQuery(context.Background(), "sess-1", "when are we free with akash")
	require.Equal(t, StatusCompleted,resp.Status, resp.Message)
	assert.Empty(t, resp.Data)
	assert.Contains(t, resp.Message, "No common availability")
}

func TestHandleQuery_SummarizePreference(t *testing.T) {
	eng := newTestEngine(t, gateway.NewFakeGateway())
	ctx := context.Background()

	tests := []struct {
		query string
		want  string
	}{
		{"i prefer mornings", "Prefers 9AM-12PM"},
		{"i prefer afternoon meetings", "Prefers 1PM-5PM"},
		{"i prefer fridays", "No strong preference detected"},
	}
	for _, tt := range tests {
		resp := eng.HandleQuery(ctx, "sess-1", tt.query)
		require.Equal(t, StatusCompleted,resp.Status, resp.Message)
		assert.Equal(t, tt.want, resp.Message, "query %q", tt.query)
	}
}

func TestHandleQuery_StatusValues(t *testing.T) {
	// The wire contract is "completed" and "failed"; pin the literals so
	// the constants cannot drift.
	eng := newTestEngine(t, gateway.NewFakeGateway())
	ctx := context.Background()

	ok := eng.HandleQuery(ctx, "sess-1", "schedule a meeting with akash at 2pm on friday")
	assert.Equal(t, "completed", ok.Status)

	failed := eng.HandleQuery(ctx, "sess-1", "schedule a meeting with akash")
	assert.Equal(t, "failed", failed.Status)
}

func TestHandleQuery_GatewayRetry(t *testing.T) {
	gw := gateway.NewFakeGateway()
	gw.Fail = scherrors.GatewayUnavailable(fmt.Errorf("connection refused"))
	eng := newTestEngine(t, gw)

	resp := eng.HandleQuery(context.Background(), "sess-1", "schedule a meeting with akash at 2pm on friday")
	require.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, string(scherrors.CodeGatewayUnavailable), resp.Reason)
	assert.Equal(t, timeout.GatewayMaxAttempts, gw.Calls["Create"])
}

func TestHandleQuery_GatewayRejectedNotRetried(t *testing.T) {
	gw := gateway.NewFakeGateway()
	gw.Fail = scherrors.GatewayRejected(fmt.Errorf("forbidden"))
	eng := newTestEngine(t, gw)

	resp := eng.HandleQuery(context.Background(), "sess-1", "schedule a meeting with akash at 2pm on friday")
	require.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, string(scherrors.CodeGatewayRejected), resp.Reason)
	assert.Equal(t, 1, gw.Calls["Create"])
}
