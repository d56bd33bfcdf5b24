package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	scherrors "github.com/Kash6/SchedulingAgent/internal/errors"
)

func TestMapGoogleError(t *testing.T) {
	tests := []struct {
		name string
		code int
		want scherrors.Code
	}{
		{"not found", 404, scherrors.CodeNoMatchingEvent},
		{"gone", 410, scherrors.CodeNoMatchingEvent},
		{"forbidden", 403, scherrors.CodeGatewayRejected},
		{"bad request", 400, scherrors.CodeGatewayRejected},
		{"rate limited", 429, scherrors.CodeGatewayUnavailable},
		{"server error", 503, scherrors.CodeGatewayUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapGoogleError(&googleapi.Error{Code: tt.code})
			assert.Equal(t, tt.want, scherrors.CodeOf(err))
		})
	}
}

func TestMapGoogleError_NonAPIErrorIsTransient(t *testing.T) {
	err := mapGoogleError(assert.AnError)
	assert.Equal(t, scherrors.CodeGatewayUnavailable, scherrors.CodeOf(err))
	assert.True(t, scherrors.IsRetryable(err))
}

func TestFromGoogleEvent(t *testing.T) {
	ev := &calendar.Event{
		Id:      "abc123",
		Summary: "Team Sync",
		Start:   &calendar.EventDateTime{DateTime: "2026-08-29T14:00:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2026-08-29T15:00:00Z"},
		Attendees: []*calendar.EventAttendee{
			{Email: "a@example.com"},
			{Email: "b@example.com"},
		},
		ConferenceData: &calendar.ConferenceData{
			EntryPoints: []*calendar.EntryPoint{
				{EntryPointType: "phone", Uri: "tel:+1-555"},
				{EntryPointType: "video", Uri: "https://meet.google.com/xyz"},
			},
		},
	}

	got := fromGoogleEvent(ev, "user1")
	assert.Equal(t, "abc123", got.ID)
	assert.Equal(t, "user1", got.CalendarID)
	assert.Equal(t, time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC), got.Start)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got.Attendees)
	assert.Equal(t, "https://meet.google.com/xyz", got.MeetLink)
}
