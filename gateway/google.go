package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	scherrors "github.com/Kash6/SchedulingAgent/internal/errors"
)

const primaryCalendar = "primary"

// GoogleGateway implements CalendarGateway on the Google Calendar API,
// holding one authenticated service per registered user.
type GoogleGateway struct {
	services map[string]*calendar.Service
	users    []string
}

// NewGoogleGateway builds a gateway from an OAuth client secrets file and
// per-user token files named token_<user>.json under tokenDir.
func NewGoogleGateway(ctx context.Context, credentialsFile, tokenDir string, users []string) (*GoogleGateway, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("no calendar users configured")
	}

	secrets, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secrets: %w", err)
	}
	config, err := google.ConfigFromJSON(secrets, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secrets: %w", err)
	}

	services := make(map[string]*calendar.Service, len(users))
	for _, user := range users {
		tok, err := tokenFromFile(filepath.Join(tokenDir, fmt.Sprintf("token_%s.json", user)))
		if err != nil {
			return nil, fmt.Errorf("failed to load token for user %s: %w", user, err)
		}
		svc, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
		if err != nil {
			return nil, fmt.Errorf("failed to create calendar service for user %s: %w", user, err)
		}
		services[user] = svc
	}

	return &GoogleGateway{services: services, users: users}, nil
}

// tokenFromFile reads a stored OAuth2 token.
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Create implements CalendarGateway. The event is inserted on the first
// registered user's primary calendar with the remaining attendees invited.
func (g *GoogleGateway) Create(ctx context.Context, req CreateRequest) (*Event, error) {
	attendees := make([]*calendar.EventAttendee, 0, len(req.Attendees))
	for _, email := range req.Attendees {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}

	ev := &calendar.Event{
		Summary:   req.Summary,
		Start:     &calendar.EventDateTime{DateTime: req.Start.Format(time.RFC3339), TimeZone: "UTC"},
		End:       &calendar.EventDateTime{DateTime: req.End.Format(time.RFC3339), TimeZone: "UTC"},
		Attendees: attendees,
	}

	if req.WithConference {
		ev.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
	}

	call := g.services[g.users[0]].Events.Insert(primaryCalendar, ev).Context(ctx)
	if req.WithConference {
		call = call.ConferenceDataVersion(1)
	}

	created, err := call.Do()
	if err != nil {
		return nil, mapGoogleError(err)
	}
	return fromGoogleEvent(created, g.users[0]), nil
}

// Update implements CalendarGateway, moving the event wherever it lives
// among the registered users' calendars.
func (g *GoogleGateway) Update(ctx context.Context, eventID string, newStart, newEnd time.Time) (*Event, error) {
	owner, ev, err := g.find(ctx, eventID)
	if err != nil {
		return nil, err
	}

	ev.Start = &calendar.EventDateTime{DateTime: newStart.Format(time.RFC3339), TimeZone: "UTC"}
	ev.End = &calendar.EventDateTime{DateTime: newEnd.Format(time.RFC3339), TimeZone: "UTC"}

	updated, err := g.services[owner].Events.Update(primaryCalendar, eventID, ev).
		ConferenceDataVersion(1).Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError(err)
	}
	return fromGoogleEvent(updated, owner), nil
}

// Delete implements CalendarGateway.
func (g *GoogleGateway) Delete(ctx context.Context, eventID string) error {
	owner, _, err := g.find(ctx, eventID)
	if err != nil {
		return err
	}
	if err := g.services[owner].Events.Delete(primaryCalendar, eventID).Context(ctx).Do(); err != nil {
		return mapGoogleError(err)
	}
	return nil
}

// Get implements CalendarGateway.
func (g *GoogleGateway) Get(ctx context.Context, eventID string) (*Event, error) {
	owner, ev, err := g.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return fromGoogleEvent(ev, owner), nil
}

// find locates an event by identifier across all registered users.
func (g *GoogleGateway) find(ctx context.Context, eventID string) (string, *calendar.Event, error) {
	var lastErr error
	for _, user := range g.users {
		ev, err := g.services[user].Events.Get(primaryCalendar, eventID).Context(ctx).Do()
		if err == nil {
			return user, ev, nil
		}
		lastErr = err
		if scherrors.CodeOf(mapGoogleError(err)) != scherrors.CodeNoMatchingEvent {
			return "", nil, mapGoogleError(err)
		}
	}
	slog.Warn("event not found on any calendar", "event_id", eventID, "error", lastErr)
	return "", nil, scherrors.NoMatchingEvent(fmt.Sprintf("identifier %s", eventID))
}

// ListEvents implements CalendarGateway. Empty calendarIDs means all
// registered users.
func (g *GoogleGateway) ListEvents(ctx context.Context, calendarIDs []string, window TimeWindow) ([]*Event, error) {
	if len(calendarIDs) == 0 {
		calendarIDs = g.users
	}

	var out []*Event
	for _, user := range calendarIDs {
		svc, ok := g.services[user]
		if !ok {
			return nil, scherrors.GatewayRejected(fmt.Errorf("unknown calendar user: %s", user))
		}
		items, err := svc.Events.List(primaryCalendar).
			TimeMin(window.Start.Format(time.RFC3339)).
			TimeMax(window.End.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		if err != nil {
			return nil, mapGoogleError(err)
		}
		for _, item := range items.Items {
			out = append(out, fromGoogleEvent(item, user))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// ListBusyIntervals implements CalendarGateway. Queries for distinct
// attendees fan out concurrently and join before returning; any failure
// fails the whole fetch rather than proceeding on partial data.
func (g *GoogleGateway) ListBusyIntervals(ctx context.Context, attendeeIDs []string, window TimeWindow) (map[string][]BusyInterval, error) {
	results := make([]map[string][]BusyInterval, len(attendeeIDs))

	eg, ctx := errgroup.WithContext(ctx)
	for i, attendee := range attendeeIDs {
		i, attendee := i, attendee
		eg.Go(func() error {
			resp, err := g.services[g.users[0]].Freebusy.Query(&calendar.FreeBusyRequest{
				TimeMin: window.Start.Format(time.RFC3339),
				TimeMax: window.End.Format(time.RFC3339),
				Items:   []*calendar.FreeBusyRequestItem{{Id: attendee}},
			}).Context(ctx).Do()
			if err != nil {
				return mapGoogleError(err)
			}

			intervals := map[string][]BusyInterval{attendee: nil}
			for _, cal := range resp.Calendars {
				for _, period := range cal.Busy {
					start, err := time.Parse(time.RFC3339, period.Start)
					if err != nil {
						continue
					}
					end, err := time.Parse(time.RFC3339, period.End)
					if err != nil {
						continue
					}
					intervals[attendee] = append(intervals[attendee], BusyInterval{Start: start.UTC(), End: end.UTC()})
				}
			}
			results[i] = intervals
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string][]BusyInterval, len(attendeeIDs))
	for _, r := range results {
		for attendee, intervals := range r {
			merged[attendee] = intervals
		}
	}
	return merged, nil
}

// fromGoogleEvent converts a provider event into the core's opaque record.
func fromGoogleEvent(ev *calendar.Event, calendarID string) *Event {
	out := &Event{
		ID:         ev.Id,
		Summary:    ev.Summary,
		CalendarID: calendarID,
		MeetLink:   ev.HangoutLink,
	}
	if ev.Start != nil {
		out.Start, _ = time.Parse(time.RFC3339, ev.Start.DateTime)
	}
	if ev.End != nil {
		out.End, _ = time.Parse(time.RFC3339, ev.End.DateTime)
	}
	for _, a := range ev.Attendees {
		out.Attendees = append(out.Attendees, a.Email)
	}
	if out.MeetLink == "" && ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				out.MeetLink = ep.Uri
				break
			}
		}
	}
	return out
}

// mapGoogleError translates provider failures into scheduling error codes.
func mapGoogleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return scherrors.Timeout("calendar gateway call", err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 404, 410:
			return scherrors.NoMatchingEvent("the given identifier")
		case 400, 401, 403, 409:
			return scherrors.GatewayRejected(err)
		default:
			return scherrors.GatewayUnavailable(err)
		}
	}
	return scherrors.GatewayUnavailable(err)
}

var _ CalendarGateway = (*GoogleGateway)(nil)
