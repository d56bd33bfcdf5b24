// Package agent orchestrates a scheduling query end to end: normalize,
// extract, resolve references, validate, then execute against the
// calendar gateway.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Kash6/SchedulingAgent/gateway"
	"github.com/Kash6/SchedulingAgent/internal/errors"
	"github.com/Kash6/SchedulingAgent/internal/timeout"
	"github.com/Kash6/SchedulingAgent/plugin/availability"
	"github.com/Kash6/SchedulingAgent/plugin/intent"
	"github.com/Kash6/SchedulingAgent/plugin/lexicon"
	"github.com/Kash6/SchedulingAgent/plugin/memory"
	"github.com/Kash6/SchedulingAgent/plugin/oracle"
)

// stage is the processing phase of a request, logged on every transition.
type stage string

const (
	stageReceived          stage = "received"
	stageParsed            stage = "parsed"
	stageReferenceResolved stage = "reference_resolved"
	stageValidated         stage = "validated"
	stageExecuting         stage = "executing"
	stageCompleted         stage = "completed"
	stageFailed            stage = "failed"
)

// Response status values.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Response is the structured outcome of one query. Status is always one
// of StatusCompleted or StatusFailed.
type Response struct {
	Status  string        `json:"status"`
	Action  intent.Action `json:"action,omitempty"`
	Message string        `json:"message"`
	Data    any           `json:"data,omitempty"`
	// Reason carries the machine-readable failure code on errors.
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Engine drives scheduling queries through the pipeline. Per-session
// serialization is delegated to the memory; the engine itself is safe
// for concurrent use across sessions.
type Engine struct {
	lex       *lexicon.Lexicon
	extractor *intent.Extractor
	memory    *memory.Memory
	gateway   gateway.CalendarGateway
	oracle    oracle.Oracle
	users     []string
	hours     availability.WorkingHours
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithOracle attaches the disambiguation oracle. Without one, ambiguous
// inputs fail fast instead of being clarified.
func WithOracle(o oracle.Oracle) Option {
	return func(e *Engine) { e.oracle = o }
}

// WithUsers sets the known calendar owners, used for listing events and
// as the implicit self attendee in availability searches. The first user
// is the organizer for new events.
func WithUsers(users []string) Option {
	return func(e *Engine) { e.users = users }
}

// WithWorkingHours overrides the availability search mask.
func WithWorkingHours(h availability.WorkingHours) Option {
	return func(e *Engine) { e.hours = h }
}

// WithNow injects the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine.
func New(lex *lexicon.Lexicon, mem *memory.Memory, gw gateway.CalendarGateway, opts ...Option) *Engine {
	e := &Engine{
		lex:       lex,
		extractor: intent.NewExtractor(lex),
		memory:    mem,
		gateway:   gw,
		hours:     availability.DefaultWorkingHours(),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleQuery processes one natural-language query for the given session
// and always returns a response; failures surface as error responses,
// never as a Go error, so callers have a single rendering path.
func (e *Engine) HandleQuery(ctx context.Context, sessionID, query string) *Response {
	unlock := e.memory.LockSession(sessionID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout.RequestTimeout)
	defer cancel()

	e.transition(sessionID, stageReceived)
	norm := e.lex.Normalize(query, e.now())

	in, err := e.extractor.Extract(norm)
	if err != nil {
		in, err = e.clarify(ctx, norm, err)
	}
	if err != nil {
		e.transition(sessionID, stageFailed)
		return errorResponse("", err)
	}
	e.transition(sessionID, stageParsed)

	in, err = e.memory.ResolveReference(ctx, in, sessionID)
	if err != nil {
		e.transition(sessionID, stageFailed)
		return errorResponse(in.Action, err)
	}
	e.transition(sessionID, stageReferenceResolved)

	if err := e.validate(ctx, in); err != nil {
		e.transition(sessionID, stageFailed)
		return errorResponse(in.Action, err)
	}
	e.transition(sessionID, stageValidated)

	e.transition(sessionID, stageExecuting)
	resp, err := e.dispatch(ctx, sessionID, in, norm)
	if err != nil {
		e.transition(sessionID, stageFailed)
		return errorResponse(in.Action, err)
	}
	e.transition(sessionID, stageCompleted)
	return resp
}

func (e *Engine) transition(sessionID string, s stage) {
	e.logger.Debug("request stage", "session_id", sessionID, "stage", string(s))
}

// clarify asks the oracle to restate an unresolvable time expression,
// then re-extracts with the clarified phrase substituted in. The
// oracle's answer is never trusted directly; it must pass the same
// deterministic resolution rules as user input.
func (e *Engine) clarify(ctx context.Context, norm lexicon.NormalizedQuery, cause error) (*intent.Intent, error) {
	if e.oracle == nil || errors.CodeOf(cause) != errors.CodeUnresolvableTime {
		return nil, cause
	}

	expr := lexicon.FindTimeExpression(norm.Text)
	if expr == "" {
		return nil, cause
	}

	octx, cancel := context.WithTimeout(ctx, timeout.OracleTimeout)
	defer cancel()
	clarified, err := e.oracle.Resolve(octx, "time", expr, map[string]string{"query": norm.Raw})
	if err != nil {
		e.logger.Warn("oracle clarification failed", "expr", expr, "error", err)
		return nil, cause
	}
	clarified = strings.ToLower(strings.TrimSpace(clarified))

	if _, err := e.lex.ResolveTime(lexicon.FindTimeExpression(clarified), norm.Now); err != nil {
		return nil, cause
	}

	renorm := e.lex.Normalize(replaceOnce(norm.Raw, expr, clarified), norm.Now)
	in, err := e.extractor.Extract(renorm)
	if err != nil {
		return nil, cause
	}
	return in, nil
}

// validate enforces per-action slot requirements before any gateway call.
func (e *Engine) validate(ctx context.Context, in *intent.Intent) error {
	switch in.Action {
	case intent.ActionCreate:
		if in.Time == nil {
			return errors.MissingRequiredSlot("time")
		}
		if err := e.resolveAttendees(ctx, in); err != nil {
			return err
		}
		if len(in.ResolvedAttendees()) == 0 {
			return errors.MissingRequiredSlot("attendee")
		}
	case intent.ActionReschedule:
		if in.Time == nil {
			return errors.MissingRequiredSlot("time")
		}
		if in.EventRef.Kind == intent.RefNone {
			if err := e.resolveAttendees(ctx, in); err != nil {
				return err
			}
			if len(in.ResolvedAttendees()) == 0 {
				return errors.MissingRequiredSlot("event reference")
			}
		}
	case intent.ActionCancel, intent.ActionListParticipants:
		if in.EventRef.Kind == intent.RefNone {
			if err := e.resolveAttendees(ctx, in); err != nil {
				return err
			}
			if len(in.ResolvedAttendees()) == 0 && in.Time == nil {
				return errors.MissingRequiredSlot("event reference")
			}
		}
	case intent.ActionFindFreeSlot:
		if err := e.resolveAttendees(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

// resolveAttendees gives unresolved attendee mentions one oracle pass.
// Answers are accepted only when the lexicon can canonicalize them.
func (e *Engine) resolveAttendees(ctx context.Context, in *intent.Intent) error {
	if e.oracle == nil {
		return nil
	}
	for i, a := range in.Attendees {
		if a.Resolved {
			continue
		}
		octx, cancel := context.WithTimeout(ctx, timeout.OracleTimeout)
		guess, err := e.oracle.Resolve(octx, "attendee", a.Raw, nil)
		cancel()
		if err != nil {
			e.logger.Warn("oracle attendee resolution failed", "mention", a.Raw, "error", err)
			continue
		}
		if email, ok := e.lex.Canonical(guess); ok {
			in.Attendees[i].Email = email
			in.Attendees[i].Resolved = true
		}
	}
	return nil
}

func errorResponse(action intent.Action, err error) *Response {
	code := errors.CodeOf(err)
	if code == "" {
		code = "INTERNAL"
	}
	return &Response{
		Status:     StatusFailed,
		Action:     action,
		Message:    err.Error(),
		Reason:     string(code),
		Suggestion: errors.SuggestionOf(err),
	}
}

func replaceOnce(s, old, new string) string {
	if old == "" {
		return s
	}
	i := strings.Index(strings.ToLower(s), strings.ToLower(old))
	if i < 0 {
		return s + " " + new
	}
	return s[:i] + new + s[i+len(old):]
}
