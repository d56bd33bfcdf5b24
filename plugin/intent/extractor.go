package intent

import (
	"regexp"
	"strings"

	"github.com/Kash6/SchedulingAgent/internal/errors"
	"github.com/Kash6/SchedulingAgent/plugin/lexicon"
)

// actionKeywords maps trigger phrases to actions. Matching is by leading
// word boundary so inflected forms ("cancels", "rescheduled") still hit.
// When several phrases match, the earliest occurrence in the query wins;
// at equal positions the longer phrase wins.
var actionKeywords = []struct {
	phrase string
	action Action
}{
	{"reschedule", ActionReschedule},
	{"move", ActionReschedule},
	{"postpone", ActionReschedule},
	{"cancel", ActionCancel},
	{"delete", ActionCancel},
	{"list participants", ActionListParticipants},
	{"who is in", ActionListParticipants},
	{"who's in", ActionListParticipants},
	{"participants", ActionListParticipants},
	{"free slot", ActionFindFreeSlot},
	{"free time", ActionFindFreeSlot},
	{"find a slot", ActionFindFreeSlot},
	{"when am i free", ActionFindFreeSlot},
	{"when are we free", ActionFindFreeSlot},
	{"availability", ActionFindFreeSlot},
	{"list events", ActionListEvents},
	{"list meetings", ActionListEvents},
	{"upcoming events", ActionListEvents},
	{"show events", ActionListEvents},
	{"show meetings", ActionListEvents},
	{"what is on my calendar", ActionListEvents},
	{"what's on my calendar", ActionListEvents},
	{"prefer", ActionSummarizePreference},
	{"create", ActionCreate},
	{"schedule", ActionCreate},
	{"book", ActionCreate},
	{"set up", ActionCreate},
}

// actionPatterns holds the compiled trigger patterns, parallel to actionKeywords.
var actionPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(actionKeywords))
	for i, kw := range actionKeywords {
		patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw.phrase))
	}
	return patterns
}()

// deicticPriorActions maps deictic verb forms to the prior action they imply.
var deicticPriorActions = map[string]Action{
	"created":     ActionCreate,
	"scheduled":   ActionCreate,
	"booked":      ActionCreate,
	"rescheduled": ActionReschedule,
	"moved":       ActionReschedule,
	"canceled":    ActionCancel,
	"cancelled":   ActionCancel,
}

var (
	deicticPattern = regexp.MustCompile(`\b(?:the\s+)?(?:meeting|event)\s+(?:i|we)\s+just\s+(created|scheduled|booked|rescheduled|moved|canceled|cancelled)\b`)
	lastPattern    = regexp.MustCompile(`\b(?:the\s+)?last\s+(created|scheduled|booked|rescheduled|moved|canceled|cancelled)\s+(?:meeting|event)\b`)

	eventIDPattern  = regexp.MustCompile(`\bevent\s+(?:id\s*:?\s*)?([a-z0-9_-]{4,})\b`)
	inlineIDPattern = regexp.MustCompile(`\bid\s*:?\s*([a-z0-9_-]{4,})\b`)

	attendeesPattern = regexp.MustCompile(`\bwith\s+(.+?)(?:\s+(?:at|on|to|from|for|next|this|today|tonight|tomorrow|monday|tuesday|wednesday|thursday|friday|saturday|sunday|morning|afternoon|evening|night|noon|midnight)\b.*)?$`)
	attendeeSplit    = regexp.MustCompile(`,|\band\b`)

	summaryPattern = regexp.MustCompile(`\b(?:about|titled|called|regarding)\s+(.+?)(?:\s+(?:with|at|on)\b.*)?$`)

	rescheduleTarget = regexp.MustCompile(`\bto\s+(.+)$`)

	hasDigit = regexp.MustCompile(`\d`)
)

// idStopwords are tokens that can follow "event" without being identifiers.
var idStopwords = map[string]bool{
	"today": true, "tomorrow": true, "tonight": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"just": true, "with": true, "about": true, "this": true, "that": true,
	"next": true, "titled": true, "called": true,
}

// Extractor turns a normalized query into a structured Intent using fixed
// pattern rules per slot. Absence of a match for a non-required slot is
// not a failure.
type Extractor struct {
	lex *lexicon.Lexicon
}

// NewExtractor creates an Extractor backed by the given lexicon.
func NewExtractor(lex *lexicon.Lexicon) *Extractor {
	return &Extractor{lex: lex}
}

// Extract classifies the action verb and extracts each slot independently.
// It fails only for an unresolvable time expression or for a create with
// no time expression at all.
func (e *Extractor) Extract(q lexicon.NormalizedQuery) (*Intent, error) {
	text := q.Text

	in := &Intent{
		Action:    classifyAction(text),
		Attendees: e.extractAttendees(text),
		Summary:   extractSummary(text),
		EventRef:  extractEventRef(text),
	}

	spec, err := e.extractTime(in.Action, text, q)
	if err != nil {
		return nil, err
	}
	in.Time = spec

	if in.Action == ActionCreate && in.Time == nil {
		return nil, errors.MissingRequiredSlot("time")
	}

	return in, nil
}

// classifyAction picks the action whose trigger phrase occurs first in the
// query. At equal positions the longer phrase wins. Default is create.
func classifyAction(text string) Action {
	bestIdx := -1
	bestLen := 0
	action := ActionCreate

	for i, kw := range actionKeywords {
		loc := actionPatterns[i].FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestIdx == -1 || loc[0] < bestIdx || (loc[0] == bestIdx && len(kw.phrase) > bestLen) {
			bestIdx = loc[0]
			bestLen = len(kw.phrase)
			action = kw.action
		}
	}

	return action
}

// extractAttendees finds the "with ..." attendee list and resolves each
// mention through the lexicon. Unresolved mentions are kept, not dropped.
func (e *Extractor) extractAttendees(text string) []Attendee {
	m := attendeesPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var out []Attendee
	for _, part := range attendeeSplit.Split(m[1], -1) {
		raw := strings.Trim(strings.TrimSpace(part), ".,!?")
		if raw == "" {
			continue
		}
		email, resolved := e.lex.Canonical(raw)
		out = append(out, Attendee{Email: email, Raw: raw, Resolved: resolved})
	}
	return out
}

// extractTime locates the time expression and resolves it to an instant.
// For reschedule the fragment after "to" takes priority, so "from 2pm to
// 4pm" and "reschedule ... to thursday at 5pm" bind the target time.
func (e *Extractor) extractTime(action Action, text string, q lexicon.NormalizedQuery) (*TimeSpec, error) {
	search := text
	if action == ActionReschedule {
		if m := rescheduleTarget.FindStringSubmatch(text); m != nil {
			if expr := lexicon.FindTimeExpression(m[1]); expr != "" {
				search = m[1]
			}
		}
	}

	expr := lexicon.FindTimeExpression(search)
	if expr == "" {
		return nil, nil
	}

	at, err := e.lex.ResolveTime(expr, q.Now)
	if err != nil {
		return nil, errors.UnresolvableTime(expr)
	}
	return &TimeSpec{At: at, Raw: expr}, nil
}

// extractSummary finds an explicit meeting title, if any.
func extractSummary(text string) string {
	m := summaryPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.Trim(strings.TrimSpace(m[1]), `"'`)
}

// extractEventRef finds an explicit event identifier or a deictic marker.
// Explicit identifiers win over deictic phrasing.
func extractEventRef(text string) EventReference {
	if m := eventIDPattern.FindStringSubmatch(text); m != nil && looksLikeID(m[1]) {
		return EventReference{Kind: RefExplicitID, ID: m[1]}
	}
	if m := inlineIDPattern.FindStringSubmatch(text); m != nil && looksLikeID(m[1]) {
		return EventReference{Kind: RefExplicitID, ID: m[1]}
	}
	if m := deicticPattern.FindStringSubmatch(text); m != nil {
		return EventReference{Kind: RefDeictic, PriorAction: deicticPriorActions[m[1]]}
	}
	if m := lastPattern.FindStringSubmatch(text); m != nil {
		return EventReference{Kind: RefDeictic, PriorAction: deicticPriorActions[m[1]]}
	}
	return EventReference{Kind: RefNone}
}

// looksLikeID filters out ordinary words that happen to follow "event".
// Calendar identifiers are long or carry digits.
func looksLikeID(tok string) bool {
	if idStopwords[tok] {
		return false
	}
	return hasDigit.MatchString(tok) || len(tok) >= 12
}
