// Package lexicon normalizes free-text scheduling queries: nickname to
// canonical identity substitution, fuzzy correction of day/time vocabulary,
// and relative time phrase resolution anchored to the request timestamp.
package lexicon

import (
	"regexp"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// timeVocab is the day/time vocabulary eligible for typo correction.
var timeVocab = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"today", "tomorrow",
	"morning", "afternoon", "evening", "night", "noon", "midnight",
}

// Thresholds for accepting a vocabulary correction. Words of five
// letters or fewer use the tighter threshold so short names like "tony"
// are not rewritten into nearby date words.
const (
	maxEditDistance      = 2
	shortWordMaxDistance = 1
	shortWordLen         = 5
)

// DefaultNicknames is the built-in nickname to email mapping.
func DefaultNicknames() map[string]string {
	return map[string]string{
		"akash":  "akashmehta556@gmail.com",
		"eliana": "eliana@gocadre.ai",
		"srilak": "srilakp@pdx.edu",
		"faraz":  "gurramkondafaraz@gmail.com",
		"vlds":   "vlds@umich.edu",
		"odell":  "odelllaxx@gmail.com",
		"odel":   "odelllaxx@gmail.com",
	}
}

// Lexicon holds the nickname table and timezone used for normalization.
type Lexicon struct {
	nicknames map[string]string
	location  *time.Location
}

// Option configures a Lexicon.
type Option func(*Lexicon)

// WithNicknames replaces the default nickname table.
func WithNicknames(m map[string]string) Option {
	return func(l *Lexicon) {
		nicknames := make(map[string]string, len(m))
		for k, v := range m {
			nicknames[strings.ToLower(k)] = v
		}
		l.nicknames = nicknames
	}
}

// WithLocation sets the reference timezone for time resolution.
func WithLocation(loc *time.Location) Option {
	return func(l *Lexicon) {
		l.location = loc
	}
}

// New creates a Lexicon with the given options.
func New(opts ...Option) *Lexicon {
	l := &Lexicon{
		nicknames: DefaultNicknames(),
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Location returns the reference timezone.
func (l *Lexicon) Location() *time.Location {
	return l.location
}

// NormalizedQuery is the best-effort normalized form of a raw query.
// Normalization never fails; unresolvable tokens pass through verbatim.
type NormalizedQuery struct {
	// Raw is the original query text.
	Raw string
	// Text is the lowercased, typo-corrected query text.
	Text string
	// Now is the request timestamp all relative dates anchor to.
	Now time.Time
}

// Normalize produces the normalized form of raw anchored at now.
// It is a pure function of its inputs.
func (l *Lexicon) Normalize(raw string, now time.Time) NormalizedQuery {
	fields := strings.Fields(strings.ToLower(raw))
	corrected := make([]string, len(fields))
	for i, tok := range fields {
		if i > 0 && attendeePosition(fields[i-1]) {
			corrected[i] = tok
			continue
		}
		corrected[i] = l.correctToken(tok)
	}
	return NormalizedQuery{
		Raw:  raw,
		Text: strings.Join(corrected, " "),
		Now:  now.In(l.location),
	}
}

// Canonical maps an attendee mention to its canonical email identity.
// Well-formed email addresses pass through unchanged. The second return
// value reports whether the mention resolved.
func (l *Lexicon) Canonical(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if emailPattern.MatchString(name) {
		return strings.ToLower(name), true
	}
	if email, ok := l.nicknames[strings.ToLower(name)]; ok {
		return email, true
	}
	return name, false
}

// attendeePosition reports whether the previous token introduces an
// attendee mention. Tokens in that position are identity strings and
// must pass through uncorrected.
func attendeePosition(prev string) bool {
	return prev == "with" || prev == "and" || strings.HasSuffix(prev, ",")
}

// correctToken applies fuzzy day/time vocabulary correction to a single
// token. A correction is accepted only when the edit distance is within
// the threshold and the nearest candidate is unambiguous; otherwise the
// token passes through verbatim.
func (l *Lexicon) correctToken(tok string) string {
	word := strings.Trim(tok, ".,!?;:")
	if len(word) < 3 || strings.ContainsAny(word, "0123456789@") {
		return tok
	}
	if _, isNickname := l.nicknames[word]; isNickname {
		return tok
	}

	limit := maxEditDistance
	if len(word) <= shortWordLen {
		limit = shortWordMaxDistance
	}

	best := maxEditDistance + 1
	var candidate string
	ambiguous := false
	for _, v := range timeVocab {
		d := levenshtein.ComputeDistance(word, v)
		switch {
		case d < best:
			best = d
			candidate = v
			ambiguous = false
		case d == best:
			ambiguous = true
		}
	}

	if best == 0 {
		return tok
	}
	if best > limit || ambiguous {
		return tok
	}
	return strings.Replace(tok, word, candidate, 1)
}
