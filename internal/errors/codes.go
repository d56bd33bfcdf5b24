// Package errors defines structured error codes for scheduling operations.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a specific failure kind surfaced to the caller.
type Code string

const (
	// CodeUnresolvableTime indicates a time expression was present but could
	// not be mapped to a calendar instant.
	CodeUnresolvableTime Code = "UNRESOLVABLE_TIME"
	// CodeMissingRequiredSlot indicates a required intent slot was absent.
	CodeMissingRequiredSlot Code = "MISSING_REQUIRED_SLOT"
	// CodeNoMatchingPriorEvent indicates a deictic reference had no matching
	// entry in the session history.
	CodeNoMatchingPriorEvent Code = "NO_MATCHING_PRIOR_EVENT"
	// CodeNoMatchingEvent indicates no calendar event matched the given criteria.
	CodeNoMatchingEvent Code = "NO_MATCHING_EVENT"
	// CodeAmbiguousMatch indicates multiple calendar events matched the given criteria.
	CodeAmbiguousMatch Code = "AMBIGUOUS_MATCH"
	// CodeGatewayUnavailable indicates a transient calendar gateway failure.
	CodeGatewayUnavailable Code = "GATEWAY_UNAVAILABLE"
	// CodeGatewayRejected indicates the gateway rejected the request
	// (permission or validation). Never retried.
	CodeGatewayRejected Code = "GATEWAY_REJECTED"
	// CodeTimeout indicates an external call exceeded its deadline.
	CodeTimeout Code = "TIMEOUT"
)

// SchedulingError is a structured error carrying a code and a concrete
// user-facing suggestion for the next step.
type SchedulingError struct {
	Code       Code
	Message    string
	Suggestion string
	Cause      error
}

// Error implements the error interface.
func (e *SchedulingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *SchedulingError) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the scheduling error code from err, or "" if err is not
// a SchedulingError.
func CodeOf(err error) Code {
	var se *SchedulingError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// SuggestionOf extracts the suggestion from err, if any.
func SuggestionOf(err error) string {
	var se *SchedulingError
	if errors.As(err, &se) {
		return se.Suggestion
	}
	return ""
}

// IsRetryable reports whether the failure is transient and worth retrying.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeGatewayUnavailable, CodeTimeout:
		return true
	default:
		return false
	}
}

// Convenience constructors for each failure kind.

// UnresolvableTime creates an error naming the offending time substring.
func UnresolvableTime(substring string) *SchedulingError {
	return &SchedulingError{
		Code:       CodeUnresolvableTime,
		Message:    fmt.Sprintf("could not resolve time expression %q", substring),
		Suggestion: "use a format like 'Saturday at 3pm' or 'July 16th at 6pm'",
	}
}

// slotSuggestions phrases the next step for each required slot.
var slotSuggestions = map[string]string{
	"time":            "include a time, e.g. 'tomorrow at 3pm'",
	"attendee":        "name at least one attendee, e.g. 'with akash'",
	"event reference": "identify the event by id, exact time, or attendee",
	"action":          "state what to do, e.g. 'schedule', 'cancel', or 'reschedule'",
}

// MissingRequiredSlot creates an error naming the missing slot.
func MissingRequiredSlot(slot string) *SchedulingError {
	suggestion, ok := slotSuggestions[slot]
	if !ok {
		suggestion = fmt.Sprintf("specify the %s in your request", slot)
	}
	return &SchedulingError{
		Code:       CodeMissingRequiredSlot,
		Message:    fmt.Sprintf("missing required slot: %s", slot),
		Suggestion: suggestion,
	}
}

// NoMatchingPriorEvent creates an error for an unresolvable deictic reference.
func NoMatchingPriorEvent() *SchedulingError {
	return &SchedulingError{
		Code:       CodeNoMatchingPriorEvent,
		Message:    "no prior event in this conversation matches the reference",
		Suggestion: "specify which event, e.g. by time or attendee",
	}
}

// NoMatchingEvent creates an error for criteria that matched zero events.
func NoMatchingEvent(criteria string) *SchedulingError {
	return &SchedulingError{
		Code:       CodeNoMatchingEvent,
		Message:    fmt.Sprintf("no event found matching %s", criteria),
		Suggestion: "list upcoming events to get the event identifier",
	}
}

// AmbiguousMatch creates an error listing the candidate event times so the
// caller can disambiguate.
func AmbiguousMatch(candidates []string) *SchedulingError {
	return &SchedulingError{
		Code:       CodeAmbiguousMatch,
		Message:    fmt.Sprintf("multiple events match: %s", strings.Join(candidates, ", ")),
		Suggestion: "narrow the request with an event identifier or an exact time",
	}
}

// GatewayUnavailable creates a transient gateway error.
func GatewayUnavailable(cause error) *SchedulingError {
	return &SchedulingError{
		Code:       CodeGatewayUnavailable,
		Message:    "calendar gateway unavailable",
		Suggestion: "try again in a moment",
		Cause:      cause,
	}
}

// GatewayRejected creates a permanent gateway rejection error.
func GatewayRejected(cause error) *SchedulingError {
	return &SchedulingError{
		Code:       CodeGatewayRejected,
		Message:    "calendar gateway rejected the request",
		Suggestion: "check calendar permissions for the requested attendees",
		Cause:      cause,
	}
}

// Timeout creates a deadline-exceeded error for the named operation.
func Timeout(op string, cause error) *SchedulingError {
	return &SchedulingError{
		Code:       CodeTimeout,
		Message:    fmt.Sprintf("%s timed out", op),
		Suggestion: "try again, or narrow the time range",
		Cause:      cause,
	}
}
