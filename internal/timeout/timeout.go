// Package timeout defines centralized timeout and retry constants for
// external calls made by the scheduling agent.
package timeout

import "time"

const (
	// RequestTimeout is the end-to-end budget for processing one query.
	RequestTimeout = 30 * time.Second

	// GatewayCallTimeout is the timeout for a single calendar gateway call.
	GatewayCallTimeout = 10 * time.Second

	// GatewayMaxAttempts is the number of attempts for transient gateway
	// failures before surfacing GatewayUnavailable.
	GatewayMaxAttempts = 3

	// GatewayRetryDelay is the base delay between gateway retry attempts.
	GatewayRetryDelay = 500 * time.Millisecond

	// BusyFetchTimeout bounds the joined fan-out fetch of busy intervals
	// across attendees. Exceeding it fails the whole slot search.
	BusyFetchTimeout = 15 * time.Second

	// OracleTimeout is the timeout for a disambiguation oracle call.
	OracleTimeout = 20 * time.Second

	// DefaultMeetingDuration is used when no duration is specified.
	DefaultMeetingDuration = time.Hour

	// DefaultSearchDays is the bounded lookahead window for event matching
	// and free-slot search.
	DefaultSearchDays = 7
)
