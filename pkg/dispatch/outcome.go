package dispatch

import "time"

// Outcome is the terminal result of dispatching one message. It is data, not
// control flow: the batch processor consumes it to decide deletion and
// counting, and failures never abort the batch.
type Outcome struct {
	// Success is true when the handler completed, including on a successful
	// retry after a transient pause.
	Success bool

	// MessageID is the queue-assigned identifier of the dispatched message.
	MessageID string

	// Error describes the failure. Empty on success.
	Error string

	// ErrorCode is the lowercased backend error code for handler failures.
	// When a retry was taken, this is the code of the second failure.
	ErrorCode string

	// QuotedBody holds a safely-escaped copy of the raw payload when it could
	// not be parsed, for diagnostics.
	QuotedBody string

	// Pause metadata survives even when the retry succeeds, so pauses stay
	// visible to operators.
	PauseCount int
	PauseTime  time.Duration
	PauseError string
}
