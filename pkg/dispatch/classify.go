package dispatch

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// Kind classifies a backend error code.
type Kind int

const (
	// Permanent errors fail the message; the queue's redelivery or dead-letter
	// handling takes over.
	Permanent Kind = iota
	// Transient errors are expected to clear shortly and earn one retry after
	// a fixed pause.
	Transient
)

// transientCodeFragments are matched case-insensitively against backend error
// codes. Throttling responses and explicit pause requests are the only
// conditions worth an in-process retry; everything else is the queue's problem.
var transientCodeFragments = []string{"throttling", "pause"}

// Classify reports whether a backend error code names a transient condition.
func Classify(code string) Kind {
	lower := strings.ToLower(code)
	for _, fragment := range transientCodeFragments {
		if strings.Contains(lower, fragment) {
			return Transient
		}
	}
	return Permanent
}

// ErrorCode extracts the machine-readable code from a backend error, lowercased.
// The second return is false when the error carries no code (a plain error from
// the handler, not an API failure).
func ErrorCode(err error) (string, bool) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return strings.ToLower(apiErr.ErrorCode()), true
	}
	return "", false
}
