package sqsclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ====================================================================================
// This file defines the core interface and types for a queue source. It is the
// contract the consumer polls against; implementations live alongside it
// (AWS SQS and an in-memory queue for tests and local runs).
// ====================================================================================

// Message is one delivery from the queue. It is immutable once received; the
// ReceiptHandle is the opaque token required to delete this specific delivery.
type Message struct {
	// ID is the backend-assigned unique identifier for the message.
	ID string

	// Body is the raw payload as delivered by the queue.
	Body string

	// ReceiptHandle acknowledges this delivery. It is only valid until the
	// message's visibility timeout expires.
	ReceiptHandle string
}

// Snapshot holds the queue's approximate message counts, refreshed once per
// poll cycle. Counts are always non-negative.
type Snapshot struct {
	// Visible is the approximate number of messages available for receiving.
	Visible int64

	// Delayed is the approximate number of messages not yet ready for receiving.
	Delayed int64

	// NotVisible is the approximate number of messages reserved by a receiver.
	NotVisible int64
}

// Queue is the narrow contract over a queue backend's receive/delete/attribute
// operations. Receive long-polls: it returns as soon as at least one message is
// available, or an empty slice after the configured wait elapses.
//
// Delete is best-effort at this layer: deleting an already-deleted or expired
// receipt handle must not fail the batch loop.
type Queue interface {
	Attributes(ctx context.Context) (Snapshot, error)
	Receive(ctx context.Context) ([]Message, error)
	Delete(ctx context.Context, msg Message) error
}

// ReceiveSettings bound a Receive call. The backend caps MaxMessages at 10 per
// request; Wait and Visibility are in whole seconds per the SQS API.
type ReceiveSettings struct {
	MaxMessages       int32
	WaitSeconds       int32
	VisibilitySeconds int32
}

// Validate enforces the backend's documented limits.
func (s ReceiveSettings) Validate() error {
	if s.MaxMessages < 1 || s.MaxMessages > 10 {
		return fmt.Errorf("max messages must be between 1 and 10, got %d", s.MaxMessages)
	}
	if s.WaitSeconds <= 0 {
		return fmt.Errorf("wait seconds must be positive, got %d", s.WaitSeconds)
	}
	if s.VisibilitySeconds <= 0 {
		return fmt.Errorf("visibility seconds must be positive, got %d", s.VisibilitySeconds)
	}
	return nil
}

// QueueName extracts the queue's logical name from its URL: the last path
// segment. Used to tag metrics with the queue identity.
func QueueName(queueURL string) string {
	u, err := url.Parse(queueURL)
	if err != nil {
		return queueURL
	}
	parts := strings.Split(u.Path, "/")
	return parts[len(parts)-1]
}
