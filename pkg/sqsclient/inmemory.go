package sqsclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryQueue is a thread-safe, in-memory Queue implementation for tests and
// local runs. It honors the long-poll wait, visibility-timeout redelivery, and
// delete-by-receipt-handle semantics of the real backend.
type InMemoryQueue struct {
	mu       sync.Mutex
	pending  []*inMemoryEntry
	inFlight map[string]*inMemoryEntry // keyed by receipt handle
	receive  ReceiveSettings
	arrived  chan struct{}
}

type inMemoryEntry struct {
	msg       Message
	visibleAt time.Time
}

// NewInMemoryQueue creates an empty in-memory queue.
func NewInMemoryQueue(receive ReceiveSettings) (*InMemoryQueue, error) {
	if err := receive.Validate(); err != nil {
		return nil, fmt.Errorf("invalid receive settings: %w", err)
	}
	return &InMemoryQueue{
		inFlight: make(map[string]*inMemoryEntry),
		receive:  receive,
		arrived:  make(chan struct{}, 1),
	}, nil
}

// Push enqueues a message body, assigning it a fresh message ID.
func (q *InMemoryQueue) Push(body string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := uuid.NewString()
	q.pending = append(q.pending, &inMemoryEntry{
		msg: Message{ID: id, Body: body},
	})
	select {
	case q.arrived <- struct{}{}:
	default:
	}
	return id
}

// Attributes reports the current approximate counts: pending messages are
// visible, reserved messages are not.
func (q *InMemoryQueue) Attributes(_ context.Context) (Snapshot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reclaimExpiredLocked()
	return Snapshot{
		Visible:    int64(len(q.pending)),
		NotVisible: int64(len(q.inFlight)),
	}, nil
}

// Receive long-polls: it returns as soon as at least one message is pending,
// or an empty batch once the configured wait has elapsed. Received messages
// are reserved for the visibility timeout and issued a fresh receipt handle.
func (q *InMemoryQueue) Receive(ctx context.Context) ([]Message, error) {
	deadline := time.NewTimer(time.Duration(q.receive.WaitSeconds) * time.Second)
	defer deadline.Stop()

	for {
		if batch := q.takeBatch(); len(batch) > 0 {
			return batch, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return []Message{}, nil
		case <-q.arrived:
		}
	}
}

// Delete removes a reserved message by receipt handle. An unknown or stale
// handle is not an error; deletion is best-effort.
func (q *InMemoryQueue) Delete(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, msg.ReceiptHandle)
	return nil
}

func (q *InMemoryQueue) takeBatch() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reclaimExpiredLocked()

	n := int(q.receive.MaxMessages)
	if n > len(q.pending) {
		n = len(q.pending)
	}
	if n == 0 {
		return nil
	}

	batch := make([]Message, 0, n)
	visibleAt := time.Now().Add(time.Duration(q.receive.VisibilitySeconds) * time.Second)
	for _, entry := range q.pending[:n] {
		entry.msg.ReceiptHandle = uuid.NewString()
		entry.visibleAt = visibleAt
		q.inFlight[entry.msg.ReceiptHandle] = entry
		batch = append(batch, entry.msg)
	}
	q.pending = q.pending[n:]
	return batch
}

// reclaimExpiredLocked returns messages whose visibility timeout has lapsed to
// the pending list, making them eligible for redelivery.
func (q *InMemoryQueue) reclaimExpiredLocked() {
	now := time.Now()
	for handle, entry := range q.inFlight {
		if now.After(entry.visibleAt) {
			delete(q.inFlight, handle)
			entry.msg.ReceiptHandle = ""
			q.pending = append(q.pending, entry)
		}
	}
}
