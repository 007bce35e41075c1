package health

import (
	"context"
	"time"
)

// ====================================================================================
// This file defines the health snapshot record and the Writer contract. A
// snapshot is overwritten, never appended, so a reader always sees the latest
// state; a reader that finds a stale timestamp should treat the process as dead.
// ====================================================================================

// Record is one point-in-time operational snapshot.
type Record struct {
	// Timestamp is the snapshot time in UTC, RFC3339 format.
	Timestamp time.Time `json:"timestamp"`

	// Cycles is the number of completed poll cycles since process start.
	Cycles int64 `json:"cycles"`

	// TotalMessages counts every message processed, with or without errors.
	TotalMessages int64 `json:"total_messages"`

	// FailedMessages counts messages that failed processing.
	FailedMessages int64 `json:"failed_messages"`

	// PauseCount counts transient-error pauses taken.
	PauseCount int64 `json:"pause_count"`

	// Approximate queue sizes at the last attribute refresh.
	QueueCount           int64 `json:"queue_count"`
	QueueCountDelayed    int64 `json:"queue_count_delayed"`
	QueueCountNotVisible int64 `json:"queue_count_not_visible"`
}

// StaleAfter reports whether the record is older than maxAge at time now.
func (r Record) StaleAfter(now time.Time, maxAge time.Duration) bool {
	return now.Sub(r.Timestamp) > maxAge
}

// Writer persists a snapshot to a sink, replacing any prior snapshot.
type Writer interface {
	Write(ctx context.Context, record Record) error
}

// NopWriter is the Writer used when no health sink is configured.
type NopWriter struct{}

func (NopWriter) Write(context.Context, Record) error { return nil }
