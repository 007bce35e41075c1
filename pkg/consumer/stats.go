package consumer

import (
	"time"

	"github.com/illmade-knight/go-sqs-consumer/pkg/sqsclient"
)

// ExitReason records why the poll loop stopped.
type ExitReason string

const (
	// ExitInterrupt means operator cancellation was observed.
	ExitInterrupt ExitReason = "interrupt"
	// ExitMaxSeconds means the configured total-runtime budget was exhausted.
	ExitMaxSeconds ExitReason = "max_seconds"
	// ExitUnknown means the loop stopped without matching a known condition.
	// It must never surface in normal operation; seeing it signals a logic gap.
	ExitUnknown ExitReason = "unknown"
)

// RunStats are the cumulative counters for the process lifetime. They have a
// single owner, the poll loop, which mutates them only after a cycle fully
// completes; nothing else writes them, so no locking is needed.
type RunStats struct {
	StartTime      time.Time
	Cycles         int64
	TotalMessages  int64
	FailedMessages int64
	PauseCount     int64
}

// BatchResult is the accounting fragment produced by processing one batch.
type BatchResult struct {
	// Failed counts messages whose outcome was a failure. Succeeded messages
	// are len(batch) - Failed; every message lands in exactly one bucket.
	Failed int

	// PauseCount and PauseTime accumulate transient-error pauses taken while
	// dispatching the batch.
	PauseCount int
	PauseTime  time.Duration

	// ProcessTime is the work time spent dispatching, excluding pauses.
	ProcessTime time.Duration
}

// CycleStats collects one poll cycle's counters and phase timings, logged and
// then discarded.
type CycleStats struct {
	Fetched   int
	Batch     BatchResult
	Snapshot  sqsclient.Snapshot
	QueueLoad time.Duration
	Poll      time.Duration
	Cycle     time.Duration
}

// Summary is the final report produced when the poll loop exits.
type Summary struct {
	ExitOn         ExitReason
	Cycles         int64
	Elapsed        time.Duration
	TotalMessages  int64
	FailedMessages int64
	PauseCount     int64
}
