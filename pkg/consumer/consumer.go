package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-sqs-consumer/pkg/dispatch"
	"github.com/illmade-knight/go-sqs-consumer/pkg/health"
	"github.com/illmade-knight/go-sqs-consumer/pkg/metrics"
	"github.com/illmade-knight/go-sqs-consumer/pkg/sqsclient"
)

// ====================================================================================
// This file contains the poll loop and the per-batch processor. One logical
// thread of control: a batch is processed fully before the next fetch, and the
// only blocking points are the long-poll receive and the transient-error pause.
// ====================================================================================

// Dispatcher resolves one message to a terminal outcome. *dispatch.Dispatcher
// satisfies this; tests substitute their own.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg sqsclient.Message) dispatch.Outcome
}

// Config holds the settings for a Consumer.
type Config struct {
	// QueueName tags emitted gauges with the queue's logical name.
	QueueName string

	// MaxRuntime bounds the total run; zero means run until interrupted.
	// The budget is checked at the top of each cycle, before fetching.
	MaxRuntime time.Duration

	// DeleteFailedMessages deletes messages that failed processing instead of
	// leaving them for the queue's redelivery or dead-letter handling.
	DeleteFailedMessages bool

	// ReceiveBackoff is the pause after a failed receive call, so a broken
	// backend does not spin the loop hot. Defaults to one second.
	ReceiveBackoff time.Duration
}

// Consumer drains a queue until interrupted or its time budget is exhausted.
type Consumer struct {
	cfg        Config
	queue      sqsclient.Queue
	dispatcher Dispatcher
	healthSink health.Writer
	sink       metrics.Sink
	logger     zerolog.Logger
	queueTag   string

	// Mutated only by the poll loop goroutine.
	stats        RunStats
	lastSnapshot sqsclient.Snapshot
}

// NewConsumer creates a Consumer.
func NewConsumer(
	cfg Config,
	queue sqsclient.Queue,
	dispatcher Dispatcher,
	healthSink health.Writer,
	sink metrics.Sink,
	logger zerolog.Logger,
) (*Consumer, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if healthSink == nil {
		healthSink = health.NopWriter{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if cfg.ReceiveBackoff <= 0 {
		cfg.ReceiveBackoff = time.Second
	}

	return &Consumer{
		cfg:        cfg,
		queue:      queue,
		dispatcher: dispatcher,
		healthSink: healthSink,
		sink:       sink,
		logger:     logger.With().Str("component", "Consumer").Str("queue", cfg.QueueName).Logger(),
		queueTag:   metrics.Tag("queue", cfg.QueueName),
	}, nil
}

// Run polls the queue until the context is cancelled or the time budget is
// exhausted. Message-level failures are counted, never escalated; the returned
// Summary always carries a known exit reason.
func (c *Consumer) Run(ctx context.Context) Summary {
	exitOn := ExitUnknown
	c.stats = RunStats{StartTime: time.Now()}
	c.logger.Info().
		Dur("max_runtime", c.cfg.MaxRuntime).
		Bool("delete_failed_messages", c.cfg.DeleteFailedMessages).
		Msg("Starting queue consumer")

loop:
	for {
		// Cancellation is observed at the top of the loop, after the previous
		// cycle's bookkeeping has fully completed.
		select {
		case <-ctx.Done():
			exitOn = ExitInterrupt
			break loop
		default:
		}

		cycleStart := time.Now()
		stats := CycleStats{}

		loadStart := time.Now()
		snapshot, err := c.queue.Attributes(ctx)
		stats.QueueLoad = time.Since(loadStart)
		if err != nil {
			if ctx.Err() != nil {
				exitOn = ExitInterrupt
				break loop
			}
			// Stale gauges are tolerable; a dead queue will also fail the
			// receive call below.
			c.logger.Error().Err(err).Msg("Failed to refresh queue attributes")
			snapshot = c.lastSnapshot
		} else {
			c.lastSnapshot = snapshot
			c.emitQueueGauges(snapshot)
		}
		stats.Snapshot = snapshot

		if c.cfg.MaxRuntime > 0 && time.Since(c.stats.StartTime) >= c.cfg.MaxRuntime {
			exitOn = ExitMaxSeconds
			break loop
		}

		pollStart := time.Now()
		batch, err := c.queue.Receive(ctx)
		stats.Poll = time.Since(pollStart)
		if err != nil {
			if ctx.Err() != nil {
				exitOn = ExitInterrupt
				break loop
			}
			c.logger.Error().Err(err).Msg("Failed to receive messages")
			c.sink.Incr("queue_receive_error", c.queueTag)
			sleepContext(ctx, c.cfg.ReceiveBackoff)
			continue
		}
		stats.Fetched = len(batch)

		stats.Batch = c.ProcessBatch(ctx, batch)

		c.stats.Cycles++
		c.stats.TotalMessages += int64(stats.Fetched)
		c.stats.FailedMessages += int64(stats.Batch.Failed)
		c.stats.PauseCount += int64(stats.Batch.PauseCount)
		stats.Cycle = time.Since(cycleStart)
		c.logCycle(stats)

		if err = c.Checkpoint(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to write health snapshot")
		}
	}

	summary := Summary{
		ExitOn:         exitOn,
		Cycles:         c.stats.Cycles,
		Elapsed:        time.Since(c.stats.StartTime),
		TotalMessages:  c.stats.TotalMessages,
		FailedMessages: c.stats.FailedMessages,
		PauseCount:     c.stats.PauseCount,
	}
	c.logSummary(summary)
	return summary
}

// ProcessBatch dispatches each message in turn and applies the deletion
// policy. Failures are data, not control flow: the loop always completes for
// every message in the batch.
func (c *Consumer) ProcessBatch(ctx context.Context, batch []sqsclient.Message) BatchResult {
	var result BatchResult
	var total time.Duration

	for _, msg := range batch {
		msgStart := time.Now()
		outcome := c.dispatcher.Dispatch(ctx, msg)
		took := time.Since(msgStart)
		total += took

		if !outcome.Success {
			result.Failed++
		}
		result.PauseCount += outcome.PauseCount
		result.PauseTime += outcome.PauseTime

		if outcome.Success || c.cfg.DeleteFailedMessages {
			// Best-effort: a delete that races a visibility expiry just means
			// the queue redelivers.
			if err := c.queue.Delete(ctx, msg); err != nil {
				c.logger.Warn().Err(err).Str("msg_id", msg.ID).Msg("Failed to delete message, leaving for redelivery")
			}
		}

		c.logOutcome(outcome, took)
	}

	// Pauses are a separate concern from work time.
	result.ProcessTime = total - result.PauseTime
	return result
}

// Checkpoint writes a health snapshot of the current cumulative stats and the
// last observed queue counts. The dispatcher also calls this before a
// transient-error pause, so monitors see progress before the process goes quiet.
func (c *Consumer) Checkpoint(ctx context.Context) error {
	return c.healthSink.Write(ctx, health.Record{
		Timestamp:            time.Now().UTC(),
		Cycles:               c.stats.Cycles,
		TotalMessages:        c.stats.TotalMessages,
		FailedMessages:       c.stats.FailedMessages,
		PauseCount:           c.stats.PauseCount,
		QueueCount:           c.lastSnapshot.Visible,
		QueueCountDelayed:    c.lastSnapshot.Delayed,
		QueueCountNotVisible: c.lastSnapshot.NotVisible,
	})
}

func (c *Consumer) emitQueueGauges(snapshot sqsclient.Snapshot) {
	c.sink.Gauge("queue_count", float64(snapshot.Visible), c.queueTag)
	c.sink.Gauge("queue_count_delayed", float64(snapshot.Delayed), c.queueTag)
	c.sink.Gauge("queue_count_not_visible", float64(snapshot.NotVisible), c.queueTag)
}

func (c *Consumer) logOutcome(outcome dispatch.Outcome, took time.Duration) {
	event := c.logger.Debug()
	if !outcome.Success {
		event = c.logger.Info()
	}
	event = event.
		Bool("success", outcome.Success).
		Str("msg_id", outcome.MessageID).
		Dur("message_process_time", took)
	if outcome.Error != "" {
		event = event.Str("error", outcome.Error)
	}
	if outcome.ErrorCode != "" {
		event = event.Str("client_error_code", outcome.ErrorCode)
	}
	if outcome.QuotedBody != "" {
		event = event.Str("message_body_quoted", outcome.QuotedBody)
	}
	if outcome.PauseCount > 0 {
		event = event.
			Int("pause_count", outcome.PauseCount).
			Dur("pause_time", outcome.PauseTime).
			Str("pause_error", outcome.PauseError)
	}
	event.Msg("Message processed")
}

func (c *Consumer) logCycle(stats CycleStats) {
	event := c.logger.Debug()
	if stats.Fetched > 0 {
		event = c.logger.Info()
	}
	event = event.
		Int64("cycle_num", c.stats.Cycles-1).
		Int("message_count", stats.Fetched).
		Int64("message_total", c.stats.TotalMessages).
		Dur("queue_load_time", stats.QueueLoad).
		Dur("poll_time", stats.Poll).
		Dur("process_time", stats.Batch.ProcessTime).
		Dur("cycle_time", stats.Cycle).
		Int64("queue_count", stats.Snapshot.Visible).
		Int64("queue_count_delayed", stats.Snapshot.Delayed).
		Int64("queue_count_not_visible", stats.Snapshot.NotVisible)
	if stats.Batch.Failed > 0 {
		event = event.Int("failed_count", stats.Batch.Failed)
	}
	if stats.Batch.PauseCount > 0 {
		event = event.
			Int("pause_count", stats.Batch.PauseCount).
			Dur("pause_time", stats.Batch.PauseTime)
	}
	event.Msgf("Cycle %d: processed %d messages", c.stats.Cycles-1, stats.Fetched)
}

func (c *Consumer) logSummary(summary Summary) {
	event := c.logger.Info().
		Str("exit_on", string(summary.ExitOn)).
		Int64("cycles", summary.Cycles).
		Dur("total_time", summary.Elapsed).
		Int64("total_messages", summary.TotalMessages)
	if summary.FailedMessages > 0 {
		event = event.Int64("failed_messages", summary.FailedMessages)
	}
	if summary.PauseCount > 0 {
		event = event.Int64("pause_count", summary.PauseCount)
	}
	event.Msg("Exiting queue consumer")
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
