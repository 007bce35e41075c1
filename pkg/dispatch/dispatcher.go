package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-sqs-consumer/pkg/metrics"
	"github.com/illmade-knight/go-sqs-consumer/pkg/sqsclient"
)

// envelope fields carrying routing metadata.
const (
	topicField = "TopicArn"
	typeField  = "Type"
)

// DispatcherConfig holds the settings for a Dispatcher.
type DispatcherConfig struct {
	// QueueName tags emitted metrics with the queue's logical name.
	QueueName string

	// PauseDuration is the fixed sleep before the single transient-error
	// retry. Defaults to one second.
	PauseDuration time.Duration

	// Checkpoint, if set, is invoked before a transient-error pause so
	// external monitors see progress before the process goes quiet.
	Checkpoint func(ctx context.Context)
}

// Dispatcher parses one raw message, verifies it, routes it to business logic,
// and classifies the result. A transient handler failure earns exactly one
// retry after a fixed pause; the queue's own redelivery covers everything else.
type Dispatcher struct {
	verifier   Verifier
	router     RouteValidator
	handler    Handler
	pause      time.Duration
	checkpoint func(ctx context.Context)
	sink       metrics.Sink
	queueTag   string
	logger     zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	cfg DispatcherConfig,
	verifier Verifier,
	router RouteValidator,
	handler Handler,
	sink metrics.Sink,
	logger zerolog.Logger,
) (*Dispatcher, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verifier cannot be nil")
	}
	if router == nil {
		return nil, fmt.Errorf("route validator cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if cfg.PauseDuration <= 0 {
		cfg.PauseDuration = time.Second
	}
	checkpoint := cfg.Checkpoint
	if checkpoint == nil {
		checkpoint = func(context.Context) {}
	}

	return &Dispatcher{
		verifier:   verifier,
		router:     router,
		handler:    handler,
		pause:      cfg.PauseDuration,
		checkpoint: checkpoint,
		sink:       sink,
		queueTag:   metrics.Tag("queue", cfg.QueueName),
		logger:     logger.With().Str("component", "Dispatcher").Logger(),
	}, nil
}

// Dispatch processes one message to a terminal Outcome. It never returns an
// error: every failure mode is classified and reported as data.
func (d *Dispatcher) Dispatch(ctx context.Context, msg sqsclient.Message) Outcome {
	d.sink.Incr("message_processed", d.queueTag)
	out := Outcome{Success: true, MessageID: msg.ID}

	var body map[string]any
	if err := json.Unmarshal([]byte(msg.Body), &body); err != nil {
		out.Success = false
		out.Error = fmt.Sprintf("failed to parse message body: %v", err)
		out.QuotedBody = strconv.Quote(msg.Body)
		return out
	}

	verified, err := d.verifier.Verify(ctx, body)
	if err != nil {
		d.logger.Error().Err(err).Str("msg_id", msg.ID).Msg("Failed message verification")
		out.Success = false
		out.Error = fmt.Sprintf("failed verification: %v", err)
		return out
	}

	topic, _ := verified[topicField].(string)
	messageType, _ := verified[typeField].(string)
	if err = d.router.Validate(topic, messageType); err != nil {
		out.Success = false
		out.Error = err.Error()
		return out
	}

	if err = d.handler.Handle(ctx, topic, messageType, verified); err != nil {
		return d.resolveHandlerError(ctx, msg, topic, messageType, verified, err, out)
	}
	return out
}

// resolveHandlerError classifies a handler failure and runs the single-shot
// retry policy for transient conditions.
func (d *Dispatcher) resolveHandlerError(
	ctx context.Context,
	msg sqsclient.Message,
	topic, messageType string,
	verified map[string]any,
	err error,
	out Outcome,
) Outcome {
	d.sink.Incr("message_error", d.queueTag)
	code, coded := ErrorCode(err)
	if !coded || Classify(code) == Permanent {
		d.logger.Error().Err(err).Str("msg_id", msg.ID).Str("error_code", code).Msg("Handler failed")
		out.Success = false
		out.Error = err.Error()
		out.ErrorCode = code
		return out
	}

	// Transient condition: checkpoint, pause once, retry once.
	d.sink.Incr("message_temp_error", d.queueTag)
	d.logger.Error().Err(err).Str("msg_id", msg.ID).Str("error_code", code).
		Dur("pause", d.pause).Msg("Temporary handler error, pausing before retry")
	d.checkpoint(ctx)

	pauseStart := time.Now()
	sleepContext(ctx, d.pause)
	out.PauseCount = 1
	out.PauseTime = time.Since(pauseStart)
	out.PauseError = err.Error()

	if retryErr := d.handler.Handle(ctx, topic, messageType, verified); retryErr != nil {
		d.sink.Incr("message_error", d.queueTag)
		retryCode, _ := ErrorCode(retryErr)
		d.logger.Error().Err(retryErr).Str("msg_id", msg.ID).Str("error_code", retryCode).Msg("Handler failed after pause")
		out.Success = false
		out.Error = retryErr.Error()
		out.ErrorCode = retryCode
		return out
	}

	d.logger.Info().Str("msg_id", msg.ID).Msg("Handler succeeded after pause")
	return out
}

// sleepContext sleeps for the given duration or until the context is done,
// whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
