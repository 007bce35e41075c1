package metrics

import (
	"fmt"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog"
)

// StatsdSink emits metrics to a statsd agent. Emission errors are logged and
// otherwise ignored; metrics must never interfere with message processing.
type StatsdSink struct {
	client statsd.ClientInterface
	logger zerolog.Logger
}

// NewStatsdSink connects to the statsd agent at addr (host:port).
func NewStatsdSink(addr, namespace string, logger zerolog.Logger) (*StatsdSink, error) {
	client, err := statsd.New(addr, statsd.WithNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}
	return &StatsdSink{
		client: client,
		logger: logger.With().Str("component", "StatsdSink").Logger(),
	}, nil
}

func (s *StatsdSink) Incr(name string, tags ...string) {
	if err := s.client.Incr(name, tags, 1); err != nil {
		s.logger.Warn().Err(err).Str("metric", name).Msg("Failed to emit counter")
	}
}

func (s *StatsdSink) Gauge(name string, value float64, tags ...string) {
	if err := s.client.Gauge(name, value, tags, 1); err != nil {
		s.logger.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge")
	}
}

// Close flushes buffered metrics and releases the client.
func (s *StatsdSink) Close() error {
	return s.client.Close()
}
