package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/illmade-knight/go-sqs-consumer/pkg/consumer"
	"github.com/illmade-knight/go-sqs-consumer/pkg/dispatch"
	"github.com/illmade-knight/go-sqs-consumer/pkg/health"
	"github.com/illmade-knight/go-sqs-consumer/pkg/metrics"
	"github.com/illmade-knight/go-sqs-consumer/pkg/sqsclient"
)

func main() {
	app := &cli.App{
		Name:  "queueworker",
		Usage: "Drain an SQS queue and dispatch each verified message",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Poll the queue until interrupted or the time budget is exhausted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "sqs-url",
						Usage:    "SQS queue URL",
						Required: true,
						EnvVars:  []string{"SQS_QUEUE_URL"},
					},
					&cli.StringFlag{
						Name:    "aws-region",
						Usage:   "AWS region of the queue",
						EnvVars: []string{"AWS_REGION"},
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of messages to fetch at a time (1-10)",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "wait-seconds",
						Usage: "Time to wait for messages with long polling",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "visibility-seconds",
						Usage: "Time to mark a message as reserved for this process",
						Value: 120,
					},
					&cli.IntFlag{
						Name:  "max-seconds",
						Usage: "Maximum time to process before exiting, 0 for unbounded",
					},
					&cli.BoolFlag{
						Name: "delete-failed-messages",
						Usage: "Delete messages that fail processing instead of leaving" +
							" them for redelivery or the dead-letter queue",
					},
					&cli.StringFlag{
						Name:  "healthcheck-path",
						Usage: "Path of the file to write healthcheck data, default is no healthcheck",
					},
					&cli.StringFlag{
						Name:    "redis-addr",
						Usage:   "Redis address for healthcheck data, alternative to a file",
						EnvVars: []string{"REDIS_ADDR"},
					},
					&cli.StringFlag{
						Name:  "redis-health-key",
						Usage: "Redis key under which healthcheck data is written",
						Value: "queueworker:healthcheck",
					},
					&cli.StringFlag{
						Name:    "statsd-addr",
						Usage:   "statsd agent address (host:port), default is no metrics",
						EnvVars: []string{"STATSD_ADDR"},
					},
					&cli.StringSliceFlag{
						Name:    "expected-topic",
						Usage:   "Topic ARN accepted by the routing validator, repeatable",
						EnvVars: []string{"EXPECTED_TOPICS"},
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "info",
						EnvVars: []string{"LOG_LEVEL"},
					},
				},
				Action: runWorker,
			},
			{
				Name:  "check",
				Usage: "Probe the healthcheck file for liveness",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "healthcheck-path",
						Usage:    "Path of the healthcheck file to probe",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "max-age",
						Usage: "Maximum snapshot age before the process is considered dead",
						Value: 120 * time.Second,
					},
				},
				Action: checkHealth,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("queueworker failed")
	}
}

func runWorker(c *cli.Context) error {
	logger := newLogger(c.String("log-level"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queueURL := c.String("sqs-url")
	queueName := sqsclient.QueueName(queueURL)

	logger.Info().
		Str("sqs_url", queueURL).
		Str("aws_region", c.String("aws-region")).
		Int("batch_size", c.Int("batch-size")).
		Int("wait_seconds", c.Int("wait-seconds")).
		Int("visibility_seconds", c.Int("visibility-seconds")).
		Int("max_seconds", c.Int("max-seconds")).
		Bool("delete_failed_messages", c.Bool("delete-failed-messages")).
		Str("healthcheck_path", c.String("healthcheck-path")).
		Msg("Starting queueworker")

	api, err := sqsclient.NewSQSClient(ctx, c.String("aws-region"))
	if err != nil {
		return err
	}
	queueCfg := &sqsclient.AWSQueueConfig{
		QueueURL: queueURL,
		Region:   c.String("aws-region"),
		Receive: sqsclient.ReceiveSettings{
			MaxMessages:       int32(c.Int("batch-size")),
			WaitSeconds:       int32(c.Int("wait-seconds")),
			VisibilitySeconds: int32(c.Int("visibility-seconds")),
		},
	}
	queue, err := sqsclient.NewSQSQueue(ctx, queueCfg, api, logger)
	if err != nil {
		return err
	}

	sink, closeSink, err := newMetricsSink(c.String("statsd-addr"), logger)
	if err != nil {
		return err
	}
	defer closeSink()

	healthSink, closeHealth, err := newHealthSink(ctx, c, logger)
	if err != nil {
		return err
	}
	defer closeHealth()

	// The dispatcher's pre-pause checkpoint needs the consumer's cumulative
	// stats, so the hook closes over the worker assigned below.
	var worker *consumer.Consumer
	dispatcher, err := dispatch.NewDispatcher(
		dispatch.DispatcherConfig{
			QueueName: queueName,
			Checkpoint: func(ctx context.Context) {
				if worker == nil {
					return
				}
				if err := worker.Checkpoint(ctx); err != nil {
					logger.Warn().Err(err).Msg("Failed to write health snapshot")
				}
			},
		},
		passthroughVerifier(),
		dispatch.NewTopicValidator(c.StringSlice("expected-topic")),
		loggingHandler(logger),
		sink,
		logger,
	)
	if err != nil {
		return err
	}

	worker, err = consumer.NewConsumer(
		consumer.Config{
			QueueName:            queueName,
			MaxRuntime:           time.Duration(c.Int("max-seconds")) * time.Second,
			DeleteFailedMessages: c.Bool("delete-failed-messages"),
		},
		queue,
		dispatcher,
		healthSink,
		sink,
		logger,
	)
	if err != nil {
		return err
	}

	// Message-level failures are counted in the summary, never escalated to
	// a non-zero exit.
	worker.Run(ctx)
	return nil
}

func checkHealth(c *cli.Context) error {
	record, err := health.ReadFile(c.String("healthcheck-path"))
	if err != nil {
		return err
	}
	if record.StaleAfter(time.Now().UTC(), c.Duration("max-age")) {
		return fmt.Errorf("healthcheck is stale: last snapshot at %s", record.Timestamp.Format(time.RFC3339))
	}
	fmt.Printf("OK: %d cycles, %d messages, last snapshot at %s\n",
		record.Cycles, record.TotalMessages, record.Timestamp.Format(time.RFC3339))
	return nil
}

func newLogger(level string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(logLevel).With().Timestamp().Logger()
}

func newMetricsSink(statsdAddr string, logger zerolog.Logger) (metrics.Sink, func(), error) {
	if statsdAddr == "" {
		return metrics.NopSink{}, func() {}, nil
	}
	sink, err := metrics.NewStatsdSink(statsdAddr, "queueworker.", logger)
	if err != nil {
		return nil, nil, err
	}
	return sink, func() { _ = sink.Close() }, nil
}

func newHealthSink(ctx context.Context, c *cli.Context, logger zerolog.Logger) (health.Writer, func(), error) {
	if path := c.String("healthcheck-path"); path != "" {
		writer, err := health.NewFileWriter(path)
		if err != nil {
			return nil, nil, err
		}
		return writer, func() {}, nil
	}
	if addr := c.String("redis-addr"); addr != "" {
		writer, err := health.NewRedisWriter(ctx, &health.RedisWriterConfig{
			Addr: addr,
			Key:  c.String("redis-health-key"),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return writer, func() { _ = writer.Close() }, nil
	}
	return health.NopWriter{}, func() {}, nil
}

// passthroughVerifier accepts every envelope unchanged. Deployments embed the
// consumer packages with a real signature verifier; the scaffold binary only
// needs the shape.
func passthroughVerifier() dispatch.Verifier {
	return dispatch.VerifierFunc(func(_ context.Context, body map[string]any) (map[string]any, error) {
		return body, nil
	})
}

// loggingHandler logs each verified message. It stands in for the business
// logic a deployment injects.
func loggingHandler(logger zerolog.Logger) dispatch.Handler {
	return dispatch.HandlerFunc(func(_ context.Context, topic, messageType string, _ map[string]any) error {
		logger.Info().Str("topic", topic).Str("message_type", messageType).Msg("Handled message")
		return nil
	})
}
