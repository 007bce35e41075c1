package sqsclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
)

// --- AWS SQS Queue Implementation ---

// AWSQueueConfig holds the settings for an SQSQueue.
type AWSQueueConfig struct {
	QueueURL string
	Region   string
	Receive  ReceiveSettings
}

// LoadDefaultAWSQueueConfig returns a config with the backend defaults: batches
// of 10, 5 second long-poll wait, 120 second visibility reservation.
func LoadDefaultAWSQueueConfig(queueURL, region string) *AWSQueueConfig {
	return &AWSQueueConfig{
		QueueURL: queueURL,
		Region:   region,
		Receive: ReceiveSettings{
			MaxMessages:       10,
			WaitSeconds:       5,
			VisibilitySeconds: 120,
		},
	}
}

// SQSAPI is the subset of the SQS client the adapter uses, kept narrow so tests
// can substitute a mock.
type SQSAPI interface {
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue adapts an SQS client to the Queue interface.
type SQSQueue struct {
	api      SQSAPI
	queueURL string
	receive  ReceiveSettings
	logger   zerolog.Logger
}

// NewSQSQueue builds the adapter and probes the queue with an attribute query.
// A probe failure (unreachable, unauthorized, nonexistent queue) is returned to
// the caller and must abort startup; there is no point polling a queue we
// cannot reach.
func NewSQSQueue(ctx context.Context, cfg *AWSQueueConfig, api SQSAPI, logger zerolog.Logger) (*SQSQueue, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("queue URL is required")
	}
	if err := cfg.Receive.Validate(); err != nil {
		return nil, fmt.Errorf("invalid receive settings: %w", err)
	}

	q := &SQSQueue{
		api:      api,
		queueURL: cfg.QueueURL,
		receive:  cfg.Receive,
		logger:   logger.With().Str("component", "SQSQueue").Str("queue", QueueName(cfg.QueueURL)).Logger(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	if _, err := q.Attributes(probeCtx); err != nil {
		return nil, fmt.Errorf("unable to connect to SQS queue %s: %w", cfg.QueueURL, err)
	}
	q.logger.Info().Msg("Connected to SQS queue")

	return q, nil
}

// NewSQSClient loads the default AWS credential chain for the given region and
// returns a real SQS client.
func NewSQSClient(ctx context.Context, region string) (*sqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg), nil
}

// Attributes queries the queue's approximate message counts.
func (q *SQSQueue) Attributes(ctx context.Context) (Snapshot, error) {
	out, err := q.api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(q.queueURL),
		AttributeNames: []sqstypes.QueueAttributeName{
			sqstypes.QueueAttributeNameApproximateNumberOfMessages,
			sqstypes.QueueAttributeNameApproximateNumberOfMessagesDelayed,
			sqstypes.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
		},
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load queue attributes: %w", err)
	}

	snap := Snapshot{
		Visible:    parseCount(out.Attributes[string(sqstypes.QueueAttributeNameApproximateNumberOfMessages)]),
		Delayed:    parseCount(out.Attributes[string(sqstypes.QueueAttributeNameApproximateNumberOfMessagesDelayed)]),
		NotVisible: parseCount(out.Attributes[string(sqstypes.QueueAttributeNameApproximateNumberOfMessagesNotVisible)]),
	}
	return snap, nil
}

// Receive long-polls the queue. An empty slice after the full wait is a normal
// result, not an error.
func (q *SQSQueue) Receive(ctx context.Context) ([]Message, error) {
	out, err := q.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: q.receive.MaxMessages,
		VisibilityTimeout:   q.receive.VisibilitySeconds,
		WaitTimeSeconds:     q.receive.WaitSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	batch := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		batch = append(batch, Message{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return batch, nil
}

// Delete acknowledges one delivery. SQS treats deletion of an expired or
// unknown receipt handle as an error; callers treat Delete as best-effort.
func (q *SQSQueue) Delete(ctx context.Context, msg Message) error {
	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message %s: %w", msg.ID, err)
	}
	return nil
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
