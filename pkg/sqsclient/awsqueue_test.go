package sqsclient_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-sqs-consumer/pkg/sqsclient"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/inbound-queue"

// mockSQSAPI is a scripted implementation of the SQS API subset the adapter uses.
type mockSQSAPI struct {
	attributes    map[string]string
	attributesErr error
	messages      []sqstypes.Message
	receiveErr    error
	receiveInput  *sqs.ReceiveMessageInput
	deletedHandle string
	deleteErr     error
}

func (m *mockSQSAPI) GetQueueAttributes(_ context.Context, _ *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	if m.attributesErr != nil {
		return nil, m.attributesErr
	}
	return &sqs.GetQueueAttributesOutput{Attributes: m.attributes}, nil
}

func (m *mockSQSAPI) ReceiveMessage(_ context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	m.receiveInput = params
	if m.receiveErr != nil {
		return nil, m.receiveErr
	}
	return &sqs.ReceiveMessageOutput{Messages: m.messages}, nil
}

func (m *mockSQSAPI) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	m.deletedHandle = aws.ToString(params.ReceiptHandle)
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	return &sqs.DeleteMessageOutput{}, nil
}

func healthyAttributes() map[string]string {
	return map[string]string{
		string(sqstypes.QueueAttributeNameApproximateNumberOfMessages):           "12",
		string(sqstypes.QueueAttributeNameApproximateNumberOfMessagesDelayed):    "3",
		string(sqstypes.QueueAttributeNameApproximateNumberOfMessagesNotVisible): "4",
	}
}

func newTestQueue(t *testing.T, api sqsclient.SQSAPI) *sqsclient.SQSQueue {
	t.Helper()
	cfg := sqsclient.LoadDefaultAWSQueueConfig(testQueueURL, "us-east-1")
	queue, err := sqsclient.NewSQSQueue(context.Background(), cfg, api, zerolog.Nop())
	require.NoError(t, err)
	return queue
}

func TestNewSQSQueue_ProbeFailureAbortsStartup(t *testing.T) {
	// Arrange
	api := &mockSQSAPI{attributesErr: errors.New("access denied")}
	cfg := sqsclient.LoadDefaultAWSQueueConfig(testQueueURL, "us-east-1")

	// Act
	queue, err := sqsclient.NewSQSQueue(context.Background(), cfg, api, zerolog.Nop())

	// Assert
	require.Error(t, err)
	assert.Nil(t, queue)
	assert.Contains(t, err.Error(), "unable to connect to SQS queue")
}

func TestNewSQSQueue_RejectsInvalidSettings(t *testing.T) {
	testCases := []struct {
		name    string
		receive sqsclient.ReceiveSettings
	}{
		{"batch too large", sqsclient.ReceiveSettings{MaxMessages: 11, WaitSeconds: 5, VisibilitySeconds: 120}},
		{"batch too small", sqsclient.ReceiveSettings{MaxMessages: 0, WaitSeconds: 5, VisibilitySeconds: 120}},
		{"no wait", sqsclient.ReceiveSettings{MaxMessages: 10, WaitSeconds: 0, VisibilitySeconds: 120}},
		{"no visibility", sqsclient.ReceiveSettings{MaxMessages: 10, WaitSeconds: 5, VisibilitySeconds: 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &sqsclient.AWSQueueConfig{QueueURL: testQueueURL, Receive: tc.receive}

			_, err := sqsclient.NewSQSQueue(context.Background(), cfg, &mockSQSAPI{attributes: healthyAttributes()}, zerolog.Nop())

			assert.Error(t, err)
		})
	}
}

func TestSQSQueue_Attributes(t *testing.T) {
	// Arrange
	api := &mockSQSAPI{attributes: healthyAttributes()}
	queue := newTestQueue(t, api)

	// Act
	snapshot, err := queue.Attributes(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(12), snapshot.Visible)
	assert.Equal(t, int64(3), snapshot.Delayed)
	assert.Equal(t, int64(4), snapshot.NotVisible)
}

func TestSQSQueue_Receive(t *testing.T) {
	// Arrange
	api := &mockSQSAPI{
		attributes: healthyAttributes(),
		messages: []sqstypes.Message{
			{MessageId: aws.String("m1"), Body: aws.String(`{"a":1}`), ReceiptHandle: aws.String("rh1")},
			{MessageId: aws.String("m2"), Body: aws.String(`{"b":2}`), ReceiptHandle: aws.String("rh2")},
		},
	}
	queue := newTestQueue(t, api)

	// Act
	batch, err := queue.Receive(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, sqsclient.Message{ID: "m1", Body: `{"a":1}`, ReceiptHandle: "rh1"}, batch[0])
	assert.Equal(t, sqsclient.Message{ID: "m2", Body: `{"b":2}`, ReceiptHandle: "rh2"}, batch[1])

	// The configured long-poll parameters travel on the request.
	require.NotNil(t, api.receiveInput)
	assert.Equal(t, int32(10), api.receiveInput.MaxNumberOfMessages)
	assert.Equal(t, int32(5), api.receiveInput.WaitTimeSeconds)
	assert.Equal(t, int32(120), api.receiveInput.VisibilityTimeout)
}

func TestSQSQueue_Delete(t *testing.T) {
	// Arrange
	api := &mockSQSAPI{attributes: healthyAttributes()}
	queue := newTestQueue(t, api)

	// Act
	err := queue.Delete(context.Background(), sqsclient.Message{ID: "m1", ReceiptHandle: "rh1"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "rh1", api.deletedHandle)
}

func TestSQSQueue_DeleteError(t *testing.T) {
	// Arrange
	api := &mockSQSAPI{attributes: healthyAttributes(), deleteErr: errors.New("ReceiptHandleIsInvalid")}
	queue := newTestQueue(t, api)

	// Act
	err := queue.Delete(context.Background(), sqsclient.Message{ID: "m1", ReceiptHandle: "stale"})

	// Assert: the adapter surfaces the error; callers treat it as best-effort.
	assert.Error(t, err)
}

func TestQueueName(t *testing.T) {
	assert.Equal(t, "inbound-queue", sqsclient.QueueName(testQueueURL))
	assert.Equal(t, "plain", sqsclient.QueueName("plain"))
}
