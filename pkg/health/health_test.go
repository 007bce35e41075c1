package health_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-sqs-consumer/pkg/health"
)

func testRecord(cycles int64) health.Record {
	return health.Record{
		Timestamp:            time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Cycles:               cycles,
		TotalMessages:        40,
		FailedMessages:       2,
		PauseCount:           1,
		QueueCount:           7,
		QueueCountDelayed:    3,
		QueueCountNotVisible: 4,
	}
}

func TestFileWriter_WriteAndReadBack(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "healthcheck.json")
	writer, err := health.NewFileWriter(path)
	require.NoError(t, err)

	// Act
	err = writer.Write(context.Background(), testRecord(5))
	require.NoError(t, err)

	// Assert
	record, err := health.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testRecord(5), record)
}

func TestFileWriter_OverwritesPriorSnapshot(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "healthcheck.json")
	writer, err := health.NewFileWriter(path)
	require.NoError(t, err)

	// Act
	require.NoError(t, writer.Write(context.Background(), testRecord(1)))
	require.NoError(t, writer.Write(context.Background(), testRecord(2)))

	// Assert: the file holds exactly one record, the latest.
	record, err := health.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.Cycles)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data), "file must hold a single valid JSON object, not appended records")
}

func TestFileWriter_SchemaFieldNames(t *testing.T) {
	// Arrange: external probes depend on the exact field names.
	path := filepath.Join(t.TempDir(), "healthcheck.json")
	writer, err := health.NewFileWriter(path)
	require.NoError(t, err)
	require.NoError(t, writer.Write(context.Background(), testRecord(5)))

	// Act
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	// Assert
	for _, key := range []string{
		"timestamp", "cycles", "total_messages", "failed_messages",
		"pause_count", "queue_count", "queue_count_delayed", "queue_count_not_visible",
	} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "2025-06-01T12:00:00Z", raw["timestamp"])
}

func TestNewFileWriter_RejectsMissingDirectory(t *testing.T) {
	_, err := health.NewFileWriter(filepath.Join(t.TempDir(), "missing", "healthcheck.json"))

	assert.Error(t, err)
}

func TestReadFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := health.ReadFile(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "healthcheck.json")
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

		_, err := health.ReadFile(path)
		assert.Error(t, err)
	})
}

func TestRecord_StaleAfter(t *testing.T) {
	record := testRecord(1)
	now := record.Timestamp.Add(2 * time.Minute)

	assert.False(t, record.StaleAfter(now, 3*time.Minute))
	assert.True(t, record.StaleAfter(now, time.Minute))
}

func TestNopWriter(t *testing.T) {
	assert.NoError(t, health.NopWriter{}.Write(context.Background(), testRecord(1)))
}
