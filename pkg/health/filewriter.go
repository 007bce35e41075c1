package health

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileWriter persists snapshots to a JSON file. Each write replaces the file
// atomically (write to a temp file, then rename) so a reader never observes a
// partial record.
type FileWriter struct {
	path string
}

// NewFileWriter verifies the target directory is writable up front, so a bad
// path fails at startup rather than on the first snapshot.
func NewFileWriter(path string) (*FileWriter, error) {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("healthcheck directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("healthcheck path parent %s is not a directory", dir)
	}
	return &FileWriter{path: path}, nil
}

func (w *FileWriter) Write(_ context.Context, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal health record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("failed to create temp health file: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write health record: %w", err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp health file: %w", err)
	}
	if err = os.Rename(tmp.Name(), w.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace health file: %w", err)
	}
	return nil
}

// ReadFile loads the snapshot from a health file, for liveness probes.
func ReadFile(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read health file: %w", err)
	}
	var record Record
	if err = json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("failed to parse health file: %w", err)
	}
	return record, nil
}
