package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Record is one archived live session: the full session document plus
// enough envelope to read it back across format versions.
type Record struct {
	Version    string                 `json:"version"`
	ArchivedAt time.Time              `json:"archived_at"`
	Session    json.RawMessage        `json:"session"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Storage is where archive records live. Implementations cover local
// disk and S3.
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Store writes and reads archive records against a Storage backend.
type Store struct {
	storage Storage
	version string
}

func NewStore(storage Storage, version string) *Store {
	return &Store{
		storage: storage,
		version: version,
	}
}

// Write stamps the record and persists it under name.
func (s *Store) Write(ctx context.Context, name string, record *Record) error {
	record.Version = s.version
	record.ArchivedAt = time.Now()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal archive record: %w", err)
	}

	if err := s.storage.Save(ctx, name, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save archive record: %w", err)
	}

	return nil
}

// Read loads the named record.
func (s *Store) Read(ctx context.Context, name string) (*Record, error) {
	reader, err := s.storage.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive record: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archive record: %w", err)
	}

	return &record, nil
}

// List names every record under the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return s.storage.List(ctx, prefix)
}

// Delete removes the named record.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.storage.Delete(ctx, name)
}
