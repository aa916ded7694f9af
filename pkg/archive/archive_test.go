package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStore_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	store := NewStore(storage, "1.0.0")

	session := map[string]interface{}{
		"id":        "session-1",
		"course_id": "course-1",
		"status":    "ended",
	}
	raw, _ := json.Marshal(session)

	record := &Record{
		Session: raw,
		Metadata: map[string]interface{}{
			"roster_peak": 4,
		},
	}

	if err := store.Write(context.Background(), "session-1.json", record); err != nil {
		t.Fatalf("failed to write record: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "session-1.json")); os.IsNotExist(err) {
		t.Fatal("archive file does not exist")
	}

	restored, err := store.Read(context.Background(), "session-1.json")
	if err != nil {
		t.Fatalf("failed to read record: %v", err)
	}

	if restored.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", restored.Version)
	}
	if restored.ArchivedAt.IsZero() {
		t.Error("expected archive timestamp to be stamped")
	}

	var got map[string]interface{}
	if err := json.Unmarshal(restored.Session, &got); err != nil {
		t.Fatalf("failed to unmarshal session: %v", err)
	}
	if got["id"] != "session-1" {
		t.Errorf("expected session id 'session-1', got '%v'", got["id"])
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	store := NewStore(storage, "1.0.0")

	for _, name := range []string{"session-a.json", "session-b.json", "other.json"} {
		record := &Record{Session: json.RawMessage(`{}`)}
		if err := store.Write(context.Background(), name, record); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	names, err := store.List(context.Background(), "session-")
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("expected 2 records, got %d", len(names))
	}

	if err := store.Delete(context.Background(), "session-a.json"); err != nil {
		t.Fatalf("failed to delete record: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "session-a.json")); !os.IsNotExist(err) {
		t.Error("record should be deleted")
	}
}

func TestFileStorage_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	if err := storage.Save(context.Background(), "test.txt", strings.NewReader("test data")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := storage.Load(context.Background(), "test.txt")
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	loaded.Close()

	files, err := storage.List(context.Background(), "test")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 file, got %d", len(files))
	}

	if err := storage.Delete(context.Background(), "test.txt"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
}
