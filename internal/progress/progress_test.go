package progress

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/batch"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	file, err := NewFile(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("creating file store: %v", err)
	}

	return map[string]Store{
		"file":   file,
		"memory": NewMemory(),
	}
}

func sampleSnapshot(subjectID string) Snapshot {
	return Snapshot{
		SubjectID: subjectID,
		Complete:  false,
		Processed: 3,
		Total:     5,
		Results: []batch.ItemResult{
			{ReferenceID: "job-1", Status: batch.StatusOK},
			{ReferenceID: "job-2", Status: batch.StatusOK},
			{ReferenceID: "job-3", Status: batch.StatusFailed, Error: "rejected"},
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save(ctx, sampleSnapshot("subject-a")); err != nil {
				t.Fatalf("save: %v", err)
			}

			snap, err := s.Load(ctx, "subject-a")
			if err != nil {
				t.Fatalf("load: %v", err)
			}

			if snap.Processed != 3 || snap.Total != 5 || snap.Complete {
				t.Fatalf("unexpected snapshot: %+v", snap)
			}
			if len(snap.Results) != 3 {
				t.Fatalf("expected 3 results, got %d", len(snap.Results))
			}
			if snap.Version != SnapshotVersion {
				t.Fatalf("expected version stamp, got %d", snap.Version)
			}
		})
	}
}

func TestSnapshotStaleSubjectIsNotFound(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save(ctx, sampleSnapshot("subject-b")); err != nil {
				t.Fatalf("save: %v", err)
			}

			if _, err := s.Load(ctx, "subject-a"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound for stale subject, got %v", err)
			}
		})
	}
}

func TestSnapshotClear(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save(ctx, sampleSnapshot("subject-a")); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := s.Clear(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if _, err := s.Load(ctx, "subject-a"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after clear, got %v", err)
			}

			// Clearing an already-empty store is not an error.
			if err := s.Clear(ctx); err != nil {
				t.Fatalf("second clear: %v", err)
			}
		})
	}
}

func TestFileDiscardsCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, snapshotFilename), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("seeding corrupt file: %v", err)
	}

	if _, err := s.Load(context.Background(), "subject-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for corrupt snapshot, got %v", err)
	}
}

func TestFileDiscardsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	payload := `{"version": 99, "subjectId": "subject-a", "processedCount": 1, "totalCount": 2}`
	if err := os.WriteFile(filepath.Join(dir, snapshotFilename), []byte(payload), 0o644); err != nil {
		t.Fatalf("seeding snapshot: %v", err)
	}

	if _, err := s.Load(context.Background(), "subject-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown version, got %v", err)
	}
}
