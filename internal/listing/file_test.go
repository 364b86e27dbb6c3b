package listing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSourceJobs(t *testing.T) {
	payload := `[
		{"id": "job-1", "title": "Go Developer", "description": "Build services", "match_score": "42.5"},
		{"id": "job-2", "title": "SRE", "description": "Keep it running", "match_score": 10},
		{"title": "no id, skipped"}
	]`

	path := filepath.Join(t.TempDir(), "jobs.json")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	jobs, err := NewFileSource(path).Jobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "job-1" || jobs[0].Title != "Go Developer" {
		t.Fatalf("unexpected first job: %+v", jobs[0])
	}
	if jobs[0].MatchScore != 42.5 {
		t.Fatalf("expected weakly typed score coercion, got %v", jobs[0].MatchScore)
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	if _, err := NewFileSource("/does/not/exist.json").Jobs(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
