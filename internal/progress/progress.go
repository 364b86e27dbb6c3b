// Package progress persists batch-progress snapshots so a client can resume
// a long-running batch without re-triggering completed work.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/batch"
)

// SnapshotVersion is bumped on incompatible schema changes; older or newer
// snapshots are ignored rather than migrated.
const SnapshotVersion = 1

// ErrNotFound is returned when no usable snapshot exists. A snapshot saved
// for a different subject is deliberately reported as not found so one
// subject's results are never presented as another's.
var ErrNotFound = errors.New("progress snapshot not found")

// Snapshot is the externally persisted projection of a batch run.
type Snapshot struct {
	Version   int                `json:"version"`
	SubjectID string             `json:"subjectId"`
	Complete  bool               `json:"isComplete"`
	Processed int                `json:"processedCount"`
	Total     int                `json:"totalCount"`
	Results   []batch.ItemResult `json:"results"`
	SavedAt   time.Time          `json:"savedAt"`
}

// Store persists one snapshot per subject under a well-known location.
// Save failures are expected to be swallowed with a warning by callers;
// durability here is a convenience, never a correctness requirement.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, subjectID string) (*Snapshot, error)
	Clear(ctx context.Context) error
}

// FromRun projects the current state of a run into a snapshot.
func FromRun(subjectID string, p batch.Progress, results []batch.ItemResult) Snapshot {
	return Snapshot{
		Version:   SnapshotVersion,
		SubjectID: subjectID,
		Complete:  p.Complete,
		Processed: p.Processed,
		Total:     p.Total,
		Results:   results,
		SavedAt:   time.Now().UTC(),
	}
}
