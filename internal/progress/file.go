package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const snapshotFilename = "match-progress.json"

// File stores the snapshot as a single JSON record in a state directory.
// Writes are atomic via temp file and rename.
type File struct {
	dir    string
	logger *zap.Logger
}

// NewFile creates a file-backed store under dir, creating it when missing.
func NewFile(dir string, logger *zap.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating progress directory: %w", err)
	}
	return &File{dir: dir, logger: logger}, nil
}

func (f *File) path() string {
	return filepath.Join(f.dir, snapshotFilename)
}

func (f *File) Save(_ context.Context, snap Snapshot) error {
	snap.Version = SnapshotVersion

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publishing snapshot: %w", err)
	}

	return nil
}

func (f *File) Load(_ context.Context, subjectID string) (*Snapshot, error) {
	data, err := os.ReadFile(f.path())
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Corrupt snapshots are discarded, not surfaced.
		f.logger.Warn("discarding corrupt progress snapshot", zap.Error(err))
		return nil, ErrNotFound
	}

	if snap.Version != SnapshotVersion {
		f.logger.Warn("discarding progress snapshot with unknown version",
			zap.Int("version", snap.Version),
		)
		return nil, ErrNotFound
	}

	if snap.SubjectID != subjectID {
		// Stale snapshot for another subject.
		return nil, ErrNotFound
	}

	return &snap, nil
}

func (f *File) Clear(_ context.Context) error {
	err := os.Remove(f.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing snapshot: %w", err)
	}
	return nil
}
