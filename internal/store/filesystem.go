package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem stores objects as files below a root directory, mirroring the
// hierarchical key layout. Writes go through a temp file and rename so a
// concurrent reader never observes a partial object.
type Filesystem struct {
	root string
}

// NewFilesystem creates a store rooted at dir, creating it when missing.
func NewFilesystem(dir string) (*Filesystem, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: cache directory is not configured", ErrUnavailable)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating cache directory: %v", ErrUnavailable, err)
	}
	return &Filesystem{root: dir}, nil
}

func (f *Filesystem) Get(_ context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, key, err)
	}

	return data, nil
}

func (f *Filesystem) Put(_ context.Context, key string, data []byte, _ string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating object directory: %v", ErrUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp object: %v", ErrUnavailable, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing object: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: closing object: %v", ErrUnavailable, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: publishing object: %v", ErrUnavailable, err)
	}

	return nil
}

// path maps a logical key to the on-disk location. The ".json" extension is
// a filesystem convenience only and is not part of the key.
func (f *Filesystem) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: key %q escapes the cache root", ErrUnavailable, key)
	}
	return filepath.Join(f.root, clean) + ".json", nil
}
