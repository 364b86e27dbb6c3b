// Package store provides the durable object store holding cached match
// envelopes. Implementations must be safe for concurrent use; writes are
// idempotent overwrites, so callers need no locking of their own.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is a normal cache miss, not a transport failure.
	ErrNotFound = errors.New("object not found")
	// ErrUnavailable marks transport or auth failures talking to the store.
	ErrUnavailable = errors.New("object store unavailable")
)

// Store is the key/value interface over durable object storage.
type Store interface {
	// Get returns the stored bytes or ErrNotFound. Any other error wraps
	// ErrUnavailable.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key with last-writer-wins overwrite semantics.
	Put(ctx context.Context, key string, data []byte, contentType string) error
}
