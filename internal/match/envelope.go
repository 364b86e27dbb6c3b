// Package match implements the cache-or-compute orchestration for a single
// (subject, reference) pair.
package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/compute"
)

// SchemaVersion is written into every envelope for forward compatibility.
const SchemaVersion = 1

// Source records where an envelope came from on this resolve.
type Source string

const (
	SourceCache    Source = "cache"
	SourceComputed Source = "computed"
)

// ErrCorruptPayload marks a cached object that cannot be decoded. Callers
// recover by treating the key as a miss and overwriting.
var ErrCorruptPayload = errors.New("corrupt cached payload")

// Meta carries the provenance of a computed result.
type Meta struct {
	ReferenceID   string    `json:"referenceId"`
	ContentDigest string    `json:"contentDigest"`
	Source        Source    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	SchemaVersion int       `json:"schemaVersion"`
}

// Envelope is the persisted wrapper around a computed result. Envelopes are
// immutable once written; duplicate writes of the same envelope are harmless.
type Envelope struct {
	Meta Meta            `json:"meta"`
	Data *compute.Result `json:"data"`
}

func decodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}

	if env.Data == nil || env.Meta.ReferenceID == "" || env.Meta.ContentDigest == "" {
		return nil, fmt.Errorf("%w: envelope is missing required fields", ErrCorruptPayload)
	}

	return &env, nil
}
