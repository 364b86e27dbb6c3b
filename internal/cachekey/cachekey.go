// Package cachekey maps (referenceID, phase, digest) tuples to hierarchical
// object-store keys.
package cachekey

import (
	"errors"
	"fmt"
	"strings"
)

// Phase distinguishes the kinds of analysis cached for the same
// subject/reference pair.
type Phase string

const (
	// PhaseScoring is the fit-score evaluation of a subject against a reference.
	PhaseScoring Phase = "scoring"
	// PhaseDetails is the detailed gap analysis for a single reference.
	PhaseDetails Phase = "details"
)

// ErrInvalidInput marks malformed key components. It signals a caller bug,
// never a transient condition.
var ErrInvalidInput = errors.New("invalid cache key input")

// Valid reports whether p is a member of the closed phase set.
func (p Phase) Valid() bool {
	switch p {
	case PhaseScoring, PhaseDetails:
		return true
	}
	return false
}

func (p Phase) String() string { return string(p) }

// ParsePhase converts a raw string into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown phase %q", ErrInvalidInput, s)
	}
	return p, nil
}

// Build returns the storage key "{referenceID}/{phase}/{digest}". Distinct
// tuples always yield distinct keys: the digest is fixed-alphabet hex, the
// phase set is closed and the referenceID may not contain the separator.
func Build(referenceID string, phase Phase, digest string) (string, error) {
	if err := validateReferenceID(referenceID); err != nil {
		return "", err
	}
	if !phase.Valid() {
		return "", fmt.Errorf("%w: unknown phase %q", ErrInvalidInput, phase)
	}
	if err := validateDigest(digest); err != nil {
		return "", err
	}

	return referenceID + "/" + string(phase) + "/" + digest, nil
}

func validateReferenceID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: reference id is empty", ErrInvalidInput)
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("%w: reference id %q contains a path separator", ErrInvalidInput, id)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("%w: reference id %q contains a traversal sequence", ErrInvalidInput, id)
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: reference id contains a control character", ErrInvalidInput)
		}
	}
	return nil
}

func validateDigest(digest string) error {
	if digest == "" {
		return fmt.Errorf("%w: digest is empty", ErrInvalidInput)
	}
	for _, r := range digest {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return fmt.Errorf("%w: digest %q is not lowercase hex", ErrInvalidInput, digest)
		}
	}
	return nil
}
