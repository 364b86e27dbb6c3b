// Package compute abstracts the external scoring workflow. Implementations
// are slow and rate limited; callers wrap Compute with a timeout and own any
// retry policy.
package compute

import (
	"context"
	"errors"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/cachekey"
)

var (
	// ErrUpstreamUnavailable covers network failures and 5xx class responses.
	// Safe to retry within a bounded budget.
	ErrUpstreamUnavailable = errors.New("compute upstream unavailable")
	// ErrUpstreamRejected covers 4xx class responses and malformed requests.
	// Never retried.
	ErrUpstreamRejected = errors.New("compute request rejected by upstream")
	// ErrUpstreamTimeout marks a compute call that exceeded its deadline.
	// Safe to retry within a bounded budget.
	ErrUpstreamTimeout = errors.New("compute upstream timed out")
)

// Request carries one scoring invocation.
type Request struct {
	SubjectText    string
	ReferenceText  string
	AuxiliaryScore float64
	Phase          cachekey.Phase
}

// Result is the strict data model all provider responses are coerced into.
// Loose upstream shapes never leak past the provider boundary.
type Result struct {
	Score     float64  `json:"score"`
	Summary   string   `json:"summary,omitempty"`
	Strengths []string `json:"strengths,omitempty"`
	Gaps      []string `json:"gaps,omitempty"`
	Advice    string   `json:"advice,omitempty"`
}

// Provider performs one synchronous scoring call.
type Provider interface {
	Compute(ctx context.Context, req Request) (*Result, error)
}

// Retryable reports whether the failure class permits a caller-level retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrUpstreamTimeout)
}
