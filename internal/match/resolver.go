package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/cachekey"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/compute"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/hashing"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/metrics"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/store"
)

const envelopeContentType = "application/json"

// ResolveRequest identifies one (subject, reference, phase) resolution.
type ResolveRequest struct {
	ReferenceID    string
	SubjectText    string
	ReferenceText  string
	AuxiliaryScore float64
	Phase          cachekey.Phase
}

// Resolver checks the object cache for a key and falls through to the
// compute provider on a miss, persisting the result best-effort.
//
// Concurrent resolves for the identical key are deduplicated in-process
// with single-flight. Writes are idempotent, so this is an optimization
// against wasted upstream calls, not a correctness requirement.
type Resolver struct {
	store          store.Store
	provider       compute.Provider
	computeTimeout time.Duration
	logger         *zap.Logger

	sf singleflight.Group
}

// NewResolver creates a resolver. computeTimeout bounds each provider call;
// zero disables the extra deadline (providers carry their own defaults).
func NewResolver(st store.Store, provider compute.Provider, computeTimeout time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:          st,
		provider:       provider,
		computeTimeout: computeTimeout,
		logger:         logger,
	}
}

// Resolve returns the cached envelope for the request's key, or computes,
// persists and returns a fresh one. A cache write failure degrades to a
// warning; the computed result is still returned.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*Envelope, error) {
	digest := hashing.Digest(req.SubjectText)

	key, err := cachekey.Build(req.ReferenceID, req.Phase, digest)
	if err != nil {
		return nil, err
	}

	// The flight runs detached from the initiating caller's context so one
	// caller cancelling cannot fail everyone sharing the computation. Each
	// caller still honors its own cancellation while waiting.
	flightCtx := context.WithoutCancel(ctx)
	ch := r.sf.DoChan(key, func() (any, error) {
		return r.resolveKey(flightCtx, key, digest, req)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			metrics.SharedResolves.WithLabelValues(req.Phase.String()).Inc()
			r.logger.Debug("resolve shared an in-flight computation", zap.String("key", key))
		}
		return res.Val.(*Envelope), nil
	}
}

func (r *Resolver) resolveKey(ctx context.Context, key, digest string, req ResolveRequest) (*Envelope, error) {
	phase := req.Phase.String()

	data, err := r.store.Get(ctx, key)
	switch {
	case err == nil:
		env, decodeErr := decodeEnvelope(data)
		if decodeErr == nil {
			metrics.CacheHits.WithLabelValues(phase).Inc()
			env.Meta.Source = SourceCache
			return env, nil
		}
		// Corrupt payload is a miss; the fresh result overwrites it.
		r.logger.Warn("cached payload is corrupt, recomputing",
			zap.String("key", key),
			zap.Error(decodeErr),
		)
	case errors.Is(err, store.ErrNotFound):
		// Normal miss.
	default:
		// Cache outage degrades to compute without durability.
		r.logger.Warn("cache read failed, falling through to compute",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	metrics.CacheMisses.WithLabelValues(phase).Inc()

	result, err := r.callProvider(ctx, req)
	if err != nil {
		metrics.ComputeFailures.WithLabelValues(phase).Inc()
		return nil, err
	}

	env := &Envelope{
		Meta: Meta{
			ReferenceID:   req.ReferenceID,
			ContentDigest: digest,
			Source:        SourceComputed,
			Timestamp:     time.Now().UTC(),
			SchemaVersion: SchemaVersion,
		},
		Data: result,
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}

	if err := r.store.Put(ctx, key, payload, envelopeContentType); err != nil {
		// Durability is best-effort; the computed result is still good.
		r.logger.Warn("cache write failed, returning computed result",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	return env, nil
}

func (r *Resolver) callProvider(ctx context.Context, req ResolveRequest) (*compute.Result, error) {
	if r.computeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.computeTimeout)
		defer cancel()
	}

	result, err := r.provider.Compute(ctx, compute.Request{
		SubjectText:    req.SubjectText,
		ReferenceText:  req.ReferenceText,
		AuxiliaryScore: req.AuxiliaryScore,
		Phase:          req.Phase,
	})
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, compute.ErrUpstreamTimeout) {
		return nil, fmt.Errorf("%w: %v", compute.ErrUpstreamTimeout, err)
	}

	return result, err
}
