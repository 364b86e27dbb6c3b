// Package batch drives the resolver across many reference items for one
// subject with bounded concurrency and incremental progress reporting.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/cachekey"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/compute"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/hashing"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/match"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/metrics"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/utils"
)

const (
	defaultConcurrency  = 4
	defaultRetryBackoff = 2 * time.Second
)

var (
	// ErrBatchFailed is the terminal batch-level error when every item failed.
	ErrBatchFailed = errors.New("all batch items failed")
	// ErrSuperseded marks a run that was replaced by a newer one before it
	// finished. Its late results are dropped, never merged.
	ErrSuperseded = errors.New("batch run superseded by a newer run")
)

// Status is the terminal state of one reference item.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Item is one comparison target supplied per batch invocation.
type Item struct {
	ReferenceID    string
	Text           string
	AuxiliaryScore float64
}

// ItemResult is the recorded outcome for one reference item.
type ItemResult struct {
	ReferenceID string          `json:"referenceId"`
	Status      Status          `json:"status"`
	Envelope    *match.Envelope `json:"envelope,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Progress is one tick of the run's event stream. Processed never decreases
// across successive events of the same run.
type Progress struct {
	SubjectID string      `json:"subjectId"`
	Processed int         `json:"processedCount"`
	Total     int         `json:"totalCount"`
	Complete  bool        `json:"complete"`
	Item      *ItemResult `json:"item,omitempty"`
}

// Request describes one batch invocation. Completed seeds already-resolved
// items from a resumed snapshot; those are never re-dispatched.
type Request struct {
	SubjectID   string
	SubjectText string
	Phase       cachekey.Phase
	Items       []Item
	Completed   []ItemResult
}

type resolver interface {
	Resolve(ctx context.Context, req match.ResolveRequest) (*match.Envelope, error)
}

// Coordinator fans batches out to the resolver. The only state kept between
// runs is a per-subject generation guarding against stale runs.
type Coordinator struct {
	resolver     resolver
	logger       *zap.Logger
	concurrency  int64
	maxRetries   int
	retryBackoff time.Duration

	mu       sync.Mutex
	subjects map[string]*subjectState
}

// subjectState tracks one subject's content digest. The generation bumps only
// when the digest changes, so concurrent runs over identical content and runs
// for unrelated subjects never cancel each other.
type subjectState struct {
	digest     string
	generation atomic.Int64
}

// NewCoordinator creates a coordinator with the given concurrency limit and
// per-item retry budget for transient compute failures.
func NewCoordinator(r resolver, concurrency, maxRetries int, retryBackoff time.Duration, logger *zap.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}

	return &Coordinator{
		resolver:     r,
		logger:       logger,
		concurrency:  int64(concurrency),
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		subjects:     make(map[string]*subjectState),
	}
}

// subjectFor returns the subject's state and the generation this run belongs
// to, bumping the generation when the subject's content digest changed.
func (c *Coordinator) subjectFor(subjectID, digest string) (*subjectState, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.subjects[subjectID]
	if !ok {
		st = &subjectState{digest: digest}
		c.subjects[subjectID] = st
	}
	if st.digest != digest {
		st.digest = digest
		st.generation.Add(1)
	}

	return st, st.generation.Load()
}

// Run holds the transient state of one batch invocation.
type Run struct {
	SubjectID string
	Total     int

	events chan Progress
	done   chan struct{}

	mu      sync.Mutex
	results map[string]*ItemResult
	order   []string
	err     error
}

// Events returns the run's progress stream. The channel is buffered for the
// whole batch and closed once the run reaches a terminal state, so consumers
// may read it lazily.
func (r *Run) Events() <-chan Progress {
	return r.events
}

// Wait blocks until the run terminates and returns results in input order.
// The error is nil for mixed or fully successful batches.
func (r *Run) Wait() ([]*ItemResult, error) {
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]*ItemResult, 0, len(r.order))
	for _, id := range r.order {
		if res, ok := r.results[id]; ok {
			results = append(results, res)
		}
	}

	return results, r.err
}

// Run starts a batch. A run whose subject content changed since a still
// in-flight run for the same subject supersedes it: the stale run stops
// dispatching, drops late results and terminates with ErrSuperseded. Runs
// over identical content and runs for other subjects proceed concurrently.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Run, error) {
	if strings.TrimSpace(req.SubjectID) == "" {
		return nil, errors.New("subject id is required")
	}
	if strings.TrimSpace(req.SubjectText) == "" {
		return nil, errors.New("subject text is required")
	}
	if !req.Phase.Valid() {
		return nil, fmt.Errorf("%w: unknown phase %q", cachekey.ErrInvalidInput, req.Phase)
	}

	st, gen := c.subjectFor(req.SubjectID, hashing.Digest(req.SubjectText))

	run := &Run{
		SubjectID: req.SubjectID,
		Total:     len(req.Items),
		events:    make(chan Progress, len(req.Items)+1),
		done:      make(chan struct{}),
		results:   make(map[string]*ItemResult, len(req.Items)),
		order:     make([]string, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		run.order = append(run.order, item.ReferenceID)
	}

	c.logger.Info("starting batch run",
		zap.String("subject_id", req.SubjectID),
		zap.String("phase", req.Phase.String()),
		zap.Int("total", len(req.Items)),
		zap.Int("seeded", len(req.Completed)),
	)

	go c.execute(ctx, st, gen, run, req)

	return run, nil
}

func (c *Coordinator) execute(ctx context.Context, st *subjectState, gen int64, run *Run, req Request) {
	defer close(run.done)
	defer close(run.events)

	processed := c.seed(run, req)
	if processed > 0 || run.Total == 0 {
		c.emit(run, Progress{
			SubjectID: run.SubjectID,
			Processed: processed,
			Total:     run.Total,
			Complete:  processed == run.Total,
		})
	}

	sem := semaphore.NewWeighted(c.concurrency)
	var wg sync.WaitGroup

	for _, item := range req.Items {
		run.mu.Lock()
		_, already := run.results[item.ReferenceID]
		run.mu.Unlock()
		if already {
			continue
		}

		// Stop dispatching for cancelled or superseded runs; in-flight
		// items finish on their own and their results are dropped.
		if ctx.Err() != nil || st.generation.Load() != gen {
			break
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(item Item) {
			defer wg.Done()
			defer sem.Release(1)

			metrics.InFlight.Inc()
			result := c.resolveItem(ctx, req, item)
			metrics.InFlight.Dec()

			c.record(st, gen, run, result)
		}(item)
	}

	wg.Wait()
	c.finalize(ctx, st, gen, run)
}

// seed copies terminal results from a resumed snapshot into the run so a
// reload does not re-trigger already-completed compute calls.
func (c *Coordinator) seed(run *Run, req Request) int {
	known := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		known[item.ReferenceID] = struct{}{}
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	for i := range req.Completed {
		seeded := req.Completed[i]
		if _, ok := known[seeded.ReferenceID]; !ok {
			continue
		}
		if seeded.Status != StatusOK && seeded.Status != StatusFailed {
			continue
		}
		run.results[seeded.ReferenceID] = &seeded
	}

	return len(run.results)
}

func (c *Coordinator) record(st *subjectState, gen int64, run *Run, result *ItemResult) {
	run.mu.Lock()

	if st.generation.Load() != gen {
		run.mu.Unlock()
		c.logger.Debug("dropping result from superseded run",
			zap.String("reference_id", result.ReferenceID),
		)
		return
	}

	run.results[result.ReferenceID] = result
	processed := len(run.results)

	// Emitting under the lock keeps the event stream strictly ordered by
	// processed count. The send below never blocks.
	c.emit(run, Progress{
		SubjectID: run.SubjectID,
		Processed: processed,
		Total:     run.Total,
		Complete:  processed == run.Total,
		Item:      result,
	})
	run.mu.Unlock()
}

// emit never blocks: the events channel is sized for the whole batch.
func (c *Coordinator) emit(run *Run, progress Progress) {
	select {
	case run.events <- progress:
	default:
		c.logger.Warn("progress event dropped, channel full",
			zap.String("subject_id", run.SubjectID),
			zap.Int("processed", progress.Processed),
		)
	}
}

func (c *Coordinator) finalize(ctx context.Context, st *subjectState, gen int64, run *Run) {
	run.mu.Lock()
	defer run.mu.Unlock()

	processed := len(run.results)
	successes := 0
	for _, res := range run.results {
		if res.Status == StatusOK {
			successes++
		}
	}

	switch {
	case st.generation.Load() != gen:
		run.err = ErrSuperseded
	case ctx.Err() != nil && processed < run.Total:
		run.err = ctx.Err()
	case run.Total > 0 && successes == 0:
		// Only a structural failure of every item surfaces as a batch error;
		// mixed results complete normally.
		run.err = ErrBatchFailed
	}

	c.logger.Info("batch run finished",
		zap.String("subject_id", run.SubjectID),
		zap.Int("processed", processed),
		zap.Int("total", run.Total),
		zap.Int("successes", successes),
		zap.Error(run.err),
	)
}

func (c *Coordinator) resolveItem(ctx context.Context, req Request, item Item) *ItemResult {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := utils.WaitFor(ctx, time.Duration(attempt)*c.retryBackoff); err != nil {
				lastErr = err
				break
			}
			c.logger.Debug("retrying item",
				zap.String("reference_id", item.ReferenceID),
				zap.Int("attempt", attempt),
			)
		}

		env, err := c.resolver.Resolve(ctx, match.ResolveRequest{
			ReferenceID:    item.ReferenceID,
			SubjectText:    req.SubjectText,
			ReferenceText:  item.Text,
			AuxiliaryScore: item.AuxiliaryScore,
			Phase:          req.Phase,
		})
		if err == nil {
			return &ItemResult{
				ReferenceID: item.ReferenceID,
				Status:      StatusOK,
				Envelope:    env,
			}
		}

		lastErr = err
		if !compute.Retryable(err) {
			break
		}

		c.logger.Warn("item resolution failed",
			zap.String("reference_id", item.ReferenceID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return &ItemResult{
		ReferenceID: item.ReferenceID,
		Status:      StatusFailed,
		Error:       lastErr.Error(),
	}
}
