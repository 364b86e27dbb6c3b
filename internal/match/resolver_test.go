package match

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/cachekey"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/compute"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/hashing"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/store"
)

type stubProvider struct {
	calls  atomic.Int64
	err    error
	block  chan struct{}
	result compute.Result
}

func (s *stubProvider) Compute(_ context.Context, _ compute.Request) (*compute.Result, error) {
	s.calls.Add(1)
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	result := s.result
	return &result, nil
}

type failingStore struct {
	getErr bool
	putErr bool
	inner  *store.Memory
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr {
		return nil, store.ErrUnavailable
	}
	return f.inner.Get(ctx, key)
}

func (f *failingStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if f.putErr {
		return store.ErrUnavailable
	}
	return f.inner.Put(ctx, key, data, contentType)
}

func scoringRequest() ResolveRequest {
	return ResolveRequest{
		ReferenceID:    "job-7",
		SubjectText:    "resume text",
		ReferenceText:  "job text",
		AuxiliaryScore: 12,
		Phase:          cachekey.PhaseScoring,
	}
}

func TestResolveMissComputesAndPersists(t *testing.T) {
	st := store.NewMemory()
	provider := &stubProvider{result: compute.Result{Score: 91, Summary: "great"}}
	resolver := NewResolver(st, provider, 0, zap.NewNop())

	env, err := resolver.Resolve(context.Background(), scoringRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := provider.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one compute call, got %d", got)
	}
	if env.Meta.Source != SourceComputed {
		t.Fatalf("expected computed source, got %s", env.Meta.Source)
	}
	if env.Meta.SchemaVersion != SchemaVersion {
		t.Fatalf("unexpected schema version: %d", env.Meta.SchemaVersion)
	}

	digest := hashing.Digest("resume text")
	key, _ := cachekey.Build("job-7", cachekey.PhaseScoring, digest)

	data, err := st.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("expected persisted envelope: %v", err)
	}

	var persisted Envelope
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("decoding persisted envelope: %v", err)
	}
	if persisted.Data.Score != 91 {
		t.Fatalf("unexpected persisted score: %v", persisted.Data.Score)
	}
	if persisted.Meta.ContentDigest != digest {
		t.Fatalf("unexpected persisted digest: %s", persisted.Meta.ContentDigest)
	}
}

func TestResolveCachePrecedence(t *testing.T) {
	st := store.NewMemory()
	provider := &stubProvider{result: compute.Result{Score: 91}}
	resolver := NewResolver(st, provider, 0, zap.NewNop())

	ctx := context.Background()

	if _, err := resolver.Resolve(ctx, scoringRequest()); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	env, err := resolver.Resolve(ctx, scoringRequest())
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if got := provider.calls.Load(); got != 1 {
		t.Fatalf("cache hit must not invoke compute, got %d calls", got)
	}
	if env.Meta.Source != SourceCache {
		t.Fatalf("expected cache source, got %s", env.Meta.Source)
	}
	if env.Data.Score != 91 {
		t.Fatalf("unexpected cached score: %v", env.Data.Score)
	}
}

func TestResolveCorruptPayloadRecomputes(t *testing.T) {
	st := store.NewMemory()
	provider := &stubProvider{result: compute.Result{Score: 50}}
	resolver := NewResolver(st, provider, 0, zap.NewNop())

	ctx := context.Background()
	digest := hashing.Digest("resume text")
	key, _ := cachekey.Build("job-7", cachekey.PhaseScoring, digest)

	if err := st.Put(ctx, key, []byte("{not json"), "application/json"); err != nil {
		t.Fatalf("seeding corrupt payload: %v", err)
	}

	env, err := resolver.Resolve(ctx, scoringRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Meta.Source != SourceComputed {
		t.Fatalf("corrupt payload must be treated as a miss")
	}
	if provider.calls.Load() != 1 {
		t.Fatalf("expected one compute call, got %d", provider.calls.Load())
	}

	// The fresh envelope overwrites the corrupt object.
	data, err := st.Get(ctx, key)
	if err != nil {
		t.Fatalf("expected overwritten envelope: %v", err)
	}
	if _, err := decodeEnvelope(data); err != nil {
		t.Fatalf("overwritten payload still corrupt: %v", err)
	}
}

func TestResolveStoreOutageFallsThrough(t *testing.T) {
	provider := &stubProvider{result: compute.Result{Score: 77}}
	resolver := NewResolver(&failingStore{getErr: true, putErr: true, inner: store.NewMemory()}, provider, 0, zap.NewNop())

	env, err := resolver.Resolve(context.Background(), scoringRequest())
	if err != nil {
		t.Fatalf("store outage must not fail the resolve: %v", err)
	}
	if env.Data.Score != 77 {
		t.Fatalf("unexpected score: %v", env.Data.Score)
	}
	if env.Meta.Source != SourceComputed {
		t.Fatalf("expected computed source, got %s", env.Meta.Source)
	}
}

func TestResolveComputeFailurePropagates(t *testing.T) {
	st := store.NewMemory()
	provider := &stubProvider{err: compute.ErrUpstreamRejected}
	resolver := NewResolver(st, provider, 0, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), scoringRequest())
	if !errors.Is(err, compute.ErrUpstreamRejected) {
		t.Fatalf("expected typed failure, got %v", err)
	}

	if st.Len() != 0 {
		t.Fatalf("nothing may be written on compute failure")
	}
}

func TestResolveInvalidReferenceID(t *testing.T) {
	resolver := NewResolver(store.NewMemory(), &stubProvider{}, 0, zap.NewNop())

	req := scoringRequest()
	req.ReferenceID = "job/7"

	if _, err := resolver.Resolve(context.Background(), req); !errors.Is(err, cachekey.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResolveSingleFlight(t *testing.T) {
	st := store.NewMemory()
	provider := &stubProvider{result: compute.Result{Score: 42}, block: make(chan struct{})}
	resolver := NewResolver(st, provider, 0, zap.NewNop())

	const callers = 5

	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = resolver.Resolve(context.Background(), scoringRequest())
		}(i)
	}

	// Let the callers pile up on the in-flight computation, then release it.
	// Latecomers that miss the dedup window are served from the cache instead.
	for provider.calls.Load() == 0 {
		runtime.Gosched()
	}
	close(provider.block)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d failed: %v", i, err)
		}
	}

	if got := provider.calls.Load(); got != 1 {
		t.Fatalf("expected a single deduplicated compute call, got %d", got)
	}
}

func TestResolveCallerCancellationDoesNotPoisonSharers(t *testing.T) {
	st := store.NewMemory()
	provider := &stubProvider{result: compute.Result{Score: 42}, block: make(chan struct{})}
	resolver := NewResolver(st, provider, 0, zap.NewNop())

	initiatorCtx, cancel := context.WithCancel(context.Background())

	initiatorErr := make(chan error, 1)
	go func() {
		_, err := resolver.Resolve(initiatorCtx, scoringRequest())
		initiatorErr <- err
	}()

	for provider.calls.Load() == 0 {
		runtime.Gosched()
	}

	sharerDone := make(chan struct{})
	var sharerEnv *Envelope
	var sharerErr error
	go func() {
		defer close(sharerDone)
		sharerEnv, sharerErr = resolver.Resolve(context.Background(), scoringRequest())
	}()

	// Cancelling the caller that started the computation must only fail
	// that caller. The flight keeps running for everyone else.
	cancel()
	if err := <-initiatorErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for the cancelled caller, got %v", err)
	}

	close(provider.block)
	<-sharerDone

	if sharerErr != nil {
		t.Fatalf("sharing caller failed: %v", sharerErr)
	}
	if sharerEnv == nil || sharerEnv.Data.Score != 42 {
		t.Fatalf("unexpected shared result: %+v", sharerEnv)
	}
	if got := provider.calls.Load(); got != 1 {
		t.Fatalf("expected a single compute call, got %d", got)
	}
}
