package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/cachekey"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/compute"
)

func TestComputeSuccess(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"outputs": map[string]any{
					"score":     "87.5",
					"summary":   "Strong match",
					"strengths": []string{"Go", "Kubernetes"},
					"gaps":      []string{"Rust"},
				},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "test-key", 0, zap.NewNop())

	result, err := client.Compute(context.Background(), compute.Request{
		SubjectText:    "resume text",
		ReferenceText:  "job text",
		AuxiliaryScore: 0.42,
		Phase:          cachekey.PhaseScoring,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Score != 87.5 {
		t.Fatalf("expected coerced score 87.5, got %v", result.Score)
	}
	if result.Summary != "Strong match" {
		t.Fatalf("unexpected summary: %s", result.Summary)
	}
	if len(result.Strengths) != 2 || len(result.Gaps) != 1 {
		t.Fatalf("unexpected lists: %v / %v", result.Strengths, result.Gaps)
	}

	if gotBody["subjectText"] != "resume text" || gotBody["phase"] != "scoring" {
		t.Fatalf("unexpected request body: %v", gotBody)
	}
	if gotBody["auxiliaryScore"] != 0.42 {
		t.Fatalf("expected auxiliary score in request, got %v", gotBody["auxiliaryScore"])
	}
}

func TestComputeStatusClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"bad request", http.StatusBadRequest, compute.ErrUpstreamRejected},
		{"unauthorized", http.StatusUnauthorized, compute.ErrUpstreamRejected},
		{"rate limited", http.StatusTooManyRequests, compute.ErrUpstreamUnavailable},
		{"server error", http.StatusInternalServerError, compute.ErrUpstreamUnavailable},
		{"bad gateway", http.StatusBadGateway, compute.ErrUpstreamUnavailable},
		{"request timeout", http.StatusRequestTimeout, compute.ErrUpstreamTimeout},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			client := New(server.URL, "key", 0, zap.NewNop())

			_, err := client.Compute(context.Background(), compute.Request{Phase: cachekey.PhaseScoring})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestComputeTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := New(server.URL, "key", 20*time.Millisecond, zap.NewNop())

	_, err := client.Compute(context.Background(), compute.Request{Phase: cachekey.PhaseScoring})
	if !errors.Is(err, compute.ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}
}

func TestComputeMissingOutputs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client := New(server.URL, "key", 0, zap.NewNop())

	_, err := client.Compute(context.Background(), compute.Request{Phase: cachekey.PhaseScoring})
	if !errors.Is(err, compute.ErrUpstreamRejected) {
		t.Fatalf("expected ErrUpstreamRejected, got %v", err)
	}
}
