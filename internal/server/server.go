// Package server exposes the match orchestrator over HTTP for the UI
// collaborator: a synchronous endpoint for small batches and a streaming
// variant reporting incremental progress.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/batch"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/cachekey"
)

const shutdownGrace = 10 * time.Second

// Server handles the client-facing API surface.
type Server struct {
	coordinator *batch.Coordinator
	logger      *zap.Logger
	addr        string
}

// New creates a server bound to addr.
func New(coordinator *batch.Coordinator, addr string, logger *zap.Logger) *Server {
	return &Server{
		coordinator: coordinator,
		logger:      logger,
		addr:        addr,
	}
}

type referenceItem struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	AuxiliaryScore float64 `json:"auxiliaryScore,omitempty"`
}

type matchRequest struct {
	SubjectID      string             `json:"subjectId"`
	SubjectText    string             `json:"subjectText"`
	Phase          string             `json:"phase,omitempty"`
	ReferenceItems []referenceItem    `json:"referenceItems"`
	Completed      []batch.ItemResult `json:"completed,omitempty"`
}

type matchResponse struct {
	SubjectID string              `json:"subjectId"`
	Processed int                 `json:"processedCount"`
	Total     int                 `json:"totalCount"`
	Results   []*batch.ItemResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/match", s.handleMatch)
	mux.HandleFunc("POST /v1/match/stream", s.handleMatchStream)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (s *Server) startRun(r *http.Request) (*batch.Run, *matchRequest, error) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, fmt.Errorf("decoding request: %w", err)
	}

	phase := cachekey.PhaseScoring
	if req.Phase != "" {
		parsed, err := cachekey.ParsePhase(req.Phase)
		if err != nil {
			return nil, nil, err
		}
		phase = parsed
	}

	items := make([]batch.Item, 0, len(req.ReferenceItems))
	for _, item := range req.ReferenceItems {
		items = append(items, batch.Item{
			ReferenceID:    item.ID,
			Text:           item.Text,
			AuxiliaryScore: item.AuxiliaryScore,
		})
	}

	run, err := s.coordinator.Run(r.Context(), batch.Request{
		SubjectID:   req.SubjectID,
		SubjectText: req.SubjectText,
		Phase:       phase,
		Items:       items,
		Completed:   req.Completed,
	})
	if err != nil {
		return nil, nil, err
	}

	return run, &req, nil
}

// handleMatch runs the whole batch and replies once. Intended for small
// batches; large ones should use the streaming variant.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	run, req, err := s.startRun(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	results, err := run.Wait()
	if err != nil && !errors.Is(err, batch.ErrBatchFailed) {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	status := http.StatusOK
	if errors.Is(err, batch.ErrBatchFailed) {
		// Zero successes: one aggregate error, not N identical ones.
		status = http.StatusBadGateway
	}

	s.writeJSON(w, status, matchResponse{
		SubjectID: req.SubjectID,
		Processed: len(results),
		Total:     run.Total,
		Results:   results,
	})
}

// handleMatchStream emits one server-sent event per progress tick.
func (s *Server) handleMatchStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	run, _, err := s.startRun(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range run.Events() {
		data, err := json.Marshal(event)
		if err != nil {
			s.logger.Warn("encoding progress event", zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
		flusher.Flush()
	}

	if _, err := run.Wait(); err != nil {
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", jsonError(err))
		flusher.Flush()
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("encoding response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func jsonError(err error) []byte {
	data, marshalErr := json.Marshal(errorResponse{Error: err.Error()})
	if marshalErr != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return data
}
