// Package api exposes the job queue over HTTP: job submission, queue
// statistics and a health probe.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/core"
	"github.com/hma-data/mba-ingest/internal/discovery"
	"github.com/hma-data/mba-ingest/internal/queue"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

// jobRequest is the POST /jobs body. Key is optional; when empty it is
// derived from the scope prefix and the file path.
type jobRequest struct {
	Path        string `json:"path"`
	Scope       string `json:"scope"`
	Key         string `json:"key,omitempty"`
	IncludeType bool   `json:"includeType,omitempty"`
}

// jobResponse acknowledges an accepted job.
type jobResponse struct {
	ID     string `json:"id"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the job submission API in front of a shared queue.
type Server struct {
	queue  *queue.Queue
	scopes map[string]*config.ScopeConfig
	srv    *http.Server
}

// NewServer builds the API server. The queue is shared with workers running
// in the same process.
func NewServer(cfg config.APIConfig, q *queue.Queue, scopes map[string]*config.ScopeConfig) *Server {
	s := &Server{queue: q, scopes: scopes}

	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logx.As().Info().Str("addr", s.srv.Addr).Msg("API server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logx.As().Info().Msg("API server shutting down")
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if req.Path == "" || req.Scope == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "path and scope are required"})
		return
	}

	scope := strings.ToLower(req.Scope)
	sc, ok := s.scopes[scope]
	if !ok || sc == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown scope %q", req.Scope)})
		return
	}

	if info, err := os.Stat(req.Path); err != nil || info.IsDir() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("file not found: %s", req.Path)})
		return
	}

	key := req.Key
	if key == "" {
		key = discovery.BuildKey(scope, req.Path, sc.Prefix, req.IncludeType)
	}

	job := core.NewUploadJob(req.Path, scope, sc.Bucket, key)
	s.queue.Put(job)

	logx.As().Info().
		Str("job", job.String()).
		Msg("Job accepted via API")

	writeJSON(w, http.StatusAccepted, jobResponse{
		ID:     job.ID,
		Bucket: job.Bucket,
		Key:    job.Key,
		Status: "queued",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, s.queue.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logx.As().Warn().Err(err).Msg("Could not write response")
	}
}
