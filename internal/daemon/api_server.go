package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"batchflow/internal/api"
	"batchflow/internal/batch"
	"batchflow/internal/config"
	"batchflow/internal/faults"
	"batchflow/internal/logging"
	"batchflow/internal/quarantine"
	"batchflow/internal/store"
	"batchflow/internal/workflow"
)

const maxRequestBody = 4 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	runs   *api.RunService

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
		runs:   api.NewRunService(d.store),
	}
	srv.server = &http.Server{
		Handler:           srv.requireToken(cfg.Paths.APIToken, srv.routes()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRun)
	mux.HandleFunc("/api/quarantine", s.handleQuarantine)
	mux.HandleFunc("/api/resume", s.handleResume)
	mux.HandleFunc("/api/prune", s.handlePrune)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		LogPath:      status.LogPath,
		Workflow:     api.FromStatusSummary(status.Workflow),
	})
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		statuses := api.ParseStatuses(r.URL.Query()["status"])
		runs, err := s.runs.List(r.Context(), statuses...)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error(), "")
			return
		}
		s.writeJSON(w, http.StatusOK, api.RunListResponse{Runs: runs})
	case http.MethodPost:
		input, err := batch.DecodeInput(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			s.writeRunError(w, err)
			return
		}
		run, err := s.daemon.workflow.Submit(r.Context(), input)
		if err != nil {
			s.writeRunError(w, err)
			return
		}
		s.log().Info("run submitted via api",
			logging.String(logging.FieldRunID, run.ID),
			logging.String(logging.FieldBatchID, run.BatchID),
			logging.String(logging.FieldEventType, "run_submitted"),
		)
		s.writeJSON(w, http.StatusAccepted, api.RunResponse{Run: api.FromRun(run)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "run not found", "")
		return
	}
	run, err := s.runs.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "run not found", "")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunResponse{Run: *run})
}

func (s *apiServer) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	entries, err := s.runs.Quarantine(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QuarantineListResponse{Entries: entries})
}

func (s *apiServer) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	var req api.ResumeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed resume request", "validation")
		return
	}
	run, err := s.daemon.workflow.ResumeAsync(r.Context(), req.Token, quarantine.Action(req.Action))
	var runErr *workflow.RunError
	if err != nil && !(run != nil && errors.As(err, &runErr)) {
		s.writeRunError(w, err)
		return
	}
	code := http.StatusOK
	if run.Status == store.StatusRunning {
		code = http.StatusAccepted
	}
	s.writeJSON(w, code, api.RunResponse{Run: api.FromRun(run)})
}

func (s *apiServer) handlePrune(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	var req api.PruneRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed prune request", "validation")
		return
	}
	olderThan, err := time.ParseDuration(strings.TrimSpace(req.OlderThan))
	if err != nil || olderThan <= 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid prune age %q", req.OlderThan), "validation")
		return
	}
	removed, err := s.runs.Prune(r.Context(), olderThan)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.log().Info("pruned finished runs",
		logging.String(logging.FieldEventType, "runs_pruned"),
		logging.Int64("removed", removed),
		logging.Duration("older_than", olderThan),
	)
	s.writeJSON(w, http.StatusOK, api.PruneResponse{Removed: removed})
}

func (s *apiServer) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quarantine.ErrUnknownToken):
		s.writeError(w, http.StatusNotFound, err.Error(), "unknown_token")
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, faults.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error(), faults.Kind(err))
	case errors.Is(err, workflow.ErrStopped):
		s.writeError(w, http.StatusServiceUnavailable, err.Error(), "")
	case errors.Is(err, workflow.ErrRunActive):
		s.writeError(w, http.StatusConflict, err.Error(), "")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error(), faults.Kind(err))
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
