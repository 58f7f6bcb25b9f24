package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"DebateArena/internal/debate"
	"DebateArena/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Options wires a Server. Store and Provider are optional.
type Options struct {
	Orchestrator *debate.Orchestrator
	Transcripts  *debate.Transcripts
	Hub          *Hub
	Store        *store.Store
	Provider     http.Handler
	ProviderPath string
	Logger       *slog.Logger
}

// Server exposes the debate over HTTP and websocket
type Server struct {
	opts   Options
	logger *slog.Logger
	mux    *http.ServeMux
}

// StartRequest is the body of POST /api/debates
type StartRequest struct {
	Topic string `json:"topic"`
}

// StartResponse reports whether a new debate was started
type StartResponse struct {
	Started bool           `json:"started"`
	Session debate.Session `json:"session"`
}

// CurrentResponse is the body of GET /api/debates/current
type CurrentResponse struct {
	Session     debate.Session                    `json:"session"`
	Transcripts map[debate.Persona][]debate.Message `json:"transcripts"`
}

// New creates a Server
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{opts: opts, logger: logger, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /api/debates", s.handleStart)
	s.mux.HandleFunc("GET /api/debates/current", s.handleCurrent)
	s.mux.HandleFunc("GET /api/debates", s.handleList)
	s.mux.HandleFunc("GET /api/debates/{id}", s.handleGet)
	if opts.Hub != nil {
		s.mux.Handle("GET /ws", opts.Hub)
	}
	if opts.Provider != nil && opts.ProviderPath != "" {
		s.mux.Handle(opts.ProviderPath, opts.Provider)
	}

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down and
// waits for running debates to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown failed", "error", err)
		return err
	}
	<-errCh

	if err := s.opts.Orchestrator.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("debates still running at shutdown", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	started := s.opts.Orchestrator.Start(r.Context(), req.Topic)
	status := http.StatusAccepted
	if !started {
		status = http.StatusOK
	}
	writeJSON(w, status, StartResponse{Started: started, Session: s.opts.Orchestrator.Session()})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	resp := CurrentResponse{Session: s.opts.Orchestrator.Session()}
	if s.opts.Transcripts != nil {
		resp.Transcripts = s.opts.Transcripts.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is disabled"})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	debates, err := s.opts.Store.ListDebates(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list debates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list debates"})
		return
	}
	writeJSON(w, http.StatusOK, debates)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is disabled"})
		return
	}

	d, err := s.opts.Store.LoadDebate(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("failed to load debate", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load debate"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
