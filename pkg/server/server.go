package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/harukit/echosync/pkg/usecase/mirror"
	"github.com/harukit/echosync/pkg/utils/logging"
)

// Server exposes the sync control surface over HTTP. This is the only
// coupling point for the dashboard layer: start, stop, and status.
// Reading the archive itself is the dashboard's own business.
type Server struct {
	runner *mirror.Runner

	// runCtx governs background sync runs. Runs must outlive the
	// triggering request, so the request context is never used.
	runCtx context.Context
}

// New creates a control-surface server driving the given runner
func New(runCtx context.Context, runner *mirror.Runner) *Server {
	return &Server{
		runner: runner,
		runCtx: runCtx,
	}
}

// Router builds the HTTP routes of the control surface
func (x *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/sync", func(r chi.Router) {
		r.Post("/start", x.handleStart)
		r.Post("/stop", x.handleStop)
		r.Get("/status", x.handleStatus)
	})

	return r
}

func (x *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	status, started := x.runner.Start(x.runCtx)
	if !started {
		// Already running: report the live run instead of racing it
		writeJSON(r.Context(), w, http.StatusOK, status)
		return
	}
	writeJSON(r.Context(), w, http.StatusAccepted, status)
}

func (x *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	x.runner.Stop()
	writeJSON(r.Context(), w, http.StatusAccepted, x.runner.Status())
}

func (x *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, x.runner.Status())
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Warn("failed to encode response", "error", err)
	}
}
