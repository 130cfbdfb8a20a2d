// Package server exposes a read-only status API over the job registry and
// checkpoint discovery: which generations ran, how they ended, and where
// their latest complete checkpoints live.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/fluxkit/resumer/pkg/checkpoint"
	"github.com/fluxkit/resumer/pkg/fsview"
	"github.com/fluxkit/resumer/pkg/jobrun"
)

// Server serves the status API.
type Server struct {
	host   string
	port   int
	router chi.Router
	logger *zap.Logger
}

// Deps are the collaborators the status API reads from.
type Deps struct {
	Registry *jobrun.Registry
	Locator  *checkpoint.Locator
	View     fsview.View
	Base     string
	Layout   checkpoint.LayoutMode
	Version  string
}

// New builds the server and its routes.
func New(host string, port int, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{host: host, port: port, logger: logger}
	h := &handlers{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/jobs", h.listJobs)
		r.Get("/jobs/{jobID}", h.getJob)
		r.Get("/jobs/{jobID}/checkpoints/latest", h.latestCheckpoint)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// ListenAndServe runs the server until ctx ends, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", s.Addr()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
