// Package debugserver provides an optional loopback HTTP server for
// inspecting a running worker from outside the stdio protocol — useful
// for health checks from a process supervisor, since the stdio "status"
// method only answers a host that is already speaking the wire protocol.
// It never duplicates the stdio contract; it only reads from it.
package debugserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BV-BRC/rlm-worker/pkg/protocol"
)

// StatusSource is anything that can report the worker's current status,
// satisfied by *worker.StatusReporter.
type StatusSource interface {
	Status() protocol.StatusResult
}

// Server is the introspection HTTP server.
type Server struct {
	router chi.Router
	source StatusSource
}

// New builds a Server backed by source.
func New(source StatusSource) *Server {
	s := &Server{source: source}
	s.router = s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)

	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.source.Status())
}

// Serve starts listening on addr and blocks until ctx is cancelled, at
// which point it shuts down gracefully. An empty addr or a nil source
// means the debug server was never meant to run; callers should check
// that before calling Serve.
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
