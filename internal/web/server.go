// Package web provides the HTTP status page and command API for the
// relay-lights daemon.
package web

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sweeney/relay-lights/internal/control"
	"github.com/sweeney/relay-lights/internal/logic"
	"github.com/sweeney/relay-lights/internal/status"
)

// Commander accepts commands for the control loop.
type Commander interface {
	Submit(ctx context.Context, req control.Request) (logic.CommandResult, error)
}

// Server serves the status page and command API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commander  Commander
	logger     *slog.Logger
}

// New creates a Server that reads state from the given tracker and sends
// commands to cmd. metrics may be nil.
func New(addr string, tracker *status.Tracker, cmd Commander, metrics http.Handler, logger *slog.Logger) *Server {
	s := &Server{tracker: tracker, commander: cmd, logger: logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	r.Get("/index.txt", s.handleText)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/status", s.handleJSON)
		r.Post("/mode", s.command(control.CmdMode))
		r.Post("/pattern", s.command(control.CmdPattern))
		r.Post("/speed", s.command(control.CmdSpeed))
		r.Post("/schedule", s.command(control.CmdSchedule))
		r.Post("/sunset", s.command(control.CmdSunset))
		r.Post("/sunset/offset", s.command(control.CmdSunsetOffset))
		r.Post("/shuffle", s.command(control.CmdShuffle))
		r.Post("/hold", s.command(control.CmdHold))
		r.Post("/allon", s.command(control.CmdAllOn))
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.logger.Error("Render index failed", "error", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, status.FormatText(snap.Controller))
}
