// Package api serves the engine's command surface over HTTP.
//
//	POST /api/v1/commands/{name}   run a command; JSON request and response
//	GET  /api/v1/commands          list command names
//	GET  /api/v1/sessions          list registered sessions
//	GET  /health                   liveness
//	GET  /metrics                  Prometheus metrics
//
// Handled commands always answer 200; failures are described inside the
// response envelope. Unknown commands answer 404 and malformed bodies 400.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/logger"
	"github.com/rileyhilliard/myssh/internal/metrics"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// Server routes HTTP requests to an Engine.
type Server struct {
	eng     *engine.Engine
	metrics *metrics.Metrics
	log     logger.Logger
	router  chi.Router
}

// New builds the router. m may be nil, in which case /metrics is not served.
func New(eng *engine.Engine, m *metrics.Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.Noop()
	}
	s := &Server{eng: eng, metrics: m, log: logger.With(log, "api")}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.observe)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/commands", s.listCommands)
		r.Post("/commands/{name}", s.runCommand)
		r.Get("/sessions", s.listSessions)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.WrapWithCode(err, errors.ErrConfig, "Can't listen on "+addr,
				"Pick another address with --listen or server.listen")
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// observe logs each request and records it in metrics under its route
// pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, route, status, time.Since(start))
		}
		s.log.Debug("%s %s %d %s", r.Method, logger.Sanitize(r.URL.Path), status, time.Since(start).Round(time.Microsecond))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"sessions": s.eng.Registry().Len(),
	})
}

func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"commands": s.eng.Commands()})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	resp, err := s.eng.Dispatch(r.Context(), engine.CmdListSessions, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) runCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.WrapWithCode(err, errors.ErrInvalidArgument,
			"Can't read request body", ""))
		return
	}

	resp, err := s.eng.Dispatch(r.Context(), name, body)
	switch {
	case errors.IsCode(err, errors.ErrUnknownCommand):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}
