package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/observability"
)

// Server is the inbound HTTP listener wrapping the request handler.
type Server struct {
	cfg        *config.Config
	handler    *Handler
	httpServer *http.Server
}

// NewServer assembles the pipeline and the router.
func NewServer(cfg *config.Config) (*Server, error) {
	handler, err := NewHandler(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		handler: handler,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.router(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
	}

	return s, nil
}

// router builds the chi route tree with the middleware chain.
func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(corsMiddleware(s.cfg.Server.CORSOrigins))
	r.Use(observability.HTTPMiddleware(observability.GetTracer("stentor.http")))

	r.Get("/health", s.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat/completions", s.handler.ChatCompletions)
		r.Get("/models", s.handler.Models)
		r.Get("/sessions", s.handler.ListSessions)
		r.Delete("/sessions/{id}", s.handler.DeleteSession)
	})

	return r
}

// Handler returns the assembled route tree. Tests drive it through
// httptest without opening a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Reload rebuilds the request pipeline from a new config snapshot.
func (s *Server) Reload(cfg *config.Config) error {
	return s.handler.Reload(cfg)
}

// Start runs the listener until the context is canceled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	s.handler.Sessions().StartEviction(ctx,
		s.cfg.Sessions.TTL.Duration(),
		s.cfg.Sessions.CleanupInterval.Duration(),
	)

	slog.Info("Server starting",
		"address", s.httpServer.Addr,
		"model", s.handler.model,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		return s.Stop(shutdownCtx)
	})

	return g.Wait()
}

// Stop shuts the listener down and releases the pipeline.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Server shutting down")
	err := s.httpServer.Shutdown(ctx)
	s.handler.Close()
	return err
}

// requestLogger logs one line per request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// corsMiddleware answers preflight requests and sets the allow headers for
// the configured origins.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	wildcard := false
	for _, origin := range origins {
		if origin == "*" {
			wildcard = true
		}
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (wildcard || allowed[origin]) {
				if wildcard {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-ID")
				w.Header().Set("Access-Control-Expose-Headers", "X-Session-ID")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
