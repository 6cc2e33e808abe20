// Package api serves wallet profiles over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/orchestrator"
)

// Defaults.
const (
	DefaultRequestTimeout = 90 * time.Second
	DefaultHistoryLimit   = 20
	MaxHistoryLimit       = 200
)

// ProfileService is the subset of the orchestrator the API serves.
type ProfileService interface {
	GetProfile(ctx context.Context, wallet string, opts orchestrator.GetOptions) (*domain.WalletProfile, error)
	Refresh(ctx context.Context, wallet string) (*domain.WalletProfile, error)
	Invalidate(ctx context.Context, wallet string) error
	History(ctx context.Context, wallet string, limit int) ([]*domain.WalletProfile, error)
}

// Options configures a Server.
type Options struct {
	Addr           string
	RequestTimeout time.Duration
	Metrics        *observability.Metrics
	Logger         zerolog.Logger
}

// Server is the HTTP front of the profile service.
type Server struct {
	svc     ProfileService
	router  *chi.Mux
	server  *http.Server
	timeout time.Duration
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewServer builds the router and the underlying http.Server.
func NewServer(svc ProfileService, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.DefaultMetrics
	}

	s := &Server{
		svc:     svc,
		router:  chi.NewRouter(),
		timeout: opts.RequestTimeout,
		metrics: opts.Metrics,
		logger:  opts.Logger.With().Str("component", "api").Logger(),
	}
	s.routes()

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", observability.Handler())

	r.Route("/wallets/{address}/profile", func(r chi.Router) {
		r.Use(s.withTimeout)
		r.Get("/", s.handleGetProfile)
		r.Delete("/", s.handleInvalidate)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/history", s.handleHistory)
	})
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// instrument logs each request and records it by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		s.metrics.RecordHTTPRequest(route, status, d)

		ev := s.logger.Debug()
		if status >= http.StatusInternalServerError {
			ev = s.logger.Warn()
		}
		ev.Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", d).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
