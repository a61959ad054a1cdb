package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"attendancehook/internal/attendance"
	"attendancehook/internal/config"
	"attendancehook/internal/metrics"
	"attendancehook/internal/notify"
	"attendancehook/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts. The write timeout is added on top of the
	// request deadline (see httpServer).
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// RequestTimeout is the minimum request deadline. It is raised to the
	// outbound API timeout plus OutboundMargin when that is longer.
	RequestTimeout = 60 * time.Second
	OutboundMargin = 10 * time.Second

	// ShutdownTimeout bounds the graceful drain of in-flight requests.
	ShutdownTimeout = 15 * time.Second

	ServiceName = "WhatsApp Attendance Notifier"
)

// Dispatcher sends one notification per validated event.
// *notify.Notifier implements it.
type Dispatcher interface {
	Notify(ctx context.Context, ev attendance.Event) (*notify.Result, error)
}

// Server represents the HTTP server
type Server struct {
	Config   *config.Config
	Notifier Dispatcher
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Version  string
	Now      func() time.Time
}

// NewServer creates a new server instance. A nil limiter disables rate
// limiting; nil metrics disables /metrics.
func NewServer(cfg *config.Config, notifier Dispatcher, limiter ratelimit.Limiter, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		Config:   cfg,
		Notifier: notifier,
		Limiter:  limiter,
		Metrics:  m,
		Logger:   logger,
		Version:  "dev",
		Now:      time.Now,
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(s.realIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(middleware.Timeout(s.requestTimeout()))

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	// Health checks and scrapes stay outside the budget
	r.Get("/health", s.HandleHealth)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if s.Limiter != nil {
			r.Use(s.rateLimit)
		}
		r.Get("/", s.HandleIndex)
		r.Get("/attendance-webhook", s.HandleVerify)
		r.Post("/attendance-webhook", s.HandleWebhook)
	})

	return r
}

// requestTimeout is the per-request deadline. It always leaves room for the
// configured outbound API timeout.
func (s *Server) requestTimeout() time.Duration {
	timeout := RequestTimeout
	if s.Config != nil && s.Config.WhatsApp.Timeout+OutboundMargin > timeout {
		timeout = s.Config.WhatsApp.Timeout + OutboundMargin
	}
	return timeout
}

// httpServer builds the listener configuration for addr.
func (s *Server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: s.requestTimeout() + HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}
}

// Start serves on addr until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := s.httpServer(addr)
	s.Logger.Info("Starting server", "addr", addr, "environment", s.environment())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) environment() string {
	if s.Config == nil {
		return ""
	}
	return string(s.Config.Environment)
}
