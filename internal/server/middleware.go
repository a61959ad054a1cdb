package server

import (
	"math"
	"net"
	"net/http"
	"net/netip"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"attendancehook/internal/apperr"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goerrors "github.com/goliatone/go-errors"
)

// requestLogger writes one http_request line per request and counts it in
// metrics. Health checks are not logged.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			s.Metrics.ObserveRequest(route, r.Method, status)

			if strings.HasPrefix(r.URL.Path, "/health") {
				return
			}
			s.Logger.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"ip", clientIP(r),
				"request_id", middleware.GetReqID(r.Context()))
		}()

		next.ServeHTTP(ww, r)
	})
}

// realIP applies middleware.RealIP only when the TCP peer is a configured
// trusted proxy. Forwarding headers from any other peer are ignored.
func (s *Server) realIP(next http.Handler) http.Handler {
	trusted := middleware.RealIP(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Config != nil && len(s.Config.TrustedProxies) > 0 {
			if peer, ok := peerAddr(r.RemoteAddr); ok && s.Config.TrustsProxy(peer) {
				trusted.ServeHTTP(w, r)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a panic into a 500 envelope and logs the stack. A
// response that has already started is left as is.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww, ok := w.(middleware.WrapResponseWriter)
		if !ok {
			ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		}

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			s.Logger.Error("Panic while handling request",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(r.Context()),
				"response_started", ww.Status() != 0,
				"stack", string(debug.Stack()))

			if ww.Status() != 0 {
				return
			}
			s.respondError(ww,
				apperr.New("panic recovered", goerrors.CategoryInternal, http.StatusInternalServerError, apperr.CodeInternal),
				"")
		}()

		next.ServeHTTP(ww, r)
	})
}

// rateLimit enforces the per-IP budget. Limiter errors let the request
// through so a storage outage never blocks notifications.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		decision, err := s.Limiter.Allow(r.Context(), ip)
		if err != nil {
			s.Logger.Warn("Rate limiter unavailable, allowing request", "ip", ip, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			s.Metrics.IncRateLimited()
			s.Logger.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			s.respondError(w,
				apperr.New("rate limit exceeded", goerrors.CategoryRateLimit, http.StatusTooManyRequests, apperr.CodeRateLimited),
				"")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP is the request origin without its port. Forwarding headers are
// already applied for trusted proxies (see realIP).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func peerAddr(remoteAddr string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}
	addr, err := netip.ParseAddr(remoteAddr)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
