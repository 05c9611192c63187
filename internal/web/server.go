// Package web provides the HTTP status and control server for the pipeline.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/nipa/internal/config"
	"github.com/JonMunkholm/nipa/internal/pipeline"
	"github.com/JonMunkholm/nipa/internal/publish"
	mw "github.com/JonMunkholm/nipa/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Server is the HTTP server exposing run status, datasets and metrics.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	catalog  publish.Catalog
	metrics  http.Handler
	router   *chi.Mux
	server   *http.Server

	// runCtx parents runs triggered over HTTP so they outlive the request.
	runCtx context.Context
}

// NewServer creates a Server. runCtx bounds runs started by POST /api/runs;
// metrics may be nil to disable /metrics.
func NewServer(runCtx context.Context, cfg *config.Config, p *pipeline.Pipeline, catalog publish.Catalog, metrics http.Handler) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		catalog:  catalog,
		metrics:  metrics,
		router:   chi.NewRouter(),
		runCtx:   runCtx,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.WriteTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.WriteTimeout))
	}
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/runs/latest", s.handleLatestRun)
		r.With(mw.APIKeyAuth(&s.cfg.Security)).Post("/runs", s.handleTriggerRun)

		r.Get("/datasets", s.handleListDatasets)
		r.Get("/datasets/{datasetID}", s.handleGetDataset)
		r.Get("/datasets/{datasetID}/export", s.handleExportDataset)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		// JSON only; nothing should ever load from these responses
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter keeps one token bucket per client IP. Idle buckets expire
// out of the cache.
type rateLimiter struct {
	visitors *cache.Cache
	limit    rate.Limit
	burst    int
	window   time.Duration
}

// newRateLimiter allows requests per window for each IP, with bursts up to requests.
func newRateLimiter(requests int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors: cache.New(2*window, window),
		limit:    rate.Limit(float64(requests) / window.Seconds()),
		burst:    requests,
		window:   window,
	}
}

func (rl *rateLimiter) limiter(ip string) *rate.Limiter {
	if v, ok := rl.visitors.Get(ip); ok {
		rl.visitors.SetDefault(ip, v)
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	// Add loses to a concurrent first request from the same IP; use theirs
	if err := rl.visitors.Add(ip, l, cache.DefaultExpiration); err != nil {
		if v, ok := rl.visitors.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// middleware returns an HTTP middleware that rate limits by IP.
// RemoteAddr has already been resolved by TrustedRealIP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.limiter(ip).Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeError writes a JSON error response for errors that need no mapping.
func writeError(w http.ResponseWriter, status int, message string) {
	slog.Warn("http error", "status", status, "message", message)
	writeJSONStatus(w, status, map[string]string{"error": message})
}

// writeJSON encodes v as a 200 JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
