package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/metrics"
	"salonbook/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPServer exposes the booking and schedule API.
type HTTPServer struct {
	cfg         config.ServerConfig
	scheduleSvc *service.ScheduleService
	bookingSvc  *service.BookingService
	db          *database.DB
	server      *http.Server
	throttle    *clientThrottle
	logger      zerolog.Logger
}

func NewHTTPServer(cfg config.ServerConfig, scheduleSvc *service.ScheduleService, bookingSvc *service.BookingService, db *database.DB, logger zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:         cfg,
		scheduleSvc: scheduleSvc,
		bookingSvc:  bookingSvc,
		db:          db,
		throttle:    newClientThrottle(cfg.ThrottleRPS, cfg.ThrottleBurst),
		logger:      logger.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/schedule", srv.handleSchedule)
	mux.HandleFunc("/api/schedule/overrides", srv.handleOverrides)
	mux.HandleFunc("/api/bookings", srv.handleBookings)
	mux.HandleFunc("/api/bookings/", srv.handleBookingByID)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.throttleMiddleware(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clientIP prefers the first X-Forwarded-For entry, then X-Real-IP.
// The rate-limit key is "unknown" when neither is present, which lumps
// direct connections together behind a proxyless deployment.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return "unknown"
}

// clientThrottle is a coarse per-client request limiter over the whole
// API surface, separate from the booking admission quota.
type clientThrottle struct {
	rps      float64
	burst    int
	limiters sync.Map // map[string]*rate.Limiter
}

func newClientThrottle(rps float64, burst int) *clientThrottle {
	if burst <= 0 {
		burst = 5
	}
	return &clientThrottle{rps: rps, burst: burst}
}

func (t *clientThrottle) allow(key string) bool {
	if t.rps <= 0 {
		return true
	}
	return t.getLimiter(key).Allow()
}

func (t *clientThrottle) getLimiter(key string) *rate.Limiter {
	if v, ok := t.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	lim := rate.NewLimiter(rate.Limit(t.rps), t.burst)
	actual, loaded := t.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (s *HTTPServer) throttleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.throttle.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(endpointLabel(r.URL.Path), fmt.Sprintf("%d", recorder.status))

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Str("ip", clientIP(r)).
			Msg("http request")
	})
}

// endpointLabel collapses paths with embedded ids to keep metric
// cardinality bounded.
func endpointLabel(path string) string {
	switch {
	case path == "/api/schedule":
		return "/api/schedule"
	case path == "/api/schedule/overrides":
		return "/api/schedule/overrides"
	case path == "/api/bookings":
		return "/api/bookings"
	case strings.HasPrefix(path, "/api/bookings/"):
		return "/api/bookings/{id}"
	case path == "/healthz":
		return "/healthz"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
