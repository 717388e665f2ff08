// Package api provides the HTTP server for taskbay.
// Every lifecycle operation is one route; the caller's identity travels in
// the X-Caller header and attached value in the JSON body.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskbay/taskbay/internal/app/platform"
	"github.com/taskbay/taskbay/internal/domain"
	"github.com/taskbay/taskbay/internal/health"
)

// CallerHeader carries the identity of the party making a request.
const CallerHeader = "X-Caller"

// HealthReporter is satisfied by *health.Checker.
type HealthReporter interface {
	Statuses() []health.Status
	IsHealthy() bool
}

// Server is the taskbay HTTP API server.
type Server struct {
	engine         *platform.Engine
	log            *slog.Logger
	health         HealthReporter
	corsOrigins    []string
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(engine *platform.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:      engine,
		log:         log.With("component", "api"),
		corsOrigins: []string{"*"},
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches the health checker reported by /health.
func (s *Server) SetHealth(h HealthReporter) { s.health = h }

// SetCORSOrigins restricts the allowed browser origins. "*" allows any.
func (s *Server) SetCORSOrigins(origins []string) {
	if len(origins) > 0 {
		s.corsOrigins = origins
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/platform", func(r chi.Router) {
			r.Get("/", s.handlePlatform)
			r.Put("/fee", s.handleSetFee)
			r.Post("/withdraw", s.handleWithdraw)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleAddTask)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Delete("/", s.handleDeleteTask)
				r.Get("/actions", s.handleActions)
				r.Post("/apply", s.handleApply)
				r.Post("/assign", s.handleAssign)
				r.Post("/unassign", s.handleUnassign)
				r.Post("/submit", s.handleSubmit)
				r.Post("/complete", s.handleComplete)
				r.Post("/payment", s.handlePayment)
				r.Post("/changes", s.handleRequestChange)
			})
		})

		r.Get("/ratings/{address}", s.handleRating)
		r.Get("/ledger/{account}", s.handleLedger)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// ─── Request Helpers ────────────────────────────────────────────────────────

// caller returns the identity from the X-Caller header, or the zero address.
func caller(r *http.Request) domain.Address {
	if c := strings.TrimSpace(r.Header.Get(CallerHeader)); c != "" {
		return domain.Address(c)
	}
	return domain.Unassigned
}

func taskID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badInput("task id %q is not a number", raw)
	}
	return id, nil
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return badInput("malformed JSON body: %v", err)
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response for err, choosing the status
// from its domain kind.
func writeError(w http.ResponseWriter, err error) {
	kind := domain.ErrorKind(err)
	writeJSON(w, statusFor(kind), map[string]any{
		"error": map[string]any{
			"kind":    kind,
			"message": err.Error(),
		},
	})
}

func statusFor(kind string) int {
	switch kind {
	case "NotFound":
		return http.StatusNotFound
	case "Unauthorized":
		return http.StatusForbidden
	case "InvalidAmount", "InvalidInput", "InvalidRating":
		return http.StatusBadRequest
	case "InvalidState", "InvalidCandidate", "NotAssigned", "LimitExceeded", "InsufficientEscrow":
		return http.StatusConflict
	case "TooEarly":
		return http.StatusTooEarly
	default:
		return http.StatusInternalServerError
	}
}

// ─── Middleware ─────────────────────────────────────────────────────────────

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// corsMiddleware adds CORS headers for browser clients.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case slices.Contains(s.corsOrigins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.corsOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+CallerHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
