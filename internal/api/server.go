// Package api provides the read-only HTTP status surface for the core:
// liveness/health, Prometheus metrics, and a handful of JSON endpoints
// exposing current activity, fabric, and scheduler state to an operator.
// It deliberately carries no write endpoints — commanding the system is a
// CLI/config concern, not an HTTP one.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sonata-sse/sse-core/internal/domain"
	"github.com/sonata-sse/sse-core/internal/health"
	"github.com/sonata-sse/sse-core/internal/infra/scheduler"
)

// ActivityView is the current-activity snapshot the status endpoint
// reports, supplied by the daemon's loop rather than read from the
// database directly — the running activity's authoritative state lives in
// the in-process domain.Activity, not in a row.
type ActivityView struct {
	ActivityId      int64               `json:"activity_id"`
	Kind            domain.ActivityKind `json:"kind"`
	State           domain.ActivityState `json:"state"`
	PrimaryTargetId domain.PrimaryTargetId `json:"primary_target_id"`
	Counters        domain.ActivityCounters `json:"counters"`
}

// ActivitySource supplies the currently running activity, if any.
type ActivitySource interface {
	CurrentActivity() (ActivityView, bool)
}

// FabricView reports registered-proxy counts per component category.
type FabricView struct {
	Telescopes int `json:"telescopes"`
	IFChains   int `json:"if_chains"`
	Testgens   int `json:"testgens"`
	Detectors  int `json:"detectors"`
}

// FabricSource supplies the fabric snapshot.
type FabricSource interface {
	FabricSnapshot() FabricView
}

// Server is the core's HTTP status server.
type Server struct {
	health         *health.Checker
	scheduler      *scheduler.TargetScheduler
	activities     ActivitySource
	fabric         FabricSource
	metricsEnabled bool
}

// NewServer constructs a Server bound to its read-only data sources.
func NewServer(h *health.Checker, sched *scheduler.TargetScheduler, activities ActivitySource, fabric FabricSource) *Server {
	return &Server{health: h, scheduler: sched, activities: activities, fabric: fabric}
}

// EnableMetrics turns on the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/activities/current", s.handleCurrentActivity)
		r.Get("/fabric", s.handleFabric)
		r.Get("/scheduler/stats", s.handleSchedulerStats)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.health.Check()
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleCurrentActivity(w http.ResponseWriter, r *http.Request) {
	view, ok := s.activities.CurrentActivity()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"running": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"running": true, "activity": view})
}

func (s *Server) handleFabric(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.fabric.FabricSnapshot())
}

func (s *Server) handleSchedulerStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
