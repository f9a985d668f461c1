package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/wildfire-tracker/internal/adapter/sqlite"
	"github.com/couchcryptid/wildfire-tracker/internal/tracker"
)

// FireLister reports the live fire state of each region.
type FireLister interface {
	Regions() []string
	Snapshot(region string, all bool) (tracker.Snapshot, bool)
}

// StepHistory reads the audit log of applied steps.
type StepHistory interface {
	Recent(ctx context.Context, region string, limit int) ([]sqlite.StepRecord, error)
}

// Server exposes health, readiness, metrics, and fire state HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with health, readiness, and metrics
// routes plus the /regions fire state and step history routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, fires FireLister, steps StepHistory, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /regions", handleRegions(fires))
	mux.HandleFunc("GET /regions/{region}/fires", handleFires(fires))
	mux.HandleFunc("GET /regions/{region}/steps", s.handleSteps(steps))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleRegions(fires FireLister) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sharedobs.WriteJSON(w, http.StatusOK, map[string][]string{"regions": fires.Regions()})
	}
}

// handleFires lists the fires that may still grow; ?state=all includes dead
// and invalid fires.
func handleFires(fires FireLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		region := r.PathValue("region")
		all := false
		switch state := r.URL.Query().Get("state"); state {
		case "", "live":
		case "all":
			all = true
		default:
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "state must be live or all"})
			return
		}

		snap, ok := fires.Snapshot(region, all)
		if !ok {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "unknown region " + region})
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, snap)
	}
}

// handleSteps lists the latest logged steps of a region, ?limit=N (default 20, max 500).
func (s *Server) handleSteps(steps StepHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1-500"})
				return
			}
			limit = n
		}

		region := r.PathValue("region")
		records, err := steps.Recent(r.Context(), region, limit)
		if err != nil {
			s.logger.Error("step history query failed", "region", region, "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "step history unavailable"})
			return
		}
		if records == nil {
			records = []sqlite.StepRecord{}
		}
		sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"region": region, "steps": records})
	}
}
