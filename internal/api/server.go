package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"flightlogger/pkg/logging"
	"flightlogger/pkg/tracker"
	"flightlogger/pkg/version"
)

// Handlers bundles the endpoints mounted by NewRouter. Bridge is nil when
// telemetry comes from the mock simulator.
type Handlers struct {
	Session   *SessionHandler
	Telemetry *TelemetryHandler
	Bridge    http.Handler
	Stats     *tracker.Tracker
	Shutdown  func()
}

// NewServer creates and configures the HTTP server.
func NewServer(addr string, h *Handlers) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// NewRouter mounts all routes.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLog)

	r.Get("/health", handleHealth)
	r.Get("/api/version", handleVersion)
	r.Get("/api/log/latest", handleLatestLog)

	if h.Session != nil {
		r.Get("/api/session", h.Session.handleSession)
	}
	if h.Telemetry != nil {
		r.Get("/api/telemetry", h.Telemetry.handleTelemetry)
	}
	if h.Bridge != nil {
		r.Get("/ws/telemetry", h.Bridge.ServeHTTP)
	}
	if h.Stats != nil {
		stats := h.Stats
		r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"providers": stats.Snapshot()})
		})
	}

	if h.Shutdown != nil {
		shutdown := h.Shutdown
		r.Post("/api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			// Let the response flush first.
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	return r
}

// requestLog writes one line per request to the request log.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.RequestLogger.Info("Request Processed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}
