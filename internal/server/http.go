package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/audio"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/pipeline"
)

// StatusProvider is the slice of the pipeline controller the server reads.
type StatusProvider interface {
	GetStatus() pipeline.StatusInfo
	LogPath() string
}

// Config contains HTTP server configuration
type Config struct {
	Address string
	Port    int
}

// HTTPServer provides HTTP endpoints for monitoring
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	ctrl      StatusProvider
	startTime time.Time
}

// NewHTTPServer creates the observability server. gatherer backs /metrics;
// pass the registry the pipeline metrics were registered on.
func NewHTTPServer(cfg Config, logger *slog.Logger, ctrl StatusProvider, gatherer prometheus.Gatherer) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		ctrl:      ctrl,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/devices", h.handleDevices)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", h.handleRoot)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the route mux; used by tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// Start starts the HTTP server in the background.
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /healthz endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.ctrl.GetStatus()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"pipeline":  status.State,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"timestamp":      time.Now().UTC(),
		"pipeline":       h.ctrl.GetStatus(),
		"transcript_log": h.ctrl.LogPath(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleDevices implements the /devices endpoint
func (h *HTTPServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	devices, err := audio.ListInputDevices()
	if err != nil {
		h.logger.Error("Failed to enumerate devices", slog.String("error", err.Error()))
		http.Error(w, "Failed to enumerate devices", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"total_devices": len(devices),
		"timestamp":     time.Now().UTC(),
		"devices":       devices,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "sanyou-ai",
		"endpoints": map[string]interface{}{
			"GET /":        "API documentation",
			"GET /healthz": "Service health check",
			"GET /status":  "Pipeline status snapshot",
			"GET /devices": "List audio input devices",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
