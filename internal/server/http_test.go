package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/metrics"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/pipeline"
)

type stubProvider struct {
	status pipeline.StatusInfo
	path   string
}

func (s *stubProvider) GetStatus() pipeline.StatusInfo { return s.status }
func (s *stubProvider) LogPath() string                { return s.path }

func newTestServer() *HTTPServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	metrics.New(registry)

	stub := &stubProvider{
		status: pipeline.StatusInfo{
			State:         pipeline.StateRunning,
			QueueDepth:    3,
			QueueCapacity: 12,
			ModelName:     "small",
			ModelResident: true,
			Mode:          "standard",
		},
		path: "/tmp/log_2026-01-01_00-00-00.txt",
	}

	return NewHTTPServer(Config{Address: "127.0.0.1", Port: 8080}, logger, stub, registry)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", body["status"])
	}
	if body["pipeline"] != "running" {
		t.Errorf("Expected running pipeline, got %v", body["pipeline"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Pipeline      pipeline.StatusInfo `json:"pipeline"`
		TranscriptLog string              `json:"transcript_log"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Pipeline.QueueDepth != 3 {
		t.Errorf("Expected queue depth 3, got %d", body.Pipeline.QueueDepth)
	}
	if body.Pipeline.ModelName != "small" {
		t.Errorf("Expected model small, got %s", body.Pipeline.ModelName)
	}
	if !strings.HasSuffix(body.TranscriptLog, ".txt") {
		t.Errorf("Expected a transcript log path, got %q", body.TranscriptLog)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sanyou_frames_captured_total") {
		t.Error("Expected pipeline metrics in exposition output")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", rec.Code)
	}
}

func TestRootDocumentsEndpoints(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/status") {
		t.Error("Expected endpoint listing in root document")
	}

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for unknown path, got %d", rec.Code)
	}
}
