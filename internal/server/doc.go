// Package server exposes the observability HTTP endpoints: health, pipeline
// status, input device listing and Prometheus metrics.
package server
