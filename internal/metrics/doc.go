// Package metrics defines the Prometheus instrumentation for the recognizer
// pipeline: capture, segmentation, language decision and transcription.
package metrics
