// Package pipeline wires capture, segmentation, language decision and
// transcription dispatch into one lifecycle-managed controller. The
// controller owns all worker goroutines and publishes results and state
// changes on a buffered event stream.
package pipeline
