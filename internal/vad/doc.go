// Package vad implements energy-based speech segmentation for the capture
// pipeline. It accumulates frames into an utterance buffer and emits the
// utterance on end-of-speech silence or at the maximum-duration cutoff.
package vad
