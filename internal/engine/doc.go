// Package engine defines the boundary to the speech-to-text engine.
// It exposes the Engine interface consumed by the pipeline, a whisper.cpp
// backed implementation, and a scriptable mock for tests.
package engine
