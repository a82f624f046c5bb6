package engine

import (
	"context"
	"sync"
)

// Mock is a scriptable Engine for tests. Transcripts are keyed by language;
// probability maps are played back in order, repeating the last one when the
// script runs out.
type Mock struct {
	mu sync.Mutex

	// Transcripts maps a language code to the text returned for it.
	Transcripts map[string]string

	// Probs is the sequence of probability maps returned by successive
	// DetectLanguages calls.
	Probs []map[string]float64

	// TranscribeErr / DetectErr, when set, are returned by every call.
	TranscribeErr error
	DetectErr     error

	transcribeCalls int
	detectCalls     int
	transcribeLangs []string
}

// Transcribe returns the scripted transcript for lang.
func (m *Mock) Transcribe(_ context.Context, _ []float32, _ int, lang string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transcribeCalls++
	m.transcribeLangs = append(m.transcribeLangs, lang)

	if m.TranscribeErr != nil {
		return "", m.TranscribeErr
	}
	return m.Transcripts[lang], nil
}

// DetectLanguages returns the next scripted probability map.
func (m *Mock) DetectLanguages(_ context.Context, _ []float32, _ int) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detectCalls++

	if m.DetectErr != nil {
		return nil, m.DetectErr
	}
	if len(m.Probs) == 0 {
		return map[string]float64{}, nil
	}

	idx := m.detectCalls - 1
	if idx >= len(m.Probs) {
		idx = len(m.Probs) - 1
	}
	return m.Probs[idx], nil
}

// Close implements Engine.
func (m *Mock) Close() error { return nil }

// TranscribeCalls returns how many times Transcribe was invoked.
func (m *Mock) TranscribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcribeCalls
}

// DetectCalls returns how many times DetectLanguages was invoked.
func (m *Mock) DetectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detectCalls
}

// TranscribeLangs returns the language hints passed to Transcribe, in call
// order.
func (m *Mock) TranscribeLangs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	langs := make([]string, len(m.transcribeLangs))
	copy(langs, m.transcribeLangs)
	return langs
}
