package vad

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Config contains the segmenter tunables. All durations are converted to
// sample counts at the given sample rate.
type Config struct {
	SampleRate      int
	EnergyThreshold float32       // mean-abs amplitude threshold, normalized float
	MinUtterance    time.Duration // shorter buffers are discarded as noise
	MaxUtterance    time.Duration // forced cut on continuous speech
	SilenceToEnd    time.Duration // silence run that ends an utterance
}

// DefaultConfig returns the reference tuning: 0.015 threshold, 900 ms
// minimum, 6000 ms maximum, 450 ms of silence to end an utterance.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:      sampleRate,
		EnergyThreshold: 0.015,
		MinUtterance:    900 * time.Millisecond,
		MaxUtterance:    6000 * time.Millisecond,
		SilenceToEnd:    450 * time.Millisecond,
	}
}

// SegmenterStats is a snapshot of segmenter counters.
type SegmenterStats struct {
	InSpeech            bool   `json:"in_speech"`
	BufferedSamples     int    `json:"buffered_samples"`
	FramesObserved      uint64 `json:"frames_observed"`
	UtterancesEmitted   uint64 `json:"utterances_emitted"`
	UtterancesDiscarded uint64 `json:"utterances_discarded"`
}

// Segmenter is a two-state (silence / in-speech) utterance assembler keyed
// off short-term mean-abs energy. It is safe for use from a single consumer
// goroutine; the mutex only guards the stats snapshot taken by monitoring.
type Segmenter struct {
	threshold   float32
	minSamples  int
	maxSamples  int
	needSilence int

	mu         sync.Mutex
	buf        []float32
	silenceRun int
	inSpeech   bool
	framesSeen uint64
	emitted    uint64
	discarded  uint64
}

// NewSegmenter creates a Segmenter from the config.
func NewSegmenter(cfg Config) (*Segmenter, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.EnergyThreshold <= 0 || cfg.EnergyThreshold >= 1 {
		return nil, fmt.Errorf("energy threshold must be in (0, 1), got %f", cfg.EnergyThreshold)
	}
	if cfg.MinUtterance <= 0 || cfg.MaxUtterance <= cfg.MinUtterance {
		return nil, fmt.Errorf("max utterance (%v) must exceed min utterance (%v)", cfg.MaxUtterance, cfg.MinUtterance)
	}
	if cfg.SilenceToEnd <= 0 {
		return nil, fmt.Errorf("silence duration must be positive, got %v", cfg.SilenceToEnd)
	}

	return &Segmenter{
		threshold:   cfg.EnergyThreshold,
		minSamples:  durationSamples(cfg.MinUtterance, cfg.SampleRate),
		maxSamples:  durationSamples(cfg.MaxUtterance, cfg.SampleRate),
		needSilence: durationSamples(cfg.SilenceToEnd, cfg.SampleRate),
	}, nil
}

// Feed consumes one frame and returns a finished utterance, or nil when no
// utterance completed. The returned slice is owned by the caller; the
// internal buffer is reset on emission.
func (s *Segmenter) Feed(frame []float32) []float32 {
	if len(frame) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.framesSeen++

	if Energy(frame) >= s.threshold {
		s.inSpeech = true
		s.silenceRun = 0
	} else {
		s.silenceRun += len(frame)
	}

	// Pre-speech silence is never buffered; intra-utterance silence is,
	// so word gaps survive in the emitted audio.
	if !s.inSpeech {
		return nil
	}
	s.buf = append(s.buf, frame...)

	// Forced cut: continuous speech must not grow the buffer unbounded.
	// The remainder past the cutoff seeds the next utterance.
	if len(s.buf) >= s.maxSamples {
		utt := make([]float32, s.maxSamples)
		copy(utt, s.buf)
		rest := s.buf[s.maxSamples:]
		s.buf = append(s.buf[:0], rest...)
		// Silence that left with the emitted utterance must not count
		// against the carried-over remainder.
		if s.silenceRun > len(s.buf) {
			s.silenceRun = len(s.buf)
		}
		s.emitted++
		return utt
	}

	// A long enough pause ends the utterance. The trailing silence run is
	// trimmed so the utterance holds only the in-speech samples.
	if s.silenceRun >= s.needSilence {
		speech := len(s.buf) - s.silenceRun
		if speech >= s.minSamples {
			utt := make([]float32, speech)
			copy(utt, s.buf)
			s.emitted++
			s.resetLocked()
			return utt
		}
		s.discarded++
		s.resetLocked()
	}

	return nil
}

// Reset clears the buffer and state without emitting; used on pause and
// after stream errors.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Stats returns a snapshot of the segmenter counters.
func (s *Segmenter) Stats() SegmenterStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SegmenterStats{
		InSpeech:            s.inSpeech,
		BufferedSamples:     len(s.buf),
		FramesObserved:      s.framesSeen,
		UtterancesEmitted:   s.emitted,
		UtterancesDiscarded: s.discarded,
	}
}

func (s *Segmenter) resetLocked() {
	s.buf = s.buf[:0]
	s.silenceRun = 0
	s.inSpeech = false
}

// Energy returns the mean absolute amplitude of the frame.
func Energy(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		sum += math.Abs(float64(v))
	}
	return float32(sum / float64(len(frame)))
}

func durationSamples(d time.Duration, sampleRate int) int {
	return int(float64(sampleRate) * d.Seconds())
}
