package vad

import (
	"testing"
	"time"
)

// testConfig uses frame-sized thresholds so tests can reason in frames:
// at 1000 Hz with 100-sample frames, min utterance = 2 frames, silence
// to end = 4 frames, max = 50 frames.
func testConfig() Config {
	return Config{
		SampleRate:      1000,
		EnergyThreshold: 0.015,
		MinUtterance:    200 * time.Millisecond,
		MaxUtterance:    5000 * time.Millisecond,
		SilenceToEnd:    400 * time.Millisecond,
	}
}

func frame(amplitude float32, n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = amplitude
	}
	return f
}

func TestNewSegmenterValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "zero sample rate", mutate: func(c *Config) { c.SampleRate = 0 }, expectErr: true},
		{name: "threshold too high", mutate: func(c *Config) { c.EnergyThreshold = 1.5 }, expectErr: true},
		{name: "zero threshold", mutate: func(c *Config) { c.EnergyThreshold = 0 }, expectErr: true},
		{name: "max below min", mutate: func(c *Config) { c.MaxUtterance = 100 * time.Millisecond }, expectErr: true},
		{name: "zero silence", mutate: func(c *Config) { c.SilenceToEnd = 0 }, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewSegmenter(cfg)
			if tt.expectErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestSilenceNeverEmits(t *testing.T) {
	seg, err := NewSegmenter(testConfig())
	if err != nil {
		t.Fatalf("Failed to create segmenter: %v", err)
	}

	for i := 0; i < 100; i++ {
		if utt := seg.Feed(frame(0.001, 100)); utt != nil {
			t.Fatalf("Expected no utterance from silence, got %d samples at frame %d", len(utt), i)
		}
	}

	stats := seg.Stats()
	if stats.UtterancesEmitted != 0 {
		t.Errorf("Expected 0 emitted utterances, got %d", stats.UtterancesEmitted)
	}
}

func TestSpeechThenSilenceEmitsOnce(t *testing.T) {
	seg, err := NewSegmenter(testConfig())
	if err != nil {
		t.Fatalf("Failed to create segmenter: %v", err)
	}

	// 3 voiced frames (300 samples, above the 200-sample minimum).
	for i := 0; i < 3; i++ {
		if utt := seg.Feed(frame(0.02, 100)); utt != nil {
			t.Fatalf("Unexpected emission during speech at frame %d", i)
		}
	}

	// 4 silent frames reach the 400-sample silence requirement; emission
	// happens on the last one.
	var got []float32
	for i := 0; i < 4; i++ {
		if utt := seg.Feed(frame(0.0, 100)); utt != nil {
			if got != nil {
				t.Fatal("Expected exactly one utterance")
			}
			got = utt
		}
	}

	if got == nil {
		t.Fatal("Expected an utterance after silence")
	}
	// The trailing silence run is trimmed: only in-speech samples remain.
	if len(got) != 300 {
		t.Errorf("Expected 300 in-speech samples, got %d", len(got))
	}

	stats := seg.Stats()
	if stats.UtterancesEmitted != 1 {
		t.Errorf("Expected 1 emitted utterance, got %d", stats.UtterancesEmitted)
	}
	if stats.BufferedSamples != 0 {
		t.Errorf("Expected buffer reset after emission, got %d samples", stats.BufferedSamples)
	}
}

func TestReferenceEnergySequence(t *testing.T) {
	// Energy sequence [0,0,.02,.02,.02,0,0,0,0,0] with threshold 0.015,
	// min 2 frames, silence 4 frames: one utterance, buffer reset after.
	seg, err := NewSegmenter(testConfig())
	if err != nil {
		t.Fatalf("Failed to create segmenter: %v", err)
	}

	energies := []float32{0, 0, 0.02, 0.02, 0.02, 0, 0, 0, 0, 0}
	var emissions int
	var got []float32
	for _, e := range energies {
		if utt := seg.Feed(frame(e, 100)); utt != nil {
			emissions++
			got = utt
		}
	}

	if emissions != 1 {
		t.Errorf("Expected exactly 1 utterance, got %d", emissions)
	}
	if len(got) != 300 {
		t.Errorf("Expected utterance of 3 frames (300 samples), got %d", len(got))
	}
	if stats := seg.Stats(); stats.BufferedSamples != 0 || stats.InSpeech {
		t.Errorf("Expected clean state after emission, got %+v", stats)
	}
}

func TestShortSpeechDiscardedAsNoise(t *testing.T) {
	seg, err := NewSegmenter(testConfig())
	if err != nil {
		t.Fatalf("Failed to create segmenter: %v", err)
	}

	// Single voiced frame (100 samples, below the 200-sample minimum).
	seg.Feed(frame(0.02, 100))
	for i := 0; i < 4; i++ {
		if utt := seg.Feed(frame(0.0, 100)); utt != nil {
			t.Fatal("Expected short speech to be discarded, got an utterance")
		}
	}

	stats := seg.Stats()
	if stats.UtterancesDiscarded != 1 {
		t.Errorf("Expected 1 discarded utterance, got %d", stats.UtterancesDiscarded)
	}
	if stats.BufferedSamples != 0 {
		t.Errorf("Expected buffer reset after discard, got %d samples", stats.BufferedSamples)
	}
}

func TestMaxDurationForcesCut(t *testing.T) {
	seg, err := NewSegmenter(testConfig())
	if err != nil {
		t.Fatalf("Failed to create segmenter: %v", err)
	}

	// Continuous speech: cut must land exactly when the buffer reaches
	// 5000 samples (50 frames), regardless of silence state.
	var got []float32
	var cutFrame int
	for i := 0; i < 60; i++ {
		if utt := seg.Feed(frame(0.02, 100)); utt != nil {
			got = utt
			cutFrame = i
			break
		}
	}

	if got == nil {
		t.Fatal("Expected forced cut on continuous speech")
	}
	if len(got) != 5000 {
		t.Errorf("Expected cut at 5000 samples, got %d", len(got))
	}
	if cutFrame != 49 {
		t.Errorf("Expected cut on frame 49, got %d", cutFrame)
	}

	// Segmenter must be immediately ready for the next utterance.
	for i := 0; i < 50; i++ {
		if utt := seg.Feed(frame(0.02, 100)); utt != nil {
			if len(utt) != 5000 {
				t.Errorf("Expected second cut at 5000 samples, got %d", len(utt))
			}
			return
		}
	}
	t.Error("Expected a second forced cut")
}

func TestMaxCutClampsSilenceRun(t *testing.T) {
	// Max at 4950 samples so a silent frame straddles the cut: the first
	// 50 silence samples leave with the emitted utterance and must stop
	// counting toward the remainder's end-of-utterance silence.
	cfg := testConfig()
	cfg.MaxUtterance = 4950 * time.Millisecond
	seg, err := NewSegmenter(cfg)
	if err != nil {
		t.Fatalf("Failed to create segmenter: %v", err)
	}

	for i := 0; i < 47; i++ {
		if utt := seg.Feed(frame(0.02, 100)); utt != nil {
			t.Fatalf("Unexpected emission during speech at frame %d", i)
		}
	}

	// Three silent frames: the third crosses the 4950-sample cutoff.
	var first []float32
	for i := 0; i < 3; i++ {
		if utt := seg.Feed(frame(0.0, 100)); utt != nil {
			first = utt
		}
	}
	if first == nil {
		t.Fatal("Expected forced cut on the third silent frame")
	}
	if len(first) != 4950 {
		t.Errorf("Expected cut at 4950 samples, got %d", len(first))
	}

	// One more silent frame, then speech resumes. If silence emitted with
	// the cut still counted, the silence run would hit 400 here and throw
	// the remainder away as noise.
	if utt := seg.Feed(frame(0.0, 100)); utt != nil {
		t.Fatalf("Unexpected emission right after the cut, got %d samples", len(utt))
	}
	seg.Feed(frame(0.02, 100))
	seg.Feed(frame(0.02, 100))

	var second []float32
	for i := 0; i < 4; i++ {
		if utt := seg.Feed(frame(0.0, 100)); utt != nil {
			second = utt
		}
	}
	if second == nil {
		t.Fatal("Expected an utterance from the carried-over remainder")
	}
	// 50 remainder + 100 silence + 200 speech survive the trailing trim.
	if len(second) != 350 {
		t.Errorf("Expected 350 samples including the remainder, got %d", len(second))
	}

	if stats := seg.Stats(); stats.UtterancesDiscarded != 0 {
		t.Errorf("Expected no discards, got %d", stats.UtterancesDiscarded)
	}
}

func TestResetDropsBufferedSpeech(t *testing.T) {
	seg, err := NewSegmenter(testConfig())
	if err != nil {
		t.Fatalf("Failed to create segmenter: %v", err)
	}

	seg.Feed(frame(0.02, 100))
	seg.Feed(frame(0.02, 100))
	seg.Reset()

	// Silence after reset must not emit the dropped speech.
	for i := 0; i < 10; i++ {
		if utt := seg.Feed(frame(0.0, 100)); utt != nil {
			t.Fatal("Expected no emission after reset")
		}
	}

	if stats := seg.Stats(); stats.InSpeech {
		t.Error("Expected in-speech flag cleared by reset")
	}
}

func TestEnergy(t *testing.T) {
	if e := Energy(nil); e != 0 {
		t.Errorf("Expected zero energy for empty frame, got %f", e)
	}

	f := []float32{0.5, -0.5, 0.5, -0.5}
	if e := Energy(f); e < 0.499 || e > 0.501 {
		t.Errorf("Expected energy 0.5, got %f", e)
	}
}
