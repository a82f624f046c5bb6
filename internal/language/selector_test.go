package language

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/engine"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSamples() []float32 {
	return make([]float32, 16000)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		chosen    Code
		expectErr bool
	}{
		{name: "standard", mode: "standard", chosen: Russian},
		{name: "priority", mode: "priority", chosen: English},
		{name: "exclusive", mode: "exclusive", chosen: Chinese},
		{name: "unknown mode", mode: "adaptive", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMode(tt.mode, tt.chosen)
			if tt.expectErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if m.Name() != tt.mode {
				t.Errorf("Expected mode name %s, got %s", tt.mode, m.Name())
			}
		})
	}
}

func TestExclusiveModeNeverDetects(t *testing.T) {
	mock := &engine.Mock{
		Transcripts: map[string]string{"zh": "你好"},
		Probs:       []map[string]float64{{"ru": 0.9}},
	}
	sel := NewSelector(testLogger(), SelectorConfig{})

	d := sel.Decide(context.Background(), mock, testSamples(), 16000, Exclusive{Lang: Chinese})

	if d.Lang != Chinese {
		t.Errorf("Expected language zh, got %s", d.Lang)
	}
	if d.Text != "你好" {
		t.Errorf("Expected transcript 你好, got %q", d.Text)
	}
	if mock.DetectCalls() != 0 {
		t.Errorf("Expected 0 detection calls in exclusive mode, got %d", mock.DetectCalls())
	}
	if got := mock.TranscribeLangs(); len(got) != 1 || got[0] != "zh" {
		t.Errorf("Expected single transcription in zh, got %v", got)
	}
}

func TestPriorityModeNoFallbackOnGoodText(t *testing.T) {
	mock := &engine.Mock{
		Transcripts: map[string]string{"ru": "привет мир"},
	}
	sel := NewSelector(testLogger(), SelectorConfig{})

	d := sel.Decide(context.Background(), mock, testSamples(), 16000, Priority{Primary: Russian})

	if d.Lang != Russian {
		t.Errorf("Expected language ru, got %s", d.Lang)
	}
	if mock.TranscribeCalls() != 1 {
		t.Errorf("Expected exactly 1 transcription call, got %d", mock.TranscribeCalls())
	}
	if mock.DetectCalls() != 0 {
		t.Errorf("Expected no detection call, got %d", mock.DetectCalls())
	}
}

func TestPriorityModeFallbackExcludesPrimary(t *testing.T) {
	mock := &engine.Mock{
		Transcripts: map[string]string{"ru": "", "en": "hello there"},
		// Primary would win the detection; it must be excluded.
		Probs: []map[string]float64{{"ru": 0.8, "en": 0.6, "zh": 0.1}},
	}
	sel := NewSelector(testLogger(), SelectorConfig{})

	d := sel.Decide(context.Background(), mock, testSamples(), 16000, Priority{Primary: Russian})

	if d.Lang != English {
		t.Errorf("Expected fallback language en, got %s", d.Lang)
	}
	if d.Text != "hello there" {
		t.Errorf("Expected fallback transcript, got %q", d.Text)
	}
	if mock.DetectCalls() != 1 {
		t.Errorf("Expected exactly 1 detection call, got %d", mock.DetectCalls())
	}
	if mock.TranscribeCalls() != 2 {
		t.Errorf("Expected exactly 2 transcription calls, got %d", mock.TranscribeCalls())
	}
}

func TestStandardModeSetsSticky(t *testing.T) {
	mock := &engine.Mock{
		Transcripts: map[string]string{"en": "first utterance"},
		Probs:       []map[string]float64{{"en": 0.9, "ru": 0.05, "zh": 0.05}},
	}
	sel := NewSelector(testLogger(), SelectorConfig{})

	d := sel.Decide(context.Background(), mock, testSamples(), 16000, Standard{})

	if d.Lang != English {
		t.Errorf("Expected language en, got %s", d.Lang)
	}
	if sel.Sticky() != English {
		t.Errorf("Expected sticky language en, got %s", sel.Sticky())
	}
}

func TestStandardModeHysteresisHoldsSticky(t *testing.T) {
	mock := &engine.Mock{
		Transcripts: map[string]string{"en": "kept english"},
		Probs: []map[string]float64{
			{"en": 0.9, "ru": 0.05, "zh": 0.05},
			// Candidate differs from sticky but stays below the 0.50 floor.
			{"ru": 0.45, "en": 0.40, "zh": 0.15},
		},
	}
	sel := NewSelector(testLogger(), SelectorConfig{})

	first := sel.Decide(context.Background(), mock, testSamples(), 16000, Standard{})
	if first.Lang != English {
		t.Fatalf("Expected first decision en, got %s", first.Lang)
	}

	second := sel.Decide(context.Background(), mock, testSamples(), 16000, Standard{})
	if second.Lang != English {
		t.Errorf("Expected hysteresis to hold en, got %s", second.Lang)
	}
	// The low-confidence candidate resolves to sticky, so no confirmation
	// pass runs.
	if mock.DetectCalls() != 2 {
		t.Errorf("Expected 2 detection calls, got %d", mock.DetectCalls())
	}
}

func TestStandardModeConfirmationPassOnSwitch(t *testing.T) {
	mock := &engine.Mock{
		Transcripts: map[string]string{"ru": "теперь русский", "en": "english"},
		Probs: []map[string]float64{
			{"en": 0.9, "ru": 0.05, "zh": 0.05},
			{"ru": 0.8, "en": 0.15, "zh": 0.05},
			{"ru": 0.8, "en": 0.15, "zh": 0.05},
		},
	}
	sel := NewSelector(testLogger(), SelectorConfig{})

	sel.Decide(context.Background(), mock, testSamples(), 16000, Standard{})
	d := sel.Decide(context.Background(), mock, testSamples(), 16000, Standard{})

	if d.Lang != Russian {
		t.Errorf("Expected confirmed switch to ru, got %s", d.Lang)
	}
	if sel.Sticky() != Russian {
		t.Errorf("Expected sticky updated to ru, got %s", sel.Sticky())
	}
	// First utterance: one detection. Second: detection + confirmation.
	if mock.DetectCalls() != 3 {
		t.Errorf("Expected 3 detection calls, got %d", mock.DetectCalls())
	}

	stats := sel.Stats()
	if stats.LanguageSwitches != 1 {
		t.Errorf("Expected 1 language switch, got %d", stats.LanguageSwitches)
	}
}

func TestStandardModeEmptyProbsFallsBack(t *testing.T) {
	mock := &engine.Mock{
		Transcripts: map[string]string{"en": "default english"},
		Probs:       []map[string]float64{{"ja": 0.9, "de": 0.1}},
	}
	sel := NewSelector(testLogger(), SelectorConfig{})

	d := sel.Decide(context.Background(), mock, testSamples(), 16000, Standard{})
	if d.Lang != English {
		t.Errorf("Expected default en when no supported language detected, got %s", d.Lang)
	}
}

func TestStandardModeEmptyProbsPrefersSticky(t *testing.T) {
	mock := &engine.Mock{
		Transcripts: map[string]string{"zh": "中文"},
		Probs: []map[string]float64{
			{"zh": 0.95},
			{},
		},
	}
	sel := NewSelector(testLogger(), SelectorConfig{})

	sel.Decide(context.Background(), mock, testSamples(), 16000, Standard{})
	d := sel.Decide(context.Background(), mock, testSamples(), 16000, Standard{})

	if d.Lang != Chinese {
		t.Errorf("Expected sticky zh on empty probability map, got %s", d.Lang)
	}
}

func TestEngineErrorProducesEmptyTextDecision(t *testing.T) {
	engineErr := errors.New("model exploded")
	mock := &engine.Mock{TranscribeErr: engineErr}
	sel := NewSelector(testLogger(), SelectorConfig{})

	d := sel.Decide(context.Background(), mock, testSamples(), 16000, Exclusive{Lang: Russian})

	if d.Text != "" {
		t.Errorf("Expected empty text on engine error, got %q", d.Text)
	}
	if !errors.Is(d.EngineErr, engineErr) {
		t.Errorf("Expected engine error to be reported, got %v", d.EngineErr)
	}
}

func TestResetSticky(t *testing.T) {
	mock := &engine.Mock{
		Transcripts: map[string]string{"en": "text"},
		Probs:       []map[string]float64{{"en": 0.9}},
	}
	sel := NewSelector(testLogger(), SelectorConfig{})

	sel.Decide(context.Background(), mock, testSamples(), 16000, Standard{})
	if sel.Sticky() == "" {
		t.Fatal("Expected sticky to be set")
	}

	sel.ResetSticky()
	if sel.Sticky() != "" {
		t.Errorf("Expected sticky cleared, got %s", sel.Sticky())
	}
}

func TestInvalidChosenLanguageDefaults(t *testing.T) {
	mock := &engine.Mock{
		Transcripts: map[string]string{"ru": "русский по умолчанию"},
	}
	sel := NewSelector(testLogger(), SelectorConfig{})

	d := sel.Decide(context.Background(), mock, testSamples(), 16000, Exclusive{})
	if d.Lang != Russian {
		t.Errorf("Expected default ru for zero-value chosen language, got %s", d.Lang)
	}
}
