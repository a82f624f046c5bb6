package language

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/engine"
)

// SelectorConfig contains the tunables of the decision policy.
type SelectorConfig struct {
	// ConfidenceFloor is the minimum probability a newly detected language
	// needs to displace the sticky language. Defaults to 0.50.
	ConfidenceFloor float64

	// MinTextLength is the trimmed transcript length below which a
	// priority-mode result counts as empty. Defaults to 2.
	MinTextLength int
}

// Decision is the outcome of a language selection for one utterance.
type Decision struct {
	Lang Code
	Text string

	// EngineErr records an engine failure encountered while producing the
	// decision. The decision is still usable: failed calls degrade to an
	// empty transcript rather than aborting the utterance.
	EngineErr error
}

// SelectorStats is a snapshot of selector counters for monitoring.
type SelectorStats struct {
	Sticky           string `json:"sticky_language"`
	DetectCalls      uint64 `json:"detect_calls"`
	TranscribeCalls  uint64 `json:"transcribe_calls"`
	LanguageSwitches uint64 `json:"language_switches"`
}

// Selector decides which language to transcribe each utterance in. It keeps
// the sticky language from the previous standard-mode decision and applies
// hysteresis against low-confidence switches.
type Selector struct {
	logger *slog.Logger
	floor  float64
	minLen int

	mu               sync.Mutex
	sticky           Code
	detectCalls      uint64
	transcribeCalls  uint64
	languageSwitches uint64
}

// NewSelector creates a Selector with defaults applied for zero-value config.
func NewSelector(logger *slog.Logger, cfg SelectorConfig) *Selector {
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = 0.50
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Selector{
		logger: logger,
		floor:  cfg.ConfidenceFloor,
		minLen: cfg.MinTextLength,
	}
}

// Decide resolves the language for one utterance under the given mode and
// returns the transcript. Empty text is a valid outcome meaning the audio
// was likely noise.
func (s *Selector) Decide(ctx context.Context, eng engine.Engine, samples []float32, sampleRate int, mode Mode) Decision {
	switch m := mode.(type) {
	case Exclusive:
		lang := m.Lang
		if !IsSupported(lang) {
			lang = DefaultChosen
		}
		text, err := s.asr(ctx, eng, samples, sampleRate, lang)
		return Decision{Lang: lang, Text: text, EngineErr: err}

	case Priority:
		primary := m.Primary
		if !IsSupported(primary) {
			primary = DefaultChosen
		}
		text, err := s.asr(ctx, eng, samples, sampleRate, primary)
		if len(strings.TrimSpace(text)) >= s.minLen {
			return Decision{Lang: primary, Text: text, EngineErr: err}
		}
		// One bounded fallback: detect among the other languages and retry.
		lang, derr := s.bestLang(ctx, eng, samples, sampleRate, primary, false)
		if derr == nil {
			derr = err
		}
		text, terr := s.asr(ctx, eng, samples, sampleRate, lang)
		if terr == nil {
			terr = derr
		}
		return Decision{Lang: lang, Text: text, EngineErr: terr}

	default: // Standard
		lang, derr := s.bestLang(ctx, eng, samples, sampleRate, "", false)

		s.mu.Lock()
		sticky := s.sticky
		s.mu.Unlock()

		if sticky != "" && lang != sticky {
			// Confirmation pass: a fresh decision without hysteresis.
			confirmed, cerr := s.bestLang(ctx, eng, samples, sampleRate, "", true)
			if cerr == nil {
				lang = confirmed
			} else if derr == nil {
				derr = cerr
			}
		}

		s.setSticky(lang)

		text, terr := s.asr(ctx, eng, samples, sampleRate, lang)
		if terr == nil {
			terr = derr
		}
		return Decision{Lang: lang, Text: text, EngineErr: terr}
	}
}

// bestLang runs language detection restricted to the supported set. exclude
// removes one language from consideration (priority fallback); force skips
// the sticky hysteresis (confirmation pass).
func (s *Selector) bestLang(ctx context.Context, eng engine.Engine, samples []float32, sampleRate int, exclude Code, force bool) (Code, error) {
	s.mu.Lock()
	s.detectCalls++
	sticky := s.sticky
	s.mu.Unlock()

	probs, err := eng.DetectLanguages(ctx, samples, sampleRate)
	if err != nil {
		s.logger.Warn("Language detection failed",
			slog.String("error", err.Error()),
		)
		if sticky != "" {
			return sticky, err
		}
		return DefaultDetected, err
	}

	var best Code
	bestProb := -1.0
	for _, c := range Supported() {
		if c == exclude {
			continue
		}
		p, ok := probs[string(c)]
		if !ok {
			continue
		}
		if p > bestProb {
			best = c
			bestProb = p
		}
	}

	if best == "" {
		if sticky != "" {
			return sticky, nil
		}
		return DefaultDetected, nil
	}

	// Hysteresis: keep the sticky language over a low-confidence newcomer.
	if !force && sticky != "" && best != sticky && bestProb < s.floor {
		return sticky, nil
	}

	return best, nil
}

// asr runs one transcription call, converting engine failures into an empty
// transcript so a single bad call never kills the processing loop.
func (s *Selector) asr(ctx context.Context, eng engine.Engine, samples []float32, sampleRate int, lang Code) (string, error) {
	s.mu.Lock()
	s.transcribeCalls++
	s.mu.Unlock()

	text, err := eng.Transcribe(ctx, samples, sampleRate, string(lang))
	if err != nil {
		s.logger.Warn("Transcription failed",
			slog.String("language", string(lang)),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *Selector) setSticky(lang Code) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sticky != "" && s.sticky != lang {
		s.languageSwitches++
	}
	s.sticky = lang
}

// Sticky returns the current sticky language ("" when unset).
func (s *Selector) Sticky() Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sticky
}

// ResetSticky clears the sticky language; called when segmentation state is
// reset on pause.
func (s *Selector) ResetSticky() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sticky = ""
}

// Stats returns a snapshot of the selector counters.
func (s *Selector) Stats() SelectorStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SelectorStats{
		Sticky:           string(s.sticky),
		DetectCalls:      s.detectCalls,
		TranscribeCalls:  s.transcribeCalls,
		LanguageSwitches: s.languageSwitches,
	}
}
