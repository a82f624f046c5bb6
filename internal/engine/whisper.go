package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	whispercpp "github.com/ggerganov/whisper.cpp/bindings/go"
	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperSampleRate is the only sample rate whisper.cpp accepts.
const WhisperSampleRate = 16000

// minSamples pads very short utterances up to one second of audio; the
// encoder is unreliable below that.
const minSamples = WhisperSampleRate

// Whisper is an Engine backed by a local whisper.cpp model. Calls are
// serialized on an internal mutex: the model is not reentrant.
type Whisper struct {
	mu        sync.Mutex
	modelPath string
	threads   uint
	model     whisper.Model

	// Separate low-level context, created lazily, used only for the
	// language auto-detect pass (the high-level bindings do not expose
	// per-language probabilities).
	detectCtx *whispercpp.Context
}

// NewWhisper loads a whisper.cpp model from the given file.
func NewWhisper(modelPath string, threads uint) (*Whisper, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file %s: %w", modelPath, err)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model %s: %w", modelPath, err)
	}

	return &Whisper{
		modelPath: modelPath,
		threads:   threads,
		model:     model,
	}, nil
}

// NewWhisperLoader returns a Loader resolving model names against modelsDir
// using the conventional ggml file naming (ggml-small.bin etc).
func NewWhisperLoader(modelsDir string, threads uint) Loader {
	return func(modelName string) (Engine, error) {
		path := filepath.Join(modelsDir, fmt.Sprintf("ggml-%s.bin", modelName))
		return NewWhisper(path, threads)
	}
}

// Transcribe runs the model over the samples in the given language.
func (w *Whisper) Transcribe(ctx context.Context, samples []float32, sampleRate int, lang string) (string, error) {
	if sampleRate != WhisperSampleRate {
		return "", fmt.Errorf("whisper requires %d Hz audio, got %d", WhisperSampleRate, sampleRate)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return "", fmt.Errorf("whisper model is closed")
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create whisper context: %w", err)
	}

	wctx.SetTranslate(false)
	if w.threads > 0 {
		wctx.SetThreads(w.threads)
	}
	if lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			return "", fmt.Errorf("failed to set language %q: %w", lang, err)
		}
	}

	if err := wctx.Process(pad(samples), nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper processing failed: %w", err)
	}

	var text strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read segment: %w", err)
		}
		text.WriteString(segment.Text)
	}

	return strings.TrimSpace(text.String()), nil
}

// DetectLanguages runs the auto-detect pass and returns the full
// language -> probability map reported by the model.
func (w *Whisper) DetectLanguages(ctx context.Context, samples []float32, sampleRate int) (map[string]float64, error) {
	if sampleRate != WhisperSampleRate {
		return nil, fmt.Errorf("whisper requires %d Hz audio, got %d", WhisperSampleRate, sampleRate)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return nil, fmt.Errorf("whisper model is closed")
	}

	if w.detectCtx == nil {
		w.detectCtx = whispercpp.Whisper_init(w.modelPath)
		if w.detectCtx == nil {
			return nil, fmt.Errorf("failed to initialize detection context for %s", w.modelPath)
		}
	}

	threads := int(w.threads)
	if threads <= 0 {
		threads = 1
	}

	if err := w.detectCtx.Whisper_pcm_to_mel(pad(samples), threads); err != nil {
		return nil, fmt.Errorf("mel conversion failed: %w", err)
	}

	probs, err := w.detectCtx.Whisper_lang_auto_detect(0, threads)
	if err != nil {
		return nil, fmt.Errorf("language detection failed: %w", err)
	}

	result := make(map[string]float64, len(probs))
	for id, p := range probs {
		result[whispercpp.Whisper_lang_str(id)] = float64(p)
	}

	return result, nil
}

// Close releases the model and the detection context.
func (w *Whisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.detectCtx != nil {
		w.detectCtx.Whisper_free()
		w.detectCtx = nil
	}
	if w.model != nil {
		err := w.model.Close()
		w.model = nil
		return err
	}
	return nil
}

// pad extends short audio with trailing silence up to minSamples.
func pad(samples []float32) []float32 {
	if len(samples) >= minSamples {
		return samples
	}
	padded := make([]float32, minSamples)
	copy(padded, samples)
	return padded
}
