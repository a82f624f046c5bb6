package engine

import "context"

// Engine converts PCM audio into text and, on request, into a
// language-probability distribution. Implementations are synchronous and a
// single call may take several seconds; the caller decides on concurrency.
type Engine interface {
	// Transcribe converts mono float32 samples into text in the given
	// language. An empty string with a nil error is a valid result and
	// means the audio carried no recognizable speech.
	Transcribe(ctx context.Context, samples []float32, sampleRate int, lang string) (string, error)

	// DetectLanguages returns a language code -> probability map for the
	// audio. Keys are not filtered; callers restrict them to their
	// supported set.
	DetectLanguages(ctx context.Context, samples []float32, sampleRate int) (map[string]float64, error)

	// Close releases the model resources.
	Close() error
}

// Loader creates an Engine for a model name from the configured model set.
// The pipeline owns loading policy (background load on start, reload after a
// model change) and treats the loader as opaque.
type Loader func(modelName string) (Engine, error)
