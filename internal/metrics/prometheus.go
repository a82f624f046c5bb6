package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the recognizer pipeline.
type Metrics struct {
	// Capture metrics
	FramesCaptured prometheus.Counter
	FramesDropped  prometheus.Counter
	QueueDepth     prometheus.Gauge

	// Segmentation metrics
	UtterancesEmitted   prometheus.Counter
	UtterancesDiscarded prometheus.Counter
	UtteranceDuration   prometheus.Histogram

	// Language decision metrics
	DetectionCalls   prometheus.Counter
	LanguageSwitches prometheus.Counter
	DecisionsByLang  *prometheus.CounterVec

	// Transcription metrics
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram
	EmptyTranscripts      prometheus.Counter

	// Lifecycle metrics
	ModelLoads     prometheus.Counter
	ModelLoadFails prometheus.Counter
	EventsDropped  prometheus.Counter
}

// New creates and registers all pipeline metrics on the given registerer.
// Passing nil uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_frames_captured_total",
			Help: "Total number of audio frames delivered by the capture source",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_frames_dropped_total",
			Help: "Total number of frames dropped because the queue was full",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sanyou_frame_queue_depth",
			Help: "Current number of frames waiting in the capture queue",
		}),

		UtterancesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_utterances_emitted_total",
			Help: "Total number of utterances emitted by the segmenter",
		}),
		UtterancesDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_utterances_discarded_total",
			Help: "Total number of buffered segments discarded as noise",
		}),
		UtteranceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sanyou_utterance_duration_seconds",
			Help:    "Duration of emitted utterances",
			Buckets: []float64{0.5, 1, 2, 3, 4, 5, 6, 8},
		}),

		DetectionCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_language_detection_calls_total",
			Help: "Total number of language detection calls to the engine",
		}),
		LanguageSwitches: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_language_switches_total",
			Help: "Total number of sticky language changes in standard mode",
		}),
		DecisionsByLang: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sanyou_language_decisions_total",
			Help: "Language decisions per resolved language",
		}, []string{"language"}),

		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_transcription_requests_total",
			Help: "Total number of transcription calls to the engine",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_transcription_failures_total",
			Help: "Total number of failed transcription calls",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sanyou_transcription_duration_seconds",
			Help:    "Wall time of synchronous transcription calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		EmptyTranscripts: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_empty_transcripts_total",
			Help: "Total number of utterances that produced no text",
		}),

		ModelLoads: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_model_loads_total",
			Help: "Total number of successful model loads",
		}),
		ModelLoadFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_model_load_failures_total",
			Help: "Total number of failed model loads",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "sanyou_events_dropped_total",
			Help: "Total number of pipeline events dropped on a full event channel",
		}),
	}
}
