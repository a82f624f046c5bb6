package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/audio"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/engine"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/language"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/metrics"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/translog"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/vad"
)

const (
	defaultPopTimeout  = 300 * time.Millisecond
	defaultEventBuffer = 32
	defaultSmoothSpan  = 5
	workerJoinTimeout  = 2 * time.Second

	// Model name used when DetectLanguageFromAudio has no resident engine.
	detectModelName = "tiny"
)

// CaptureSource is the capture side of the pipeline as the controller sees
// it. audio.Source is the production implementation; tests substitute one
// that feeds the queue directly.
type CaptureSource interface {
	Start() error
	Stop()
	SetGain(gainDB float64)
}

// SourceFactory builds a capture source delivering frames to queue. onErr
// is called once on a fatal stream error.
type SourceFactory func(deviceIndex int, gainDB float64, queue *audio.FrameQueue, onErr func(error)) (CaptureSource, error)

// Settings is the hot-applicable subset of the configuration.
type Settings struct {
	DeviceIndex    int
	GainDB         float64
	NoiseReduction bool
	Mode           language.Mode
	ModelName      string
}

// Config contains everything the controller needs to run.
type Config struct {
	SampleRate int
	FrameSize  int
	QueueSize  int
	PopTimeout time.Duration

	DeviceIndex    int
	GainDB         float64
	NoiseReduction bool

	VAD      vad.Config
	Selector language.SelectorConfig
	Mode     language.Mode

	ModelName string
	Loader    engine.Loader

	Source      SourceFactory
	Metrics     *metrics.Metrics
	Transcript  *translog.File
	EventBuffer int
}

// StatusInfo is a snapshot of the controller for monitoring and APIs.
type StatusInfo struct {
	State         State                  `json:"state"`
	Uptime        time.Duration          `json:"uptime"`
	QueueDepth    int                    `json:"queue_depth"`
	QueueCapacity int                    `json:"queue_capacity"`
	FramesDropped uint64                 `json:"frames_dropped"`
	EventsDropped uint64                 `json:"events_dropped"`
	ModelName     string                 `json:"model_name"`
	ModelResident bool                   `json:"model_resident"`
	Mode          string                 `json:"mode"`
	Segmenter     vad.SegmenterStats     `json:"segmenter"`
	Selector      language.SelectorStats `json:"selector"`
}

// loadResult is delivered exactly once by the loader goroutine.
type loadResult struct {
	eng engine.Engine
	err error
}

// Controller is the single authority over the recognizer lifecycle. One
// capture goroutine, one processing goroutine, at most one transient model
// loader at a time.
type Controller struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	transcript *translog.File

	queue  *audio.FrameQueue
	seg    *vad.Segmenter
	sel    *language.Selector
	loader engine.Loader

	sampleRate int
	popTimeout time.Duration
	newSource  SourceFactory

	events        chan Event
	eventsDropped atomic.Uint64

	running sync.WaitGroup

	mu             sync.Mutex
	state          State
	eng            engine.Engine
	modelName      string
	mode           language.Mode
	noiseReduction bool
	deviceIndex    int
	gainDB         float64
	source         CaptureSource
	loading        bool
	loadNoticeSent bool
	startedAt      time.Time
	lastDropped    uint64
	lastDiscarded  uint64
	cancel         context.CancelFunc

	runFlag   atomic.Bool
	pauseFlag atomic.Bool
}

// NewController validates the config and builds an idle controller.
func NewController(logger *slog.Logger, cfg Config) (*Controller, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("engine loader cannot be nil")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.FrameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", cfg.FrameSize)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 12
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = defaultPopTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if cfg.Mode == nil {
		cfg.Mode = language.Standard{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if cfg.Source == nil {
		cfg.Source = newAudioSource(cfg.SampleRate, cfg.FrameSize, logger)
	}

	seg, err := vad.NewSegmenter(cfg.VAD)
	if err != nil {
		return nil, fmt.Errorf("failed to create segmenter: %w", err)
	}

	return &Controller{
		logger:         logger,
		metrics:        cfg.Metrics,
		transcript:     cfg.Transcript,
		queue:          audio.NewFrameQueue(cfg.QueueSize),
		seg:            seg,
		sel:            language.NewSelector(logger, cfg.Selector),
		loader:         cfg.Loader,
		sampleRate:     cfg.SampleRate,
		popTimeout:     cfg.PopTimeout,
		newSource:      cfg.Source,
		events:         make(chan Event, cfg.EventBuffer),
		state:          StateIdle,
		modelName:      cfg.ModelName,
		mode:           cfg.Mode,
		noiseReduction: cfg.NoiseReduction,
		deviceIndex:    cfg.DeviceIndex,
		gainDB:         cfg.GainDB,
	}, nil
}

// newAudioSource adapts audio.NewSource to the factory signature.
func newAudioSource(sampleRate, frameSize int, logger *slog.Logger) SourceFactory {
	return func(deviceIndex int, gainDB float64, queue *audio.FrameQueue, onErr func(error)) (CaptureSource, error) {
		return audio.NewSource(audio.SourceConfig{
			DeviceIndex: deviceIndex,
			SampleRate:  sampleRate,
			FrameSize:   frameSize,
			GainDB:      gainDB,
		}, queue, logger, onErr)
	}
}

// Events returns the event stream. Events are dropped (and counted) when
// the consumer falls behind; consuming promptly is the caller's job.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LogPath returns the transcript log path, or "" when no log is attached.
func (c *Controller) LogPath() string {
	if c.transcript == nil {
		return ""
	}
	return c.transcript.Path()
}

// Start opens capture and spawns the workers. A no-op when already
// running. The first Start also kicks off the background model load; until
// it resolves, utterances are discarded and the state reads loading.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runFlag.Load() {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	source, err := c.newSource(c.deviceIndex, c.gainDB, c.queue, c.onStreamError)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create capture source: %w", err)
	}
	if err := source.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start capture: %w", err)
	}

	c.source = source
	c.cancel = cancel
	c.startedAt = time.Now()
	c.runFlag.Store(true)
	c.pauseFlag.Store(false)

	c.running.Add(1)
	go c.processLoop(ctx)

	if c.eng == nil && !c.loading {
		c.loading = true
		c.loadNoticeSent = false
		c.spawnLoaderLocked()
	}

	if c.eng == nil {
		c.setStateLocked(StateLoading)
	} else {
		c.setStateLocked(StateRunning)
	}

	c.logger.Info("Pipeline started",
		slog.Int("device_index", c.deviceIndex),
		slog.String("model", c.modelName),
		slog.String("mode", c.mode.Name()),
	)

	return nil
}

// Pause keeps capture alive but discards audio. Buffered speech and the
// sticky language never survive a pause.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.runFlag.Load() || c.pauseFlag.Load() {
		return
	}

	c.pauseFlag.Store(true)
	c.seg.Reset()
	c.sel.ResetSticky()
	c.queue.Drain()
	c.setStateLocked(StatePaused)

	c.logger.Info("Pipeline paused")
}

// Resume lifts a pause.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.runFlag.Load() || !c.pauseFlag.Load() {
		return
	}

	c.pauseFlag.Store(false)
	if c.eng == nil {
		c.setStateLocked(StateLoading)
	} else {
		c.setStateLocked(StateRunning)
	}

	c.logger.Info("Pipeline resumed")
}

// Stop halts capture and processing. Workers are joined with a bounded
// timeout; a stuck transcription is abandoned rather than hanging the
// caller.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.runFlag.Load() {
		c.mu.Unlock()
		return
	}
	c.runFlag.Store(false)
	c.pauseFlag.Store(false)

	source := c.source
	c.source = nil
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if source != nil {
		source.Stop()
	}

	if !waitTimeout(&c.running, workerJoinTimeout) {
		c.logger.Warn("Processing worker did not exit in time, abandoning")
	}

	c.queue.Drain()
	c.seg.Reset()

	c.mu.Lock()
	c.setStateLocked(StateStopped)
	c.mu.Unlock()

	c.logger.Info("Pipeline stopped",
		slog.Uint64("frames_dropped", c.queue.Dropped()),
	)
}

// ApplySettings updates the hot-applicable settings. A model name change
// releases the resident engine; the reload happens on the next Start, not
// here. A device change restarts the capture stream when running.
func (c *Controller) ApplySettings(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.noiseReduction = s.NoiseReduction
	if s.Mode != nil {
		c.mode = s.Mode
	}

	c.gainDB = s.GainDB
	if c.source != nil {
		c.source.SetGain(s.GainDB)
	}

	if s.ModelName != "" && s.ModelName != c.modelName {
		c.logger.Info("Model changed, releasing resident engine",
			slog.String("old", c.modelName),
			slog.String("new", s.ModelName),
		)
		if c.eng != nil {
			if err := c.eng.Close(); err != nil {
				c.logger.Warn("Error closing engine", slog.String("error", err.Error()))
			}
			c.eng = nil
		}
		c.modelName = s.ModelName
	}

	if s.DeviceIndex != c.deviceIndex {
		c.deviceIndex = s.DeviceIndex
		if c.source != nil {
			c.restartSourceLocked()
		}
	}
}

// restartSourceLocked swaps the capture stream to the current device.
func (c *Controller) restartSourceLocked() {
	c.source.Stop()
	c.source = nil

	source, err := c.newSource(c.deviceIndex, c.gainDB, c.queue, c.onStreamError)
	if err == nil {
		err = source.Start()
	}
	if err != nil {
		c.logger.Error("Failed to switch capture device",
			slog.Int("device_index", c.deviceIndex),
			slog.String("error", err.Error()),
		)
		c.emit(Event{Kind: EventInfo, Message: fmt.Sprintf("Failed to switch capture device: %v", err)})
		return
	}
	c.source = source

	c.logger.Info("Capture device switched",
		slog.Int("device_index", c.deviceIndex),
	)
}

// DetectLanguageFromAudio runs one out-of-band detection over arbitrary
// audio, resampling to the pipeline rate if needed. When no engine is
// resident a throwaway minimal model is loaded for the call.
func (c *Controller) DetectLanguageFromAudio(ctx context.Context, samples []float32, sampleRate int) (language.Code, float64, error) {
	if sampleRate != c.sampleRate {
		samples = audio.Resample(samples, sampleRate, c.sampleRate)
	}

	c.mu.Lock()
	eng := c.eng
	smooth := c.noiseReduction
	c.mu.Unlock()

	if smooth {
		samples = audio.Smooth(samples, defaultSmoothSpan)
	}

	if eng == nil {
		loaded, err := c.loader(detectModelName)
		if err != nil {
			return "", 0, fmt.Errorf("failed to load detection model: %w", err)
		}
		defer loaded.Close()
		eng = loaded
	}

	c.metrics.DetectionCalls.Inc()
	probs, err := eng.DetectLanguages(ctx, samples, c.sampleRate)
	if err != nil {
		return "", 0, fmt.Errorf("language detection failed: %w", err)
	}

	best := language.DefaultDetected
	bestProb := 0.0
	found := false
	for _, code := range language.Supported() {
		if p, ok := probs[string(code)]; ok && (!found || p > bestProb) {
			best = code
			bestProb = p
			found = true
		}
	}
	if !found {
		return language.DefaultDetected, 0, nil
	}
	return best, bestProb, nil
}

// GetStatus returns a snapshot of the controller for monitoring.
func (c *Controller) GetStatus() StatusInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	var uptime time.Duration
	if c.runFlag.Load() {
		uptime = time.Since(c.startedAt)
	}

	return StatusInfo{
		State:         c.state,
		Uptime:        uptime,
		QueueDepth:    c.queue.Len(),
		QueueCapacity: c.queue.Cap(),
		FramesDropped: c.queue.Dropped(),
		EventsDropped: c.eventsDropped.Load(),
		ModelName:     c.modelName,
		ModelResident: c.eng != nil,
		Mode:          c.mode.Name(),
		Segmenter:     c.seg.Stats(),
		Selector:      c.sel.Stats(),
	}
}

// spawnLoaderLocked starts the single-owner model load. The result travels
// over a one-shot channel to a monitor goroutine; no engine field is
// mutated from the loader itself.
func (c *Controller) spawnLoaderLocked() {
	name := c.modelName
	resultCh := make(chan loadResult, 1)

	go func() {
		eng, err := c.loader(name)
		resultCh <- loadResult{eng: eng, err: err}
	}()

	go c.monitorLoad(name, resultCh)
}

// monitorLoad consumes the one-shot load result and installs the engine.
func (c *Controller) monitorLoad(name string, resultCh <-chan loadResult) {
	res := <-resultCh

	c.mu.Lock()
	defer c.mu.Unlock()

	c.loading = false

	if res.err != nil {
		c.metrics.ModelLoadFails.Inc()
		c.logger.Error("Model load failed",
			slog.String("model", name),
			slog.String("error", res.err.Error()),
		)
		c.emit(Event{Kind: EventInfo, Message: fmt.Sprintf("Model %q failed to load: %v", name, res.err)})
		return
	}

	if name != c.modelName {
		// The model was changed while this load was in flight; the
		// result is stale and the engine goes straight back.
		res.eng.Close()
		c.logger.Info("Discarding stale model load", slog.String("model", name))
		return
	}

	c.eng = res.eng
	c.loadNoticeSent = false
	c.metrics.ModelLoads.Inc()

	if c.runFlag.Load() && !c.pauseFlag.Load() {
		c.setStateLocked(StateRunning)
	}

	c.logger.Info("Model loaded", slog.String("model", name))
	c.emit(Event{Kind: EventInfo, Message: fmt.Sprintf("Model %q loaded", name)})
}

// onStreamError handles a fatal capture error: one notice, then full stop.
func (c *Controller) onStreamError(err error) {
	c.logger.Error("Capture stream failed, stopping pipeline",
		slog.String("error", err.Error()),
	)
	c.emit(Event{Kind: EventInfo, Message: fmt.Sprintf("Audio stream error: %v", err)})
	go c.Stop()
}

// processLoop is the single consumer of the frame queue. Transcriptions
// run synchronously here, so at most one is in flight and results keep
// strict arrival order.
func (c *Controller) processLoop(ctx context.Context) {
	defer c.running.Done()

	for c.runFlag.Load() {
		frame, ok := c.queue.Pop(c.popTimeout)
		c.metrics.QueueDepth.Set(float64(c.queue.Len()))
		c.syncDropCounters()

		if !ok {
			continue
		}
		if c.pauseFlag.Load() {
			continue
		}

		c.metrics.FramesCaptured.Inc()

		utt := c.seg.Feed(frame)
		c.syncDiscardCounters()
		if utt == nil {
			continue
		}

		c.metrics.UtterancesEmitted.Inc()
		c.metrics.UtteranceDuration.Observe(float64(len(utt)) / float64(c.sampleRate))

		c.handleUtterance(ctx, utt)
	}
}

// handleUtterance dispatches one finished utterance to the engine.
func (c *Controller) handleUtterance(ctx context.Context, utt []float32) {
	c.mu.Lock()
	eng := c.eng
	mode := c.mode
	smooth := c.noiseReduction
	notice := !c.loadNoticeSent
	if eng == nil {
		c.loadNoticeSent = true
	}
	c.mu.Unlock()

	if eng == nil {
		if notice {
			c.logger.Info("Utterance discarded, model not resident")
			c.emit(Event{Kind: EventInfo, Message: "Model is still loading, speech is being discarded"})
		}
		return
	}

	if smooth {
		utt = audio.Smooth(utt, defaultSmoothSpan)
	}

	id := uuid.NewString()
	start := time.Now()

	before := c.sel.Stats()
	c.metrics.TranscriptionRequests.Inc()

	dec := c.sel.Decide(ctx, eng, utt, c.sampleRate, mode)
	elapsed := time.Since(start)

	c.metrics.TranscriptionDuration.Observe(elapsed.Seconds())
	c.metrics.DecisionsByLang.WithLabelValues(string(dec.Lang)).Inc()
	if dec.EngineErr != nil {
		c.metrics.TranscriptionFailures.Inc()
	}

	after := c.sel.Stats()
	if after.LanguageSwitches > before.LanguageSwitches {
		c.metrics.LanguageSwitches.Add(float64(after.LanguageSwitches - before.LanguageSwitches))
	}
	if after.DetectCalls > before.DetectCalls {
		c.metrics.DetectionCalls.Add(float64(after.DetectCalls - before.DetectCalls))
	}

	if dec.Text == "" {
		c.metrics.EmptyTranscripts.Inc()
		c.logger.Debug("Utterance produced no text",
			slog.String("utterance_id", id),
			slog.String("language", string(dec.Lang)),
			slog.Duration("duration", elapsed),
		)
		return
	}

	line := fmt.Sprintf("[%s] %s", dec.Lang.Upper(), dec.Text)

	c.logger.Info("Utterance transcribed",
		slog.String("utterance_id", id),
		slog.String("language", string(dec.Lang)),
		slog.Int("samples", len(utt)),
		slog.Duration("duration", elapsed),
	)

	if c.transcript != nil {
		c.transcript.WriteLine(line)
	}

	c.emit(Event{
		Kind:        EventText,
		UtteranceID: id,
		Lang:        dec.Lang,
		Line:        line,
	})
}

// emit publishes an event without blocking; a slow consumer loses events.
func (c *Controller) emit(ev Event) {
	ev.Time = time.Now()
	select {
	case c.events <- ev:
	default:
		c.eventsDropped.Add(1)
		c.metrics.EventsDropped.Inc()
	}
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.emit(Event{Kind: EventStatus, State: s})
}

// syncDropCounters folds the queue's drop total into the counter metric.
func (c *Controller) syncDropCounters() {
	cur := c.queue.Dropped()
	c.mu.Lock()
	prev := c.lastDropped
	c.lastDropped = cur
	c.mu.Unlock()
	if cur > prev {
		c.metrics.FramesDropped.Add(float64(cur - prev))
	}
}

// syncDiscardCounters folds the segmenter's discard total into the metric.
func (c *Controller) syncDiscardCounters() {
	cur := c.seg.Stats().UtterancesDiscarded
	c.mu.Lock()
	prev := c.lastDiscarded
	c.lastDiscarded = cur
	c.mu.Unlock()
	if cur > prev {
		c.metrics.UtterancesDiscarded.Add(float64(cur - prev))
	}
}

// waitTimeout waits for the group up to d; false means it never finished.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
