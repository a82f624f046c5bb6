package audio

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// SourceConfig contains capture stream parameters.
type SourceConfig struct {
	DeviceIndex int // DefaultDevice (-1) selects the host default
	SampleRate  int
	FrameSize   int // samples per delivered block
	GainDB      float64
}

// Source owns the portaudio input stream and the capture goroutine. Each
// read block is gain-adjusted and pushed onto the frame queue without
// blocking; the hardware path is never stalled by a slow consumer.
type Source struct {
	cfg    SourceConfig
	queue  *FrameQueue
	logger *slog.Logger
	onErr  func(error)

	gainBits atomic.Uint64

	mu      sync.Mutex
	stream  *portaudio.Stream
	buffer  []float32
	running atomic.Bool
	done    chan struct{}
}

// NewSource creates a Source delivering frames to queue. onErr is invoked
// once from the capture goroutine on a fatal stream error; the source does
// not retry, the controller decides what happens next.
func NewSource(cfg SourceConfig, queue *FrameQueue, logger *slog.Logger, onErr func(error)) (*Source, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.FrameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", cfg.FrameSize)
	}
	if queue == nil {
		return nil, fmt.Errorf("frame queue cannot be nil")
	}
	if onErr == nil {
		onErr = func(error) {}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Source{
		cfg:    cfg,
		queue:  queue,
		logger: logger,
		onErr:  onErr,
		buffer: make([]float32, cfg.FrameSize),
	}
	s.SetGain(cfg.GainDB)

	return s, nil
}

// SetGain updates the gain applied to captured frames; safe while running.
func (s *Source) SetGain(gainDB float64) {
	s.gainBits.Store(math.Float64bits(gainDB))
}

func (s *Source) gain() float64 {
	return math.Float64frombits(s.gainBits.Load())
}

// Start opens the capture stream and spawns the capture goroutine.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream, err := s.open()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	s.stream = stream
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.captureLoop(stream, s.done)

	s.logger.Info("Capture stream started",
		slog.Int("device_index", s.cfg.DeviceIndex),
		slog.Int("sample_rate", s.cfg.SampleRate),
		slog.Int("frame_size", s.cfg.FrameSize),
		slog.Float64("gain_db", s.gain()),
	)

	return nil
}

// open builds the portaudio stream for the configured device.
func (s *Source) open() (*portaudio.Stream, error) {
	if s.cfg.DeviceIndex == DefaultDevice {
		stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.cfg.SampleRate), s.cfg.FrameSize, s.buffer)
		if err != nil {
			return nil, fmt.Errorf("failed to open default capture stream: %w", err)
		}
		return stream, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if s.cfg.DeviceIndex < 0 || s.cfg.DeviceIndex >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range (%d devices)", s.cfg.DeviceIndex, len(devices))
	}

	dev := devices[s.cfg.DeviceIndex]
	if dev.MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) has no input channels", s.cfg.DeviceIndex, dev.Name)
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(s.cfg.SampleRate)
	params.FramesPerBuffer = s.cfg.FrameSize

	stream, err := portaudio.OpenStream(params, s.buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture stream on device %d (%s): %w", s.cfg.DeviceIndex, dev.Name, err)
	}
	return stream, nil
}

// captureLoop reads fixed-size blocks until stopped. Read blocks for at most
// one frame duration, so Stop is observed promptly.
func (s *Source) captureLoop(stream *portaudio.Stream, done chan struct{}) {
	defer close(done)

	for s.running.Load() {
		if err := stream.Read(); err != nil {
			if !s.running.Load() {
				return
			}
			s.logger.Error("Capture stream read failed",
				slog.String("error", err.Error()),
			)
			s.onErr(fmt.Errorf("audio stream: %w", err))
			return
		}

		if !s.running.Load() {
			return
		}

		frame := make([]float32, len(s.buffer))
		copy(frame, s.buffer)
		ApplyGain(frame, s.gain())

		// Drop-on-full: the queue counts what it sheds.
		s.queue.TryPush(frame)
	}
}

// Stop halts capture, waits briefly for the capture goroutine, and releases
// the stream. Safe to call more than once.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return
	}
	s.running.Store(false)

	// The read loop checks the flag once per frame; one frame duration
	// plus margin bounds the wait.
	frameDur := time.Duration(s.cfg.FrameSize) * time.Second / time.Duration(s.cfg.SampleRate)
	select {
	case <-s.done:
	case <-time.After(frameDur + 250*time.Millisecond):
		s.logger.Warn("Capture goroutine did not exit in time, abandoning")
	}

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
		s.stream = nil
	}
	portaudio.Terminate()

	s.logger.Info("Capture stream stopped",
		slog.Uint64("frames_dropped", s.queue.Dropped()),
	)
}
