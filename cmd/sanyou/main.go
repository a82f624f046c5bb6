package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/audio"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/config"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/engine"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/language"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/metrics"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/pipeline"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/server"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/translog"
	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "sanyou-ai"
	serviceVersion    = "0.2.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listDevices := flag.Bool("list-devices", false, "List audio input devices and exit")
	detectFile := flag.String("detect", "", "Detect the language of a WAV file and exit")
	flag.Parse()

	if *listDevices {
		if err := printDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list devices: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	mode, err := cfg.Language.ParsedMode()
	if err != nil {
		logger.Error("Invalid language mode", slog.String("error", err.Error()))
		os.Exit(1)
	}

	loader := engine.NewWhisperLoader(cfg.Model.ModelsDir, uint(cfg.Model.Threads))

	registry := prometheus.NewRegistry()
	appMetrics := metrics.New(registry)

	transcript, err := translog.New(cfg.Transcript.Dir)
	if err != nil {
		logger.Error("Failed to open transcript log", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer transcript.Close()

	ctrl, err := pipeline.NewController(logger, pipeline.Config{
		SampleRate:     cfg.Audio.SampleRate,
		FrameSize:      cfg.Audio.FrameSize(),
		QueueSize:      cfg.Audio.QueueSize,
		DeviceIndex:    cfg.Audio.DeviceIndex,
		GainDB:         cfg.Audio.GainDB,
		NoiseReduction: cfg.Audio.NoiseReduction,
		VAD: vad.Config{
			SampleRate:      cfg.Audio.SampleRate,
			EnergyThreshold: float32(cfg.VAD.EnergyThreshold),
			MinUtterance:    cfg.VAD.GetMinUtteranceDuration(),
			MaxUtterance:    cfg.VAD.GetMaxUtteranceDuration(),
			SilenceToEnd:    cfg.VAD.GetSilenceToEndDuration(),
		},
		Selector: language.SelectorConfig{
			ConfidenceFloor: cfg.Language.ConfidenceFloor,
			MinTextLength:   cfg.Language.MinTextLength,
		},
		Mode:       mode,
		ModelName:  cfg.Model.Name,
		Loader:     loader,
		Metrics:    appMetrics,
		Transcript: transcript,
	})
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *detectFile != "" {
		if err := detectLanguage(ctrl, *detectFile); err != nil {
			fmt.Fprintf(os.Stderr, "Detection failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(server.Config{
			Address: cfg.HTTP.Address,
			Port:    cfg.HTTP.Port,
		}, logger, ctrl, registry)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if err := ctrl.Start(); err != nil {
		logger.Error("Failed to start pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Service started",
		slog.String("mode", mode.Name()),
		slog.String("model", cfg.Model.Name),
		slog.String("transcript_log", ctrl.LogPath()),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	consumeEvents(ctrl, sigChan)

	logger.Info("Starting graceful shutdown...")

	ctrl.Stop()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	status := ctrl.GetStatus()
	logger.Info("Final pipeline statistics",
		slog.Uint64("utterances_emitted", status.Segmenter.UtterancesEmitted),
		slog.Uint64("utterances_discarded", status.Segmenter.UtterancesDiscarded),
		slog.Uint64("frames_dropped", status.FramesDropped),
		slog.Uint64("transcribe_calls", status.Selector.TranscribeCalls),
		slog.Uint64("language_switches", status.Selector.LanguageSwitches),
	)

	logger.Info("Service stopped")
}

// loadConfig reads the file when present and falls back to defaults when the
// default path is absent.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == defaultConfigPath {
		return config.Default(), nil
	}
	return config.Load(path)
}

// consumeEvents prints transcripts and notices until a shutdown signal.
func consumeEvents(ctrl *pipeline.Controller, sigChan <-chan os.Signal) {
	for {
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", slog.String("signal", sig.String()))
			return
		case ev := <-ctrl.Events():
			switch ev.Kind {
			case pipeline.EventText:
				fmt.Println(ev.Line)
			case pipeline.EventInfo:
				fmt.Println("--", ev.Message)
			case pipeline.EventStatus:
				slog.Debug("Pipeline state changed", slog.String("state", string(ev.State)))
			}
		}
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// printDevices lists input devices for the -list-devices flag.
func printDevices() error {
	devices, err := audio.ListInputDevices()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No audio input devices found")
		return nil
	}

	for _, d := range devices {
		fmt.Printf("%3d  %-40s  channels=%d  rate=%.0f\n", d.Index, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return nil
}

// detectLanguage runs one-shot detection over a WAV file for -detect.
func detectLanguage(ctrl *pipeline.Controller, path string) error {
	samples, sampleRate, err := audio.LoadWAV(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	lang, prob, err := ctrl.DetectLanguageFromAudio(context.Background(), samples, sampleRate)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%.2f)\n", lang.Upper(), prob)
	return nil
}
