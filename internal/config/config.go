package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FunguyOFdeath/Sanyou-AI-0-2/internal/language"
)

// Config represents the complete recognizer configuration
type Config struct {
	Audio      AudioConfig      `yaml:"audio"`
	VAD        VADConfig        `yaml:"vad"`
	Language   LanguageConfig   `yaml:"language"`
	Model      ModelConfig      `yaml:"model"`
	Transcript TranscriptConfig `yaml:"transcript"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AudioConfig contains microphone capture parameters
type AudioConfig struct {
	DeviceIndex    int     `yaml:"device_index"` // -1 selects the system default
	SampleRate     int     `yaml:"sample_rate"`
	FrameMs        int     `yaml:"frame_ms"`
	QueueSize      int     `yaml:"queue_size"`
	GainDB         float64 `yaml:"gain_db"`
	NoiseReduction bool    `yaml:"noise_reduction"`
}

// VADConfig contains energy-based segmentation parameters
type VADConfig struct {
	EnergyThreshold float64 `yaml:"energy_threshold"`
	MinUtteranceMs  int     `yaml:"min_utterance_ms"`
	MaxUtteranceMs  int     `yaml:"max_utterance_ms"`
	SilenceToEndMs  int     `yaml:"silence_to_end_ms"`
}

// LanguageConfig contains language decision parameters
type LanguageConfig struct {
	Mode            string  `yaml:"mode"`
	Chosen          string  `yaml:"chosen"`
	ConfidenceFloor float64 `yaml:"confidence_floor"`
	MinTextLength   int     `yaml:"min_text_length"`
}

// ModelConfig contains speech model selection
type ModelConfig struct {
	Name      string `yaml:"name"`
	ModelsDir string `yaml:"models_dir"`
	Threads   int    `yaml:"threads"`
}

// TranscriptConfig contains transcript log output settings
type TranscriptConfig struct {
	Dir string `yaml:"dir"`
}

// HTTPConfig contains the observability HTTP server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			DeviceIndex: -1,
			SampleRate:  16000,
			FrameMs:     200,
			QueueSize:   12,
			GainDB:      0,
		},
		VAD: VADConfig{
			EnergyThreshold: 0.015,
			MinUtteranceMs:  900,
			MaxUtteranceMs:  6000,
			SilenceToEndMs:  450,
		},
		Language: LanguageConfig{
			Mode:            "standard",
			Chosen:          "ru",
			ConfidenceFloor: 0.50,
			MinTextLength:   2,
		},
		Model: ModelConfig{
			Name:      "small",
			ModelsDir: "./models",
			Threads:   4,
		},
		Transcript: TranscriptConfig{
			Dir: "./logs",
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Language.Validate(); err != nil {
		return fmt.Errorf("language config: %w", err)
	}

	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}

	if err := c.Transcript.Validate(); err != nil {
		return fmt.Errorf("transcript config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.DeviceIndex < -1 {
		return fmt.Errorf("device_index must be -1 (default device) or a device number, got %d", a.DeviceIndex)
	}

	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz for the speech model, got %d", a.SampleRate)
	}

	if a.FrameMs < 10 || a.FrameMs > 1000 {
		return fmt.Errorf("frame_ms must be between 10 and 1000, got %d", a.FrameMs)
	}

	if a.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", a.QueueSize)
	}

	if a.GainDB < -20 || a.GainDB > 20 {
		return fmt.Errorf("gain_db must be between -20 and 20, got %f", a.GainDB)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.EnergyThreshold <= 0 || v.EnergyThreshold >= 1 {
		return fmt.Errorf("energy_threshold must be between 0 and 1 (exclusive), got %f", v.EnergyThreshold)
	}

	if v.MinUtteranceMs <= 0 {
		return fmt.Errorf("min_utterance_ms must be positive, got %d", v.MinUtteranceMs)
	}

	if v.MaxUtteranceMs <= v.MinUtteranceMs {
		return fmt.Errorf("max_utterance_ms (%d) must be greater than min_utterance_ms (%d)",
			v.MaxUtteranceMs, v.MinUtteranceMs)
	}

	if v.SilenceToEndMs <= 0 {
		return fmt.Errorf("silence_to_end_ms must be positive, got %d", v.SilenceToEndMs)
	}

	return nil
}

// Validate validates language configuration
func (l *LanguageConfig) Validate() error {
	validModes := map[string]bool{"standard": true, "priority": true, "exclusive": true}
	if !validModes[l.Mode] {
		return fmt.Errorf("mode must be one of [standard, priority, exclusive], got '%s'", l.Mode)
	}

	if !language.IsSupported(language.Code(l.Chosen)) {
		return fmt.Errorf("chosen must be one of [ru, en, zh], got '%s'", l.Chosen)
	}

	if l.ConfidenceFloor < 0 || l.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence_floor must be between 0 and 1, got %f", l.ConfidenceFloor)
	}

	if l.MinTextLength < 1 {
		return fmt.Errorf("min_text_length must be at least 1, got %d", l.MinTextLength)
	}

	return nil
}

// Validate validates model configuration
func (m *ModelConfig) Validate() error {
	validNames := map[string]bool{"tiny": true, "small": true, "medium": true, "large": true}
	if !validNames[m.Name] {
		return fmt.Errorf("name must be one of [tiny, small, medium, large], got '%s'", m.Name)
	}

	if m.ModelsDir == "" {
		return fmt.Errorf("models_dir cannot be empty")
	}

	if m.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", m.Threads)
	}

	return nil
}

// Validate validates transcript configuration
func (t *TranscriptConfig) Validate() error {
	if t.Dir == "" {
		return fmt.Errorf("dir cannot be empty")
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetFrameDuration returns the capture frame length as a time.Duration
func (a *AudioConfig) GetFrameDuration() time.Duration {
	return time.Duration(a.FrameMs) * time.Millisecond
}

// FrameSize returns the capture frame length in samples
func (a *AudioConfig) FrameSize() int {
	return a.SampleRate * a.FrameMs / 1000
}

// GetMinUtteranceDuration returns the minimum utterance length as a time.Duration
func (v *VADConfig) GetMinUtteranceDuration() time.Duration {
	return time.Duration(v.MinUtteranceMs) * time.Millisecond
}

// GetMaxUtteranceDuration returns the maximum utterance length as a time.Duration
func (v *VADConfig) GetMaxUtteranceDuration() time.Duration {
	return time.Duration(v.MaxUtteranceMs) * time.Millisecond
}

// GetSilenceToEndDuration returns the end-of-utterance silence run as a time.Duration
func (v *VADConfig) GetSilenceToEndDuration() time.Duration {
	return time.Duration(v.SilenceToEndMs) * time.Millisecond
}

// ParsedMode builds the language.Mode value described by this section.
func (l *LanguageConfig) ParsedMode() (language.Mode, error) {
	return language.ParseMode(l.Mode, language.Code(l.Chosen))
}
