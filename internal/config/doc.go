// Package config provides configuration loading and validation for the
// speech recognizer. It handles YAML-based configuration with per-section
// validation and sensible defaults for every parameter.
package config
