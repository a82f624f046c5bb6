package language

import "fmt"

// Mode is the closed set of language selection modes. Exactly three
// implementations exist: Standard, Priority and Exclusive. Each variant
// carries only the configuration it needs.
type Mode interface {
	// Name returns the configuration name of the mode.
	Name() string

	isMode()
}

// Standard picks the language by detection on every utterance, with
// sticky-language hysteresis across utterances.
type Standard struct{}

// Priority transcribes in the primary language first and falls back to
// detection (excluding the primary) only when the result looks empty.
type Priority struct {
	Primary Code
}

// Exclusive always transcribes in the configured language and never calls
// language detection.
type Exclusive struct {
	Lang Code
}

func (Standard) Name() string  { return "standard" }
func (Priority) Name() string  { return "priority" }
func (Exclusive) Name() string { return "exclusive" }

func (Standard) isMode()  {}
func (Priority) isMode()  {}
func (Exclusive) isMode() {}

// ParseMode builds a Mode from its configuration name and the configured
// chosen language. The chosen language is ignored in standard mode.
func ParseMode(name string, chosen Code) (Mode, error) {
	switch name {
	case "standard":
		return Standard{}, nil
	case "priority":
		return Priority{Primary: chosen}, nil
	case "exclusive":
		return Exclusive{Lang: chosen}, nil
	default:
		return nil, fmt.Errorf("unknown language mode %q, must be one of [standard, priority, exclusive]", name)
	}
}
