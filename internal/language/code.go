package language

import (
	"fmt"
	"strings"
)

// Code is a two-letter language code from the supported set.
type Code string

const (
	Russian Code = "ru"
	English Code = "en"
	Chinese Code = "zh"
)

// DefaultChosen is used when a priority/exclusive mode is configured without
// a valid chosen language.
const DefaultChosen = Russian

// DefaultDetected is the fallback when language detection yields nothing
// usable and no sticky language is set.
const DefaultDetected = English

// Supported returns the closed set of languages the recognizer works with.
func Supported() []Code {
	return []Code{Russian, English, Chinese}
}

// IsSupported reports whether c belongs to the supported set.
func IsSupported(c Code) bool {
	switch c {
	case Russian, English, Chinese:
		return true
	}
	return false
}

// Parse converts a raw string into a supported Code.
func Parse(s string) (Code, error) {
	c := Code(strings.ToLower(strings.TrimSpace(s)))
	if !IsSupported(c) {
		return "", fmt.Errorf("unsupported language %q, must be one of [ru, en, zh]", s)
	}
	return c, nil
}

// Upper returns the code in the form used in emitted transcript lines,
// e.g. "RU" for Russian.
func (c Code) Upper() string {
	return strings.ToUpper(string(c))
}
