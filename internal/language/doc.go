// Package language implements the language decision policy for the recognizer.
// It defines the closed set of supported languages, the selection modes
// (standard, priority, exclusive) and the sticky-language hysteresis that keeps
// ambiguous short utterances from flapping between languages.
package language
