// Package audio handles microphone capture and PCM utilities. It implements
// the portaudio frame source with gain adjustment, the bounded drop-on-full
// frame queue between capture and processing, input device enumeration, and
// WAV load/save helpers for the diagnostic paths.
package audio
