package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// DefaultDevice selects the host's default input device.
const DefaultDevice = -1

// Device describes one capture-capable input device.
type Device struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
}

// ListInputDevices enumerates devices with at least one input channel.
func ListInputDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	out := make([]Device, 0, len(devices))
	for i, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{
			Index:             i,
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
		})
	}

	return out, nil
}
