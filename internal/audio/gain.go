package audio

import "math"

// ApplyGain scales samples by gainDB (amplitude factor 10^(dB/20)) in place,
// clipping to [-1, 1]. A zero gain leaves the samples untouched.
func ApplyGain(samples []float32, gainDB float64) {
	if gainDB == 0 {
		return
	}

	g := float32(math.Pow(10, gainDB/20))
	for i, v := range samples {
		v *= g
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		samples[i] = v
	}
}

// Smooth applies a short moving-average filter, used as the optional noise
// reduction step before transcription. The window must be odd; even values
// are rounded up.
func Smooth(samples []float32, window int) []float32 {
	if window < 3 || len(samples) < window {
		return samples
	}
	if window%2 == 0 {
		window++
	}

	half := window / 2
	out := make([]float32, len(samples))
	for i := range samples {
		lo, hi := i-half, i+half
		if lo < 0 {
			lo = 0
		}
		if hi >= len(samples) {
			hi = len(samples) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += float64(samples[j])
		}
		out[i] = float32(sum / float64(hi-lo+1))
	}

	return out
}
