package audio

// Resample converts samples from one rate to another using nearest-neighbor
// selection. Only used on the out-of-band detection path; capture always
// runs at the pipeline rate.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(toRate) / float64(fromRate)
	n := int(float64(len(samples)) * ratio)
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		src := int(float64(i) / ratio)
		if src >= len(samples) {
			src = len(samples) - 1
		}
		out[i] = samples[src]
	}

	return out
}
