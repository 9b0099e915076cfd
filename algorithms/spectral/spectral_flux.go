package spectral

// SpectralFlux computes the frame-to-frame positive spectral flux of a
// magnitude spectrogram: the sum of magnitude increases across bins, with
// decreases clipped to zero. Transient (percussive) events show up as sharp
// flux peaks, which makes this the onset-strength signal for tempo analysis.
type SpectralFlux struct{}

// NewSpectralFlux creates a new spectral flux calculator
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{}
}

// Compute calculates positive spectral flux for a spectrogram, restricted to
// bins [0, maxBin). Pass maxBin <= 0 to use all bins. The output has one
// value per frame; the first frame has no predecessor and gets zero.
func (sf *SpectralFlux) Compute(spectrogram [][]float64, maxBin int) []float64 {
	if len(spectrogram) == 0 {
		return []float64{}
	}

	bins := len(spectrogram[0])
	if maxBin > 0 && maxBin < bins {
		bins = maxBin
	}

	flux := make([]float64, len(spectrogram))

	for t := 1; t < len(spectrogram); t++ {
		sum := 0.0
		for f := 0; f < bins; f++ {
			diff := spectrogram[t][f] - spectrogram[t-1][f]
			if diff > 0 { // Only energy increases
				sum += diff
			}
		}
		flux[t] = sum
	}

	return flux
}
