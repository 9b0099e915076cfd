package spectral

import (
	"errors"
	"fmt"
	"math"

	"github.com/tempest-dsp/tempograph/algorithms/common"
	"github.com/tempest-dsp/tempograph/algorithms/windowing"
)

// ErrShortSignal reports input shorter than one analysis window
var ErrShortSignal = errors.New("signal too short")

// HPSS separates a signal into harmonic and percussive components using
// median filtering of the magnitude spectrogram. Sustained tonal energy is
// smooth along the time axis; broadband transients are smooth along the
// frequency axis. Soft Wiener-style masks split each bin between the two,
// and the percussive component is rebuilt with the original phase.
type HPSS struct {
	stft       *STFT
	windowSize int
	hopSize    int
	kernelSize int     // median filter length on both axes
	power      float64 // mask exponent
}

// NewHPSS creates a separator with the default analysis parameters
// (2048-sample window, 512 hop, kernel 17, squared masks).
func NewHPSS() *HPSS {
	return &HPSS{
		stft:       NewSTFT(),
		windowSize: 2048,
		hopSize:    512,
		kernelSize: 17,
		power:      2.0,
	}
}

// SeparatePercussive returns the percussive component of the signal, same
// length as the input.
func (h *HPSS) SeparatePercussive(signal []float64, sampleRate int) ([]float64, error) {
	if len(signal) < h.windowSize {
		return nil, fmt.Errorf("%w for separation: %d samples, need at least %d", ErrShortSignal, len(signal), h.windowSize)
	}

	window := windowing.NewHann(h.windowSize, false)
	res, err := h.stft.Compute(signal, h.windowSize, h.hopSize, sampleRate, window)
	if err != nil {
		return nil, fmt.Errorf("hpss stft: %w", err)
	}

	harmonic, percussive := h.medianEnhance(res.Magnitude)

	// Soft-mask the complex spectrogram toward the percussive estimate
	masked := make([][]complex128, res.TimeFrames)
	for t := 0; t < res.TimeFrames; t++ {
		masked[t] = make([]complex128, res.FreqBins)
		for k := 0; k < res.FreqBins; k++ {
			hp := pow(harmonic[t][k], h.power)
			pp := pow(percussive[t][k], h.power)
			denom := hp + pp
			if denom < 1e-12 {
				continue
			}
			mask := pp / denom
			masked[t][k] = res.Complex[t][k] * complex(mask, 0)
		}
	}

	out, err := h.stft.Inverse(masked, h.windowSize, h.hopSize, window, len(signal))
	if err != nil {
		return nil, fmt.Errorf("hpss inverse stft: %w", err)
	}

	return out, nil
}

// medianEnhance builds the harmonic (time-axis median) and percussive
// (frequency-axis median) enhanced spectrograms.
func (h *HPSS) medianEnhance(mag [][]float64) (harmonic, percussive [][]float64) {
	frames := len(mag)
	bins := len(mag[0])

	harmonic = make([][]float64, frames)
	percussive = make([][]float64, frames)
	for t := 0; t < frames; t++ {
		harmonic[t] = make([]float64, bins)
		percussive[t] = common.MedianFilter(mag[t], h.kernelSize)
	}

	column := make([]float64, frames)
	for k := 0; k < bins; k++ {
		for t := 0; t < frames; t++ {
			column[t] = mag[t][k]
		}
		filtered := common.MedianFilter(column, h.kernelSize)
		for t := 0; t < frames; t++ {
			harmonic[t][k] = filtered[t]
		}
	}

	return harmonic, percussive
}

func pow(v, p float64) float64 {
	if p == 2.0 {
		return v * v
	}
	return math.Pow(v, p)
}
