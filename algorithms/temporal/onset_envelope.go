package temporal

import (
	"errors"
	"fmt"

	"github.com/tempest-dsp/tempograph/algorithms/common"
	"github.com/tempest-dsp/tempograph/algorithms/spectral"
	"github.com/tempest-dsp/tempograph/algorithms/windowing"
)

// ErrShortSignal reports input too short for the requested analysis, either
// in samples or in envelope hops. Callers distinguish it from parameter
// errors when classifying failures.
var ErrShortSignal = errors.New("signal too short")

// OnsetEnvelopeBuilder turns a time-domain signal into a one-dimensional
// onset-strength series: one non-negative value per hop, scaled to unit
// variance. The same envelope feeds both the periodicity estimator and the
// beat tracker so their scores stay comparable.
type OnsetEnvelopeBuilder struct {
	stft       *spectral.STFT
	flux       *spectral.SpectralFlux
	windowSize int
	maxFreq    float64 // flux band limit in Hz
}

// NewOnsetEnvelopeBuilder creates a builder with the default 1024-sample
// analysis window and an 8 kHz flux band limit.
func NewOnsetEnvelopeBuilder() *OnsetEnvelopeBuilder {
	return &OnsetEnvelopeBuilder{
		stft:       spectral.NewSTFT(),
		flux:       spectral.NewSpectralFlux(),
		windowSize: 1024,
		maxFreq:    8000.0,
	}
}

// Build computes the onset envelope of signal. Time of sample i is
// i*hopLength/sampleRate. A flat (silent or constant) signal produces an
// all-zero envelope; callers gate on its variance.
func (b *OnsetEnvelopeBuilder) Build(signal []float64, sampleRate, hopLength int) ([]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if hopLength < 1 {
		return nil, fmt.Errorf("hop length must be >= 1, got %d", hopLength)
	}
	if len(signal) < b.windowSize {
		return nil, fmt.Errorf("%w for onset analysis: %d samples, need at least %d", ErrShortSignal, len(signal), b.windowSize)
	}

	window := windowing.NewHann(b.windowSize, false)
	res, err := b.stft.Compute(signal, b.windowSize, hopLength, sampleRate, window)
	if err != nil {
		return nil, fmt.Errorf("onset stft: %w", err)
	}

	maxBin := res.FreqBins
	if b.maxFreq > 0 && res.FreqResolution > 0 {
		limit := int(b.maxFreq/res.FreqResolution) + 1
		if limit < maxBin {
			maxBin = limit
		}
	}

	envelope := b.flux.Compute(res.Magnitude, maxBin)
	if len(envelope) == 0 {
		return nil, fmt.Errorf("onset envelope is empty")
	}

	// Scale to unit variance without centering: the envelope stays
	// non-negative and flat input stays identically zero.
	std := common.StandardDeviation(envelope)
	if std < 1e-12 {
		return envelope, nil
	}
	for i := range envelope {
		envelope[i] /= std
	}

	return envelope, nil
}
