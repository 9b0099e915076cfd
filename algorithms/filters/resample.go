package filters

import (
	"fmt"
	"math"
)

// Resampler converts a signal between sample rates using a band-limited
// windowed-sinc kernel. When downsampling, the kernel cutoff sits below the
// target Nyquist frequency so aliasing energy is rejected instead of folded
// into the band the onset analysis reads.
type Resampler struct {
	halfWidth int // kernel half-width in output-rate dominated taps
}

// NewResampler creates a resampler with the default kernel width
func NewResampler() *Resampler {
	return &Resampler{
		halfWidth: 32,
	}
}

// Resample converts signal from srcRate to dstRate. The input is returned
// as a copy when the rates already match.
func (r *Resampler) Resample(signal []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("sample rates must be positive: src=%d dst=%d", srcRate, dstRate)
	}
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if srcRate == dstRate {
		out := make([]float64, len(signal))
		copy(out, signal)
		return out, nil
	}

	ratio := float64(dstRate) / float64(srcRate)

	// Cutoff in cycles per input sample, slightly inside the narrower
	// Nyquist band to leave room for the kernel transition.
	cutoff := 0.5 * math.Min(1.0, ratio) * 0.97

	halfWidth := float64(r.halfWidth)
	if ratio < 1.0 {
		// Stretch the kernel when downsampling to keep the stopband
		halfWidth = float64(r.halfWidth) / ratio
	}

	outLen := int(math.Ceil(float64(len(signal)) * ratio))
	out := make([]float64, outLen)

	for i := range out {
		center := float64(i) / ratio

		lo := int(math.Ceil(center - halfWidth))
		hi := int(math.Floor(center + halfWidth))
		if lo < 0 {
			lo = 0
		}
		if hi > len(signal)-1 {
			hi = len(signal) - 1
		}

		acc := 0.0
		for j := lo; j <= hi; j++ {
			d := float64(j) - center
			acc += signal[j] * 2 * cutoff * sinc(2*cutoff*d) * hannLobe(d/halfWidth)
		}
		out[i] = acc
	}

	return out, nil
}

// sinc is the normalized sinc function sin(pi x)/(pi x)
func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1.0
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// hannLobe is a single Hann lobe over u in [-1, 1], zero outside
func hannLobe(u float64) float64 {
	if u < -1.0 || u > 1.0 {
		return 0.0
	}
	return 0.5 * (1.0 + math.Cos(math.Pi*u))
}
