package temporal

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/tempest-dsp/tempograph/algorithms/common"
	"github.com/tempest-dsp/tempograph/algorithms/spectral"
)

// TempoCandidate is one periodicity hypothesis: a BPM value and its
// autocorrelation score. Scores are comparable only within one run.
type TempoCandidate struct {
	Bpm   float64 `json:"bpm"`
	Score float64 `json:"score"`
	Lag   float64 `json:"lag_hops"`
}

// Periodicity ranks tempo candidates by autocorrelating an onset envelope
// across the lag range of a BPM search window. Half/double-tempo relatives
// of each peak are folded into a single candidate, which is the first line
// of defense against octave errors.
type Periodicity struct {
	fft             *spectral.FFT
	octaveTolerance float64 // relative tolerance when matching 2:1 lags
}

// NewPeriodicity creates a periodicity estimator with 1% octave tolerance
func NewPeriodicity() *Periodicity {
	return &Periodicity{
		fft:             spectral.NewFFT(),
		octaveTolerance: 0.01,
	}
}

// LagForBpm converts a BPM value to an envelope lag in hops
func LagForBpm(bpm float64, sampleRate, hopLength int) float64 {
	return 60.0 * float64(sampleRate) / (bpm * float64(hopLength))
}

// BpmForLag converts an envelope lag in hops to a BPM value
func BpmForLag(lag float64, sampleRate, hopLength int) float64 {
	return 60.0 * float64(sampleRate) / (lag * float64(hopLength))
}

// Candidates returns tempo candidates within [minBpm, maxBpm], best first.
// Ties prefer the candidate closer to the midpoint of the range.
func (p *Periodicity) Candidates(envelope []float64, sampleRate, hopLength int, minBpm, maxBpm float64) ([]TempoCandidate, error) {
	if len(envelope) < 4 {
		return nil, fmt.Errorf("envelope %w: %d hops", ErrShortSignal, len(envelope))
	}
	if minBpm <= 0 || maxBpm <= minBpm {
		return nil, fmt.Errorf("invalid bpm range [%g, %g]", minBpm, maxBpm)
	}

	minLag := LagForBpm(maxBpm, sampleRate, hopLength)
	maxLag := LagForBpm(minBpm, sampleRate, hopLength)

	iMin := int(math.Floor(minLag))
	if iMin < 1 {
		iMin = 1
	}
	iMax := int(math.Ceil(maxLag))

	acf := p.Autocorrelate(envelope)
	if iMax > len(acf)-2 {
		iMax = len(acf) - 2
	}
	if iMax <= iMin {
		return nil, fmt.Errorf("envelope %w for bpm range [%g, %g]: need more than %d hops", ErrShortSignal, minBpm, maxBpm, int(maxLag))
	}

	// Local maxima over the valid lag band, with one sample of context on
	// each side so band-edge peaks are still detected as maxima.
	segment := acf[iMin-1 : iMax+2]
	peaks := common.FindPeaks(segment, 0.0, 2.0)

	var candidates []TempoCandidate
	for _, ip := range peaks {
		idx := ip + iMin - 1
		if idx < iMin || idx > iMax {
			continue
		}

		offset, height := common.ParabolicPeakInterp(acf[idx-1], acf[idx], acf[idx+1])
		lag := float64(idx) + offset
		bpm := BpmForLag(lag, sampleRate, hopLength)
		if bpm < minBpm-1e-9 || bpm > maxBpm+1e-9 {
			continue
		}

		candidates = append(candidates, TempoCandidate{
			Bpm:   bpm,
			Score: height,
			Lag:   lag,
		})
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	mid := (minBpm + maxBpm) / 2.0
	p.sortCandidates(candidates, mid)
	candidates = p.foldOctaves(candidates)
	p.sortCandidates(candidates, mid)

	return candidates, nil
}

// Autocorrelate computes the biased autocorrelation of the de-meaned
// envelope, normalized so lag 0 equals 1. The FFT path keeps long envelopes
// cheap; the biased estimate naturally favors shorter lags, which breaks
// exact octave ties toward the faster tempo.
func (p *Periodicity) Autocorrelate(envelope []float64) []float64 {
	n := len(envelope)
	if n == 0 {
		return []float64{}
	}

	mean := common.Mean(envelope)
	size := common.NextPowerOfTwo(2 * n)
	padded := make([]float64, size)
	for i, v := range envelope {
		padded[i] = v - mean
	}

	spectrum := p.fft.Compute(padded)
	for i := range spectrum {
		spectrum[i] *= cmplx.Conj(spectrum[i])
	}

	full := p.fft.ComputeInverseReal(spectrum)

	acf := make([]float64, n)
	copy(acf, full[:n])

	if acf[0] < 1e-12 {
		// Flat envelope: no periodicity information
		return make([]float64, n)
	}

	r0 := acf[0]
	for i := range acf {
		acf[i] /= r0
	}

	return acf
}

// ScoreAt returns the normalized autocorrelation height near the lag of the
// given BPM (searching ±2 hops for the local peak), or 0 when the lag is
// outside the envelope or carries no positive correlation.
func (p *Periodicity) ScoreAt(envelope []float64, sampleRate, hopLength int, bpm float64) float64 {
	if bpm <= 0 {
		return 0.0
	}

	acf := p.Autocorrelate(envelope)
	center := int(math.Round(LagForBpm(bpm, sampleRate, hopLength)))
	if center < 1 || center >= len(acf) {
		return 0.0
	}

	best := 0.0
	for i := center - 2; i <= center+2; i++ {
		if i >= 0 && i < len(acf) && acf[i] > best {
			best = acf[i]
		}
	}

	return best
}

// foldOctaves merges candidates whose BPM values sit in a 2:1 ratio within
// tolerance. The stronger candidate absorbs the weaker one's score, so a
// true tempo backed by a half- or double-tempo harmonic outranks unrelated
// peaks of similar height. The input must already be sorted best-first.
func (p *Periodicity) foldOctaves(candidates []TempoCandidate) []TempoCandidate {
	used := make([]bool, len(candidates))
	var folded []TempoCandidate

	for i := range candidates {
		if used[i] {
			continue
		}
		rep := candidates[i]
		for j := i + 1; j < len(candidates); j++ {
			if used[j] {
				continue
			}
			ratio := rep.Bpm / candidates[j].Bpm
			if ratio < 1.0 {
				ratio = 1.0 / ratio
			}
			if math.Abs(ratio-2.0) <= 2.0*p.octaveTolerance {
				rep.Score += candidates[j].Score
				used[j] = true
			}
		}
		folded = append(folded, rep)
	}

	return folded
}

// sortCandidates orders by descending score; near-ties prefer the BPM
// closer to the midpoint of the search range.
func (p *Periodicity) sortCandidates(candidates []TempoCandidate, mid float64) {
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].Score, candidates[j].Score
		if math.Abs(si-sj) > 1e-9 {
			return si > sj
		}
		return math.Abs(candidates[i].Bpm-mid) < math.Abs(candidates[j].Bpm-mid)
	})
}
