package tempo

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tempest-dsp/tempograph/algorithms/common"
	"github.com/tempest-dsp/tempograph/algorithms/temporal"
)

// confidenceKnee shapes the saturating confidence curve: a combined score
// equal to the knee maps to 0.5 of its asymptote.
const confidenceKnee = 0.12

// ambiguityMargin is the relative score distance under which the top two
// candidates count as ambiguous and the confidence is discounted.
const ambiguityMargin = 0.10

// resolve reconciles periodicity candidates with beat-tracker validation
// and produces the final result. Octave relatives were folded upstream, so
// the remaining candidates are genuinely competing tempos: a tall
// autocorrelation peak only wins if its beat alignment holds up.
func (a *Analyzer) resolve(envelope []float64, config *Config) (*Result, error) {
	if common.StandardDeviation(envelope) < 1e-9 {
		return nil, ErrInsufficientSignal
	}

	candidates, err := a.periodicity.Candidates(envelope, config.SampleRate, config.HopLength, config.MinBpm, config.MaxBpm)
	if err != nil {
		if errors.Is(err, temporal.ErrShortSignal) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientSignal, err)
		}
		return nil, fmt.Errorf("tempo: periodicity: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrInsufficientSignal
	}

	topN := config.TopCandidates
	if topN > len(candidates) {
		topN = len(candidates)
	}

	// Per-candidate beat tracking passes only read the shared envelope
	// and write their own slot, so they can fan out.
	type trackOutcome struct {
		beats   []int
		density float64
	}
	outcomes := make([]trackOutcome, topN)
	tracker := temporal.NewBeatTrackerWithTightness(config.Tightness)

	var wg sync.WaitGroup
	for i := 0; i < topN; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			beats, density, err := tracker.Track(envelope, candidates[i].Bpm, config.SampleRate, config.HopLength)
			if err != nil {
				return
			}
			outcomes[i] = trackOutcome{beats: beats, density: density}
		}(i)
	}
	wg.Wait()

	maxScore, maxDensity := 0.0, 0.0
	for i := 0; i < topN; i++ {
		if candidates[i].Score > maxScore {
			maxScore = candidates[i].Score
		}
		if outcomes[i].density > maxDensity {
			maxDensity = outcomes[i].density
		}
	}
	if maxScore < 1e-12 {
		return nil, ErrInsufficientSignal
	}

	combined := make([]float64, topN)
	for i := 0; i < topN; i++ {
		acPart := candidates[i].Score / maxScore
		densPart := 0.0
		if maxDensity > 1e-12 {
			densPart = outcomes[i].density / maxDensity
		}
		combined[i] = 0.5*acPart + 0.5*densPart
	}

	mid := (config.MinBpm + config.MaxBpm) / 2.0
	best := 0
	for i := 1; i < topN; i++ {
		if combined[i] > combined[best]+1e-9 {
			best = i
		} else if math.Abs(combined[i]-combined[best]) <= 1e-9 &&
			math.Abs(candidates[i].Bpm-mid) < math.Abs(candidates[best].Bpm-mid) {
			best = i
		}
	}

	bpm := candidates[best].Bpm

	// Refine with the median inter-beat interval when it agrees; a large
	// disagreement means the tracker locked onto a harmonic, and the
	// periodicity estimate stands.
	times := temporal.BeatTimes(outcomes[best].beats, config.SampleRate, config.HopLength)
	if median := medianBpmFromBeats(times, config.MinBpm, config.MaxBpm); median > 0 && math.Abs(median-bpm) < 5.0 {
		bpm = (bpm + median) / 2.0
	}
	bpm = common.Clamp(bpm, config.MinBpm, config.MaxBpm)

	if config.UseSnap {
		bpm = snapValue(bpm, config.SnapStep, config.SnapTolerance)
	}

	confidence := combined[best] / (combined[best] + confidenceKnee)
	if runner := runnerUpScore(combined, best); runner >= (1.0-ambiguityMargin)*combined[best] {
		confidence *= 0.75
	}
	confidence = common.Clamp(confidence, 0.0, 1.0)

	candidateBpms := rankedCandidateBpms(bpm, candidates, combined, best, topN)

	// Report the winner's half-tempo relative when its correlation peak
	// is observable, even outside the configured range. Downstream
	// consumers use it to present the octave alternative.
	half := bpm / 2.0
	if !containsBpm(candidateBpms, half) &&
		a.periodicity.ScoreAt(envelope, config.SampleRate, config.HopLength, half) > 0 {
		candidateBpms = append(candidateBpms, half)
	}

	return &Result{
		Bpm:           bpm,
		Confidence:    confidence,
		CandidateBpms: candidateBpms,
		SampleRate:    config.SampleRate,
		WindowSeconds: float64(len(envelope)) * float64(config.HopLength) / float64(config.SampleRate),
	}, nil
}

// rankedCandidateBpms lists the final BPM first, then the remaining
// validated candidates by descending combined score.
func rankedCandidateBpms(finalBpm float64, candidates []temporal.TempoCandidate, combined []float64, best, topN int) []float64 {
	order := make([]int, 0, topN-1)
	for i := 0; i < topN; i++ {
		if i != best {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(x, y int) bool {
		return combined[order[x]] > combined[order[y]]
	})

	out := make([]float64, 0, topN)
	out = append(out, finalBpm)
	for _, i := range order {
		out = append(out, candidates[i].Bpm)
	}
	return out
}

func runnerUpScore(combined []float64, best int) float64 {
	runner := 0.0
	for i, s := range combined {
		if i != best && s > runner {
			runner = s
		}
	}
	return runner
}

func containsBpm(list []float64, bpm float64) bool {
	for _, v := range list {
		if math.Abs(v-bpm) <= 0.01*bpm {
			return true
		}
	}
	return false
}

// medianBpmFromBeats converts a beat sequence to its median implied BPM,
// ignoring intervals outside the search range. Returns 0 when fewer than
// two usable beats exist.
func medianBpmFromBeats(times []float64, minBpm, maxBpm float64) float64 {
	if len(times) < 2 {
		return 0.0
	}

	var bpms []float64
	for i := 1; i < len(times); i++ {
		dt := times[i] - times[i-1]
		if dt <= 0 {
			continue
		}
		bpm := 60.0 / dt
		if bpm >= minBpm && bpm <= maxBpm {
			bpms = append(bpms, bpm)
		}
	}
	if len(bpms) == 0 {
		return 0.0
	}

	return common.Median(bpms)
}

// snapValue rounds a BPM to the canonical grid. Integers snap within the
// full tolerance (half-up at .495 to absorb float noise around x.5), exact
// halves within 0.3x the tolerance, and finally arbitrary step multiples
// within the full tolerance. Values outside tolerance pass through
// unchanged so genuinely fractional tempos survive.
func snapValue(value, step, tolerance float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || step <= 0 {
		return value
	}

	floorV := math.Floor(value)
	snappedInt := floorV
	if value-floorV >= 0.495 {
		snappedInt = floorV + 1
	}
	if math.Abs(value-snappedInt) <= tolerance {
		return snappedInt
	}

	snappedHalf := math.Round(value*2.0) / 2.0
	if math.Abs(value-snappedHalf) <= tolerance*0.3 {
		return snappedHalf
	}

	snapped := math.Round(value/step) * step
	if math.Abs(value-snapped) <= tolerance {
		return snapped
	}

	return value
}
