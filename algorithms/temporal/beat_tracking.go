package temporal

import (
	"fmt"
	"math"
)

// BeatTracker finds a globally consistent beat sequence near a tempo
// hypothesis with a dynamic program over envelope positions. Cumulative
// scores and back-pointers live in flat index-based arenas; backtracking
// from the global maximum reconstructs the beat chain.
//
// The tracker exists to cross-validate autocorrelation candidates: a tall
// periodicity peak whose beats keep landing between onsets earns a low
// score density and gets demoted by the resolver.
type BeatTracker struct {
	tightness float64 // penalty weight on log-deviation from the beat period
}

// NewBeatTracker creates a tracker with the default tightness
func NewBeatTracker() *BeatTracker {
	return &BeatTracker{tightness: 400.0}
}

// NewBeatTrackerWithTightness creates a tracker with a custom tightness.
// Higher values force stricter tempo consistency.
func NewBeatTrackerWithTightness(tightness float64) *BeatTracker {
	if tightness <= 0 {
		tightness = 400.0
	}
	return &BeatTracker{tightness: tightness}
}

// Track runs the dynamic program for the given tempo hypothesis and returns
// beat positions as envelope frame indices (strictly increasing) plus the
// score density: total cumulative score normalized by the number of beats.
func (bt *BeatTracker) Track(envelope []float64, bpm float64, sampleRate, hopLength int) ([]int, float64, error) {
	if len(envelope) == 0 {
		return nil, 0, fmt.Errorf("empty envelope")
	}
	if bpm <= 0 {
		return nil, 0, fmt.Errorf("bpm must be positive, got %g", bpm)
	}

	period := LagForBpm(bpm, sampleRate, hopLength)
	if period < 1.0 {
		return nil, 0, fmt.Errorf("beat period %.2f hops is below envelope resolution", period)
	}

	n := len(envelope)
	cumscore := make([]float64, n)
	backlink := make([]int, n)

	// Transition window: a beat can follow another half to two periods back
	minGap := int(math.Round(period / 2.0))
	if minGap < 1 {
		minGap = 1
	}
	maxGap := int(math.Round(2.0 * period))

	for i := 0; i < n; i++ {
		backlink[i] = -1

		best := math.Inf(-1)
		bestJ := -1

		jEnd := i - minGap
		jStart := i - maxGap
		if jStart < 0 {
			jStart = 0
		}

		for j := jStart; j <= jEnd; j++ {
			gap := float64(i - j)
			logDev := math.Log(gap / period)
			score := cumscore[j] - bt.tightness*logDev*logDev
			if score > best {
				best = score
				bestJ = j
			}
		}

		cumscore[i] = envelope[i]
		if bestJ >= 0 && best > 0 {
			cumscore[i] += best
			backlink[i] = bestJ
		}
	}

	// Backtrack from the global maximum
	tail := 0
	for i := 1; i < n; i++ {
		if cumscore[i] > cumscore[tail] {
			tail = i
		}
	}

	var reversed []int
	for i := tail; i >= 0; i = backlink[i] {
		reversed = append(reversed, i)
		if backlink[i] < 0 {
			break
		}
	}

	beats := make([]int, len(reversed))
	for i, b := range reversed {
		beats[len(reversed)-1-i] = b
	}

	density := cumscore[tail] / float64(len(beats))

	return beats, density, nil
}

// BeatTimes converts envelope frame indices to timestamps in seconds
func BeatTimes(beats []int, sampleRate, hopLength int) []float64 {
	times := make([]float64, len(beats))
	for i, b := range beats {
		times[i] = float64(b) * float64(hopLength) / float64(sampleRate)
	}
	return times
}
