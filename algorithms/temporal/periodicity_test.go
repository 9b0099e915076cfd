package temporal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// impulseEnvelope builds a unit impulse train with the given period in hops
func impulseEnvelope(length, period int) []float64 {
	envelope := make([]float64, length)
	for i := 0; i < length; i += period {
		envelope[i] = 1.0
	}
	return envelope
}

func TestLagBpmConversion(t *testing.T) {
	// 120 BPM at 22050 Hz / hop 96 is one beat per ~114.8 hops
	lag := LagForBpm(120.0, 22050, 96)
	assert.InDelta(t, 114.84, lag, 0.01)
	assert.InDelta(t, 120.0, BpmForLag(lag, 22050, 96), 1e-9)
}

func TestCandidatesFindsPeriod(t *testing.T) {
	// Period 100 hops at 22050/96 implies ~137.81 BPM
	envelope := impulseEnvelope(2000, 100)

	p := NewPeriodicity()
	candidates, err := p.Candidates(envelope, 22050, 96, 60.0, 200.0)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	want := BpmForLag(100.0, 22050, 96)
	assert.InDelta(t, want, candidates[0].Bpm, 0.5)
	assert.Greater(t, candidates[0].Score, 0.5)

	// The half-tempo relative at lag 200 is folded into the winner
	for _, c := range candidates {
		assert.Greater(t, c.Bpm, want/2.0+2.0, "half-tempo candidate survived folding")
	}
}

func TestCandidatesFlatEnvelope(t *testing.T) {
	candidates, err := NewPeriodicity().Candidates(make([]float64, 512), 22050, 96, 60.0, 200.0)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestCandidatesErrors(t *testing.T) {
	p := NewPeriodicity()

	_, err := p.Candidates([]float64{1, 2}, 22050, 96, 60.0, 200.0)
	assert.ErrorIs(t, err, ErrShortSignal)

	// An inverted range is a parameter error, not a short signal
	_, err = p.Candidates(make([]float64, 512), 22050, 96, 200.0, 60.0)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrShortSignal)

	// Envelope shorter than the slowest searched lag
	_, err = p.Candidates(make([]float64, 64), 22050, 96, 60.0, 200.0)
	assert.ErrorIs(t, err, ErrShortSignal)
}

func TestAutocorrelateNormalization(t *testing.T) {
	envelope := impulseEnvelope(2000, 100)

	acf := NewPeriodicity().Autocorrelate(envelope)
	require.Len(t, acf, 2000)

	assert.InDelta(t, 1.0, acf[0], 1e-9)
	assert.Greater(t, acf[100], 0.5)
	assert.Greater(t, acf[100], acf[50])
}

func TestAutocorrelateFlat(t *testing.T) {
	acf := NewPeriodicity().Autocorrelate(make([]float64, 256))
	for _, v := range acf {
		assert.Equal(t, 0.0, v)
	}
}

func TestScoreAt(t *testing.T) {
	envelope := impulseEnvelope(2000, 100)
	p := NewPeriodicity()

	bpm := BpmForLag(100.0, 22050, 96)

	// Both the true tempo and its half-tempo relative show correlation
	assert.Greater(t, p.ScoreAt(envelope, 22050, 96, bpm), 0.5)
	assert.Greater(t, p.ScoreAt(envelope, 22050, 96, bpm/2.0), 0.5)

	// Off-period lag carries no positive correlation
	offBpm := BpmForLag(50.0, 22050, 96)
	assert.Less(t, p.ScoreAt(envelope, 22050, 96, offBpm), 0.1)

	// Out-of-range lags score zero
	assert.Equal(t, 0.0, p.ScoreAt(envelope, 22050, 96, -5.0))
	assert.Equal(t, 0.0, p.ScoreAt(envelope, 22050, 96, 1e9))
}

func TestFoldOctavesMergesRelatives(t *testing.T) {
	p := NewPeriodicity()

	candidates := []TempoCandidate{
		{Bpm: 140.0, Score: 0.6},
		{Bpm: 70.2, Score: 0.5}, // within 1% of a 2:1 ratio
		{Bpm: 93.0, Score: 0.4},
	}

	folded := p.foldOctaves(candidates)
	require.Len(t, folded, 2)
	assert.InDelta(t, 140.0, folded[0].Bpm, 1e-9)
	assert.InDelta(t, 1.1, folded[0].Score, 1e-9)
	assert.InDelta(t, 93.0, folded[1].Bpm, 1e-9)
}

func TestScoreAtHalfOfFastTempo(t *testing.T) {
	// A 175 BPM pulse train still shows its 87.5 BPM relative at double lag
	sampleRate, hop := 22050, 96
	period := int(math.Round(LagForBpm(175.0, sampleRate, hop)))
	envelope := impulseEnvelope(3000, period)

	p := NewPeriodicity()
	assert.Greater(t, p.ScoreAt(envelope, sampleRate, hop, 87.5), 0.0)
}
