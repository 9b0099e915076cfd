package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackFollowsImpulseTrain(t *testing.T) {
	// Period 120 hops at 24000 Hz / hop 100 is exactly 120 BPM
	sampleRate, hop := 24000, 100
	envelope := impulseEnvelope(2400, 120)

	beats, density, err := NewBeatTracker().Track(envelope, 120.0, sampleRate, hop)
	require.NoError(t, err)
	require.Greater(t, len(beats), 10)

	for i := 1; i < len(beats); i++ {
		assert.Greater(t, beats[i], beats[i-1], "beats must be strictly increasing")
		assert.InDelta(t, 120, beats[i]-beats[i-1], 3, "gap %d", i)
	}

	assert.Greater(t, density, 0.5)
}

func TestTrackDemotesDoubleTempo(t *testing.T) {
	// Half the double-tempo beats land between onsets, so the per-beat
	// score density drops by about half.
	sampleRate, hop := 24000, 100
	envelope := impulseEnvelope(2400, 120)

	tracker := NewBeatTracker()
	_, correctDensity, err := tracker.Track(envelope, 120.0, sampleRate, hop)
	require.NoError(t, err)
	_, doubleDensity, err := tracker.Track(envelope, 240.0, sampleRate, hop)
	require.NoError(t, err)

	assert.Greater(t, correctDensity, 1.5*doubleDensity)
}

func TestTrackErrors(t *testing.T) {
	tracker := NewBeatTracker()

	_, _, err := tracker.Track(nil, 120.0, 22050, 96)
	assert.Error(t, err)

	_, _, err = tracker.Track(make([]float64, 100), 0, 22050, 96)
	assert.Error(t, err)

	// Tempo faster than the envelope resolution
	_, _, err = tracker.Track(make([]float64, 100), 200000.0, 22050, 96)
	assert.Error(t, err)
}

func TestNewBeatTrackerWithTightness(t *testing.T) {
	assert.Equal(t, 500.0, NewBeatTrackerWithTightness(500.0).tightness)
	assert.Equal(t, 400.0, NewBeatTrackerWithTightness(-1).tightness)
}

func TestBeatTimes(t *testing.T) {
	times := BeatTimes([]int{0, 100, 200}, 10000, 100)
	assert.Equal(t, []float64{0.0, 1.0, 2.0}, times)
	assert.Empty(t, BeatTimes(nil, 10000, 100))
}
