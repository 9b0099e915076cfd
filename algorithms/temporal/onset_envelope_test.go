package temporal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempest-dsp/tempograph/algorithms/common"
)

// clickSignal places short decaying bursts at the given sample positions
func clickSignal(length, sampleRate int, positions []int) []float64 {
	signal := make([]float64, length)
	for _, pos := range positions {
		for k := 0; k < 64 && pos+k < length; k++ {
			signal[pos+k] += math.Sin(2*math.Pi*3000.0*float64(k)/float64(sampleRate)) *
				math.Exp(-float64(k)/16.0)
		}
	}
	return signal
}

func TestOnsetEnvelopeBuild(t *testing.T) {
	sampleRate, hopLength := 22050, 96
	length := 3 * sampleRate

	var positions []int
	for pos := 0; pos < length-64; pos += sampleRate / 2 {
		positions = append(positions, pos)
	}
	signal := clickSignal(length, sampleRate, positions)

	envelope, err := NewOnsetEnvelopeBuilder().Build(signal, sampleRate, hopLength)
	require.NoError(t, err)
	assert.Len(t, envelope, (length-1024)/hopLength+1)

	// Unit variance, non-negative
	assert.InDelta(t, 1.0, common.StandardDeviation(envelope), 1e-9)
	for i, v := range envelope {
		assert.GreaterOrEqual(t, v, 0.0, "hop %d", i)
	}

	// Each click produces a strong local response near its hop index
	for _, pos := range positions {
		hop := pos / hopLength
		lo := hop - 12
		if lo < 0 {
			lo = 0
		}
		hi := hop + 12
		if hi >= len(envelope) {
			hi = len(envelope) - 1
		}
		peak := common.Max(envelope[lo : hi+1])
		assert.Greater(t, peak, 1.0, "click at sample %d", pos)
	}
}

func TestOnsetEnvelopeSilence(t *testing.T) {
	envelope, err := NewOnsetEnvelopeBuilder().Build(make([]float64, 22050), 22050, 96)
	require.NoError(t, err)

	for _, v := range envelope {
		assert.Equal(t, 0.0, v)
	}
}

func TestOnsetEnvelopeErrors(t *testing.T) {
	b := NewOnsetEnvelopeBuilder()

	_, err := b.Build(nil, 22050, 96)
	assert.Error(t, err)

	_, err = b.Build(make([]float64, 500), 22050, 96)
	assert.ErrorIs(t, err, ErrShortSignal)

	_, err = b.Build(make([]float64, 22050), 22050, 0)
	assert.Error(t, err)
}
