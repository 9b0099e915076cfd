package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempest-dsp/tempograph/algorithms/windowing"
)

func sineWave(freq float64, sampleRate, length int) []float64 {
	signal := make([]float64, length)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return signal
}

func TestSTFTComputeShape(t *testing.T) {
	sampleRate := 8192
	signal := sineWave(440.0, sampleRate, 4096)
	window := windowing.NewHann(1024, false)

	stft := NewSTFT()
	res, err := stft.Compute(signal, 1024, 256, sampleRate, window)
	require.NoError(t, err)

	assert.Equal(t, (4096-1024)/256+1, res.TimeFrames)
	assert.Equal(t, 513, res.FreqBins)
	assert.Equal(t, len(res.Magnitude), res.TimeFrames)
	assert.Equal(t, len(res.Magnitude[0]), res.FreqBins)
	assert.InDelta(t, 8.0, res.FreqResolution, 1e-12)
}

func TestSTFTComputePeakBin(t *testing.T) {
	// 440 Hz at 8 Hz/bin resolution lands exactly on bin 55
	sampleRate := 8192
	signal := sineWave(440.0, sampleRate, 4096)
	window := windowing.NewHann(1024, false)

	stft := NewSTFT()
	res, err := stft.Compute(signal, 1024, 256, sampleRate, window)
	require.NoError(t, err)

	mid := res.TimeFrames / 2
	peakBin := 0
	for k := 1; k < res.FreqBins; k++ {
		if res.Magnitude[mid][k] > res.Magnitude[mid][peakBin] {
			peakBin = k
		}
	}
	assert.Equal(t, 55, peakBin)
}

func TestSTFTComputeErrors(t *testing.T) {
	stft := NewSTFT()

	_, err := stft.Compute(nil, 1024, 256, 8192, nil)
	assert.Error(t, err)

	_, err = stft.Compute(make([]float64, 512), 1024, 256, 8192, nil)
	assert.Error(t, err)

	_, err = stft.Compute(make([]float64, 2048), 1024, 0, 8192, nil)
	assert.Error(t, err)
}

func TestSTFTInverseRoundTrip(t *testing.T) {
	sampleRate := 8192
	length := 4096

	// Two tones plus a slow ramp so the signal is not window-periodic
	signal := make([]float64, length)
	for i := range signal {
		x := float64(i)
		signal[i] = 0.7*math.Sin(2*math.Pi*440.0*x/float64(sampleRate)) +
			0.3*math.Sin(2*math.Pi*97.0*x/float64(sampleRate)) +
			0.1*x/float64(length)
	}

	windowSize, hopSize := 1024, 256
	window := windowing.NewHann(windowSize, false)

	stft := NewSTFT()
	res, err := stft.Compute(signal, windowSize, hopSize, sampleRate, window)
	require.NoError(t, err)

	rebuilt, err := stft.Inverse(res.Complex, windowSize, hopSize, window, length)
	require.NoError(t, err)
	require.Len(t, rebuilt, length)

	// Edges lack full window overlap; the interior must reconstruct exactly
	for i := windowSize; i < length-windowSize; i++ {
		assert.InDelta(t, signal[i], rebuilt[i], 1e-6, "sample %d", i)
	}
}

func TestSTFTInverseValidation(t *testing.T) {
	stft := NewSTFT()

	_, err := stft.Inverse(nil, 1024, 256, nil, 0)
	assert.Error(t, err)

	// Bin count must match the window size
	bad := [][]complex128{make([]complex128, 100)}
	_, err = stft.Inverse(bad, 1024, 256, nil, 0)
	assert.Error(t, err)
}
