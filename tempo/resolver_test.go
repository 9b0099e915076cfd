package tempo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapValue(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		step      float64
		tolerance float64
		want      float64
	}{
		{"snaps up to integer", 127.8, 1.0, 0.5, 128.0},
		{"snaps down to integer", 128.3, 1.0, 0.5, 128.0},
		{"exact integer unchanged", 128.0, 1.0, 0.5, 128.0},
		{"half-up near x.5", 128.499, 1.0, 0.5, 128.5},
		{"outside tolerance passes through", 127.2, 1.0, 0.15, 127.2},
		{"half grid within reduced tolerance", 140.45, 1.0, 0.2, 140.5},
		{"step grid", 85.3, 0.25, 0.2, 85.25},
		{"zero step passes through", 127.8, 0.0, 0.5, 127.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, snapValue(tt.value, tt.step, tt.tolerance), 1e-9)
		})
	}
}

func TestSnapValueNonFinite(t *testing.T) {
	assert.True(t, math.IsNaN(snapValue(math.NaN(), 1.0, 0.5)))
	assert.True(t, math.IsInf(snapValue(math.Inf(1), 1.0, 0.5), 1))
}

func TestMedianBpmFromBeats(t *testing.T) {
	// Beats every half second imply 120 BPM
	times := []float64{0.0, 0.5, 1.0, 1.5, 2.0}
	assert.InDelta(t, 120.0, medianBpmFromBeats(times, 60.0, 200.0), 1e-9)

	// One outlier interval does not move the median
	times = []float64{0.0, 0.5, 1.0, 1.02, 1.5}
	got := medianBpmFromBeats(times, 60.0, 200.0)
	assert.InDelta(t, 120.0, got, 5.0)

	// Intervals outside the range are ignored entirely
	times = []float64{0.0, 0.01, 0.02}
	assert.Equal(t, 0.0, medianBpmFromBeats(times, 60.0, 200.0))

	assert.Equal(t, 0.0, medianBpmFromBeats(nil, 60.0, 200.0))
	assert.Equal(t, 0.0, medianBpmFromBeats([]float64{1.0}, 60.0, 200.0))
}

func TestContainsBpm(t *testing.T) {
	list := []float64{128.0, 64.0}
	assert.True(t, containsBpm(list, 128.5))
	assert.True(t, containsBpm(list, 64.0))
	assert.False(t, containsBpm(list, 96.0))
	assert.False(t, containsBpm(nil, 128.0))
}

func TestRunnerUpScore(t *testing.T) {
	assert.Equal(t, 0.7, runnerUpScore([]float64{1.0, 0.7, 0.3}, 0))
	assert.Equal(t, 1.0, runnerUpScore([]float64{1.0, 0.7, 0.3}, 1))
	assert.Equal(t, 0.0, runnerUpScore([]float64{1.0}, 0))
}
