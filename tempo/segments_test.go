package tempo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeSimilarSegments(t *testing.T) {
	segments := []Segment{
		{StartSeconds: 0, EndSeconds: 10, LocalBpm: 128.0},
		{StartSeconds: 5, EndSeconds: 15, LocalBpm: 128.5},
		{StartSeconds: 10, EndSeconds: 20, LocalBpm: 140.0},
	}

	merged := mergeSimilarSegments(segments, 0.75)
	require.Len(t, merged, 2)

	// First two merge with a duration-weighted BPM; both windows are 10s
	assert.InDelta(t, 128.25, merged[0].LocalBpm, 1e-9)
	assert.Equal(t, 0.0, merged[0].StartSeconds)
	assert.Equal(t, 15.0, merged[0].EndSeconds)

	assert.Equal(t, 140.0, merged[1].LocalBpm)
}

func TestMergeSimilarSegmentsChain(t *testing.T) {
	// Merging is transitive through the running average: a slow drift
	// within tolerance collapses into a single segment.
	segments := []Segment{
		{StartSeconds: 0, EndSeconds: 10, LocalBpm: 128.0},
		{StartSeconds: 5, EndSeconds: 15, LocalBpm: 128.5},
		{StartSeconds: 10, EndSeconds: 20, LocalBpm: 128.9},
	}

	merged := mergeSimilarSegments(segments, 0.75)
	require.Len(t, merged, 1)
	assert.Equal(t, 20.0, merged[0].EndSeconds)
}

func TestMergeSimilarSegmentsSmall(t *testing.T) {
	assert.Empty(t, mergeSimilarSegments(nil, 0.75))

	one := []Segment{{StartSeconds: 0, EndSeconds: 10, LocalBpm: 120}}
	assert.Equal(t, one, mergeSimilarSegments(one, 0.75))
}
