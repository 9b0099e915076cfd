package tempo

import (
	"fmt"
	"math"
)

// AudioBuffer holds decoded PCM input for one analysis call. Multi-channel
// audio is interleaved; it is collapsed to mono during preparation. The
// engine owns the buffer only for the duration of the call.
type AudioBuffer struct {
	Samples    []float64 `json:"-"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
}

// NewAudioBuffer validates and wraps decoded samples. NaN or Inf samples
// are a decode error, not a detector error, so they are rejected here at
// the boundary.
func NewAudioBuffer(samples []float64, sampleRate, channels int) (*AudioBuffer, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("tempo: empty sample buffer")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("tempo: sample rate must be positive, got %d", sampleRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("tempo: channel count must be >= 1, got %d", channels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("tempo: sample count %d is not a multiple of %d channels", len(samples), channels)
	}
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("tempo: non-finite sample at index %d", i)
		}
	}

	return &AudioBuffer{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}

// Seconds returns the buffer duration
func (b *AudioBuffer) Seconds() float64 {
	return float64(len(b.Samples)) / float64(b.Channels) / float64(b.SampleRate)
}

// Segment is a local tempo estimate over one stretch of the track
type Segment struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	LocalBpm     float64 `json:"local_bpm"`
}

// Result is the final output of one analysis call. It is immutable once
// returned; the engine keeps no reference to it.
type Result struct {
	// Bpm is the dominant tempo estimate
	Bpm float64 `json:"bpm"`

	// Confidence in [0, 1]. Low-quality input still produces a result
	// with a low confidence rather than no result.
	Confidence float64 `json:"confidence"`

	// CandidateBpms lists considered tempos, best first. The half-tempo
	// relative of the winner is appended when its correlation peak
	// exists, even if it falls outside the configured search range.
	CandidateBpms []float64 `json:"candidate_bpms"`

	// Segments holds local tempo estimates when variations were requested
	Segments []Segment `json:"segments,omitempty"`

	// SampleRate and WindowSeconds describe the analyzed window
	SampleRate    int     `json:"sample_rate"`
	WindowSeconds float64 `json:"window_seconds"`
}
