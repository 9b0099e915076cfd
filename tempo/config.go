package tempo

// Supported absolute BPM bounds for the search range
const (
	MinSupportedBpm = 20.0
	MaxSupportedBpm = 400.0
)

// Config is the immutable per-call analysis configuration. There are no
// engine-wide defaults beyond DefaultConfig: every Analyze call carries its
// own configuration, which keeps concurrent batch analysis safe.
type Config struct {
	// SampleRate is the analysis rate; input at a different rate is
	// resampled during preparation.
	SampleRate int `json:"sample_rate"`

	// HopLength is the envelope resolution in samples per hop
	HopLength int `json:"hop_length"`

	// MinBpm and MaxBpm bound the tempo search range
	MinBpm float64 `json:"min_bpm"`
	MaxBpm float64 `json:"max_bpm"`

	// StartOffsetSeconds skips into the signal before analysis
	StartOffsetSeconds float64 `json:"start_offset_seconds"`

	// DurationSeconds limits the analysis window; 0 means the full
	// signal capped at MaxWindowSeconds.
	DurationSeconds float64 `json:"duration_seconds"`

	// MaxWindowSeconds caps the analysis window when no duration is
	// given, bounding cost on very long files.
	MaxWindowSeconds float64 `json:"max_window_seconds"`

	// UseHPSS routes the signal through harmonic/percussive separation
	// before onset analysis. Disabling trades accuracy for speed.
	UseHPSS bool `json:"use_hpss"`

	// UseSnap rounds the resolved BPM to the canonical grid
	UseSnap bool `json:"use_snap"`

	// WantVariations adds per-segment local tempo estimates to the result
	WantVariations bool `json:"want_variations"`

	// SnapStep is the canonical grid step; SnapTolerance is the maximum
	// distance a raw BPM may be moved when snapping. Half-grid snapping
	// uses 0.3x the tolerance. Both are empirically tuned, so they are
	// configuration rather than constants.
	SnapStep      float64 `json:"snap_step"`
	SnapTolerance float64 `json:"snap_tolerance"`

	// Tightness is the beat tracker's penalty weight on tempo deviation
	Tightness float64 `json:"tightness"`

	// TopCandidates is how many periodicity candidates get a
	// beat-tracking validation pass.
	TopCandidates int `json:"top_candidates"`

	// SegmentWindowSeconds is the sliding-window length for variation
	// reporting; windows overlap by half.
	SegmentWindowSeconds float64 `json:"segment_window_seconds"`

	// SegmentMergeTolerance merges adjacent segments whose local BPMs
	// differ by no more than this.
	SegmentMergeTolerance float64 `json:"segment_merge_tolerance"`
}

// DefaultConfig returns the default analysis configuration
func DefaultConfig() *Config {
	return &Config{
		SampleRate:            22050,
		HopLength:             96,
		MinBpm:                60.0,
		MaxBpm:                200.0,
		StartOffsetSeconds:    0.0,
		DurationSeconds:       0.0,
		MaxWindowSeconds:      60.0,
		UseHPSS:               true,
		UseSnap:               true,
		WantVariations:        false,
		SnapStep:              1.0,
		SnapTolerance:         0.5,
		Tightness:             400.0,
		TopCandidates:         4,
		SegmentWindowSeconds:  10.0,
		SegmentMergeTolerance: 0.75,
	}
}

// Validate checks configuration invariants. All violations are RangeErrors
// and are rejected before any signal processing starts.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return &RangeError{Field: "sample_rate", Msg: "must be positive"}
	}
	if c.HopLength < 1 {
		return &RangeError{Field: "hop_length", Msg: "must be >= 1"}
	}
	if c.MinBpm < MinSupportedBpm || c.MinBpm > MaxSupportedBpm {
		return &RangeError{Field: "min_bpm", Msg: "outside supported range"}
	}
	if c.MaxBpm < MinSupportedBpm || c.MaxBpm > MaxSupportedBpm {
		return &RangeError{Field: "max_bpm", Msg: "outside supported range"}
	}
	if c.MinBpm >= c.MaxBpm {
		return &RangeError{Field: "min_bpm", Msg: "must be less than max_bpm"}
	}
	if c.StartOffsetSeconds < 0 {
		return &RangeError{Field: "start_offset_seconds", Msg: "must be >= 0"}
	}
	if c.DurationSeconds < 0 {
		return &RangeError{Field: "duration_seconds", Msg: "must be >= 0"}
	}
	if c.MaxWindowSeconds <= 0 {
		return &RangeError{Field: "max_window_seconds", Msg: "must be positive"}
	}
	if c.SnapStep <= 0 {
		return &RangeError{Field: "snap_step", Msg: "must be positive"}
	}
	if c.SnapTolerance < 0 {
		return &RangeError{Field: "snap_tolerance", Msg: "must be >= 0"}
	}
	if c.TopCandidates < 1 {
		return &RangeError{Field: "top_candidates", Msg: "must be >= 1"}
	}
	if c.SegmentWindowSeconds <= 0 {
		return &RangeError{Field: "segment_window_seconds", Msg: "must be positive"}
	}
	return nil
}
