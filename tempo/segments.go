package tempo

// analyzeSegments slides a half-overlapping window over the onset envelope
// and estimates a local tempo per window. Windows with no detectable
// periodicity are skipped rather than reported as zero.
func (a *Analyzer) analyzeSegments(envelope []float64, config *Config) []Segment {
	frameDuration := float64(config.HopLength) / float64(config.SampleRate)

	winFrames := int(config.SegmentWindowSeconds/frameDuration + 0.5)
	if winFrames < 2 {
		winFrames = 2
	}
	if winFrames > len(envelope) {
		winFrames = len(envelope)
	}
	hopFrames := winFrames / 2
	if hopFrames < 1 {
		hopFrames = 1
	}

	var segments []Segment
	for start := 0; start+winFrames <= len(envelope); start += hopFrames {
		window := envelope[start : start+winFrames]

		candidates, err := a.periodicity.Candidates(window, config.SampleRate, config.HopLength, config.MinBpm, config.MaxBpm)
		if err != nil || len(candidates) == 0 {
			continue
		}

		bpm := candidates[0].Bpm
		if config.UseSnap {
			bpm = snapValue(bpm, config.SnapStep, config.SnapTolerance)
		}

		segments = append(segments, Segment{
			StartSeconds: float64(start) * frameDuration,
			EndSeconds:   float64(start+winFrames) * frameDuration,
			LocalBpm:     bpm,
		})
	}

	return mergeSimilarSegments(segments, config.SegmentMergeTolerance)
}

// mergeSimilarSegments coalesces adjacent segments whose local tempos agree
// within the tolerance, duration-weighting the merged BPM so a long stable
// stretch dominates a short transitional window.
func mergeSimilarSegments(segments []Segment, tolerance float64) []Segment {
	if len(segments) < 2 {
		return segments
	}

	merged := []Segment{segments[0]}
	for _, seg := range segments[1:] {
		last := &merged[len(merged)-1]
		diff := seg.LocalBpm - last.LocalBpm
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			lastDur := last.EndSeconds - last.StartSeconds
			segDur := seg.EndSeconds - seg.StartSeconds
			total := lastDur + segDur
			if total > 0 {
				last.LocalBpm = (last.LocalBpm*lastDur + seg.LocalBpm*segDur) / total
			}
			last.EndSeconds = seg.EndSeconds
			continue
		}
		merged = append(merged, seg)
	}

	return merged
}
