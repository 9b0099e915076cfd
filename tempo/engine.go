package tempo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/tempest-dsp/tempograph/algorithms/filters"
	"github.com/tempest-dsp/tempograph/algorithms/spectral"
	"github.com/tempest-dsp/tempograph/algorithms/temporal"
	"github.com/tempest-dsp/tempograph/logging"
)

// Analyzer is the tempo estimation engine. It is stateless between calls:
// all configuration travels with the call, so one Analyzer may be shared
// across worker goroutines for batch analysis.
type Analyzer struct {
	logger      logging.Logger
	resampler   *filters.Resampler
	hpss        *spectral.HPSS
	envelope    *temporal.OnsetEnvelopeBuilder
	periodicity *temporal.Periodicity
}

// NewAnalyzer creates a new tempo analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		logger:      logging.WithFields(logging.Fields{"component": "tempo_analyzer"}),
		resampler:   filters.NewResampler(),
		hpss:        spectral.NewHPSS(),
		envelope:    temporal.NewOnsetEnvelopeBuilder(),
		periodicity: temporal.NewPeriodicity(),
	}
}

// Analyze estimates the dominant tempo of the buffer. The pipeline runs
// prepare -> HPSS (optional) -> onset envelope -> periodicity + beat
// tracking -> resolve, with cancellation checked between stages.
func (a *Analyzer) Analyze(ctx context.Context, buffer *AudioBuffer, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if buffer == nil || len(buffer.Samples) == 0 {
		return nil, &RangeError{Field: "buffer", Msg: "empty audio buffer"}
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	signal, err := a.prepare(buffer, config)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("signal prepared", logging.Fields{
		"samples":     len(signal),
		"sample_rate": config.SampleRate,
		"use_hpss":    config.UseHPSS,
	})

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	if config.UseHPSS {
		percussive, err := a.hpss.SeparatePercussive(signal, config.SampleRate)
		if err != nil {
			if errors.Is(err, spectral.ErrShortSignal) {
				return nil, fmt.Errorf("%w: %v", ErrInsufficientSignal, err)
			}
			return nil, fmt.Errorf("tempo: percussive separation: %w", err)
		}
		signal = percussive
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	envelope, err := a.envelope.Build(signal, config.SampleRate, config.HopLength)
	if err != nil {
		if errors.Is(err, temporal.ErrShortSignal) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientSignal, err)
		}
		return nil, fmt.Errorf("tempo: onset envelope: %w", err)
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	result, err := a.resolve(envelope, config)
	if err != nil {
		return nil, err
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	if config.WantVariations {
		result.Segments = a.analyzeSegments(envelope, config)
	}

	a.logger.Debug("analysis complete", logging.Fields{
		"bpm":        result.Bpm,
		"confidence": result.Confidence,
		"candidates": len(result.CandidateBpms),
	})

	return result, nil
}

// prepare collapses to mono, applies the offset/duration slice at the
// source rate, and resamples to the analysis rate.
func (a *Analyzer) prepare(buffer *AudioBuffer, config *Config) ([]float64, error) {
	mono := mixdownMono(buffer)
	rate := buffer.SampleRate

	offset := int(math.Round(config.StartOffsetSeconds * float64(rate)))
	if offset >= len(mono) {
		return nil, &RangeError{
			Field: "start_offset_seconds",
			Msg: fmt.Sprintf("offset %.2fs is beyond signal duration %.2fs",
				config.StartOffsetSeconds, float64(len(mono))/float64(rate)),
		}
	}
	mono = mono[offset:]

	windowSeconds := config.DurationSeconds
	if windowSeconds <= 0 {
		windowSeconds = config.MaxWindowSeconds
	}
	maxSamples := int(math.Round(windowSeconds * float64(rate)))
	if maxSamples > 0 && maxSamples < len(mono) {
		mono = mono[:maxSamples]
	}

	if rate == config.SampleRate {
		out := make([]float64, len(mono))
		copy(out, mono)
		return out, nil
	}

	resampled, err := a.resampler.Resample(mono, rate, config.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("tempo: resample %d -> %d: %w", rate, config.SampleRate, err)
	}
	return resampled, nil
}

// mixdownMono averages interleaved channels into a single channel
func mixdownMono(buffer *AudioBuffer) []float64 {
	if buffer.Channels == 1 {
		return buffer.Samples
	}

	frames := len(buffer.Samples) / buffer.Channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		base := i * buffer.Channels
		for c := 0; c < buffer.Channels; c++ {
			sum += buffer.Samples[base+c]
		}
		mono[i] = sum / float64(buffer.Channels)
	}
	return mono
}
