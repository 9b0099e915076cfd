package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tempest-dsp/tempograph/logging"
)

// Options control how a file is decoded for analysis
type Options struct {
	// StartSeconds skips into the file before decoding begins
	StartSeconds float64

	// DurationSeconds limits how much audio is decoded; 0 decodes to EOF
	DurationSeconds float64

	// SampleRate is the output rate. The decoder downmixes to mono and
	// resamples to this rate so the PCM can feed analysis directly.
	SampleRate int
}

// Config holds decoder-wide settings
type Config struct {
	// FFmpegPath overrides binary discovery when set
	FFmpegPath string

	// Timeout bounds a single decode invocation
	Timeout time.Duration
}

// DefaultConfig returns the default decoder configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}

// AudioData is decoded mono PCM ready for analysis
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
}

// Decoder converts audio files into mono float64 PCM. It shells out to
// ffmpeg when available and falls back to a pure-Go MP3 decoder otherwise,
// so MP3 analysis works on hosts without ffmpeg installed.
type Decoder struct {
	config *Config
	logger logging.Logger
}

// NewDecoder creates a decoder with the given config, or defaults when nil
func NewDecoder(config *Config) *Decoder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "transcode"}),
	}
}

// DecodeFile decodes an audio file to mono float64 PCM at opts.SampleRate
func (d *Decoder) DecodeFile(ctx context.Context, path string, opts Options) (*AudioData, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("transcode: sample rate must be positive, got %d", opts.SampleRate)
	}
	if opts.StartSeconds < 0 {
		return nil, fmt.Errorf("transcode: start offset must be >= 0, got %.3f", opts.StartSeconds)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("transcode: stat %s: %w", path, err)
	}

	ffmpegPath, err := d.findFFmpeg()
	if err != nil {
		if strings.EqualFold(filepath.Ext(path), ".mp3") {
			d.logger.Warn("ffmpeg not found, using built-in MP3 decoder", logging.Fields{"file": path})
			return decodeMP3File(path, opts)
		}
		return nil, fmt.Errorf("transcode: %w", err)
	}

	return d.decodeWithFFmpeg(ctx, ffmpegPath, path, opts)
}

// findFFmpeg resolves the ffmpeg binary: explicit config, then the
// FFMPEG_PATH and FFMPEG_BINARY environment variables, then PATH lookup.
func (d *Decoder) findFFmpeg() (string, error) {
	if d.config.FFmpegPath != "" {
		if _, err := os.Stat(d.config.FFmpegPath); err != nil {
			return "", fmt.Errorf("configured ffmpeg path %s: %w", d.config.FFmpegPath, err)
		}
		return d.config.FFmpegPath, nil
	}

	for _, env := range []string{"FFMPEG_PATH", "FFMPEG_BINARY"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return p, nil
}

func (d *Decoder) decodeWithFFmpeg(ctx context.Context, ffmpegPath, path string, opts Options) (*AudioData, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	args := buildFFmpegArgs(path, opts)

	d.logger.Debug("decoding with ffmpeg", logging.Fields{
		"file":        path,
		"sample_rate": opts.SampleRate,
		"start":       opts.StartSeconds,
		"duration":    opts.DurationSeconds,
	})

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("transcode: ffmpeg: %w", ctx.Err())
		}
		return nil, fmt.Errorf("transcode: ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	pcm, err := parsePCMF64LE(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("transcode: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("transcode: ffmpeg produced no audio from %s", path)
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: opts.SampleRate,
		Channels:   1,
		Duration:   time.Duration(float64(len(pcm)) / float64(opts.SampleRate) * float64(time.Second)),
	}, nil
}

// buildFFmpegArgs assembles the decode command: seek before the input for
// fast keyframe seeking, mono downmix, and raw float64 little-endian PCM
// on stdout.
func buildFFmpegArgs(path string, opts Options) []string {
	args := []string{"-v", "error", "-nostdin"}
	if opts.StartSeconds > 0 {
		args = append(args, "-ss", formatSeconds(opts.StartSeconds))
	}
	args = append(args, "-i", path)
	if opts.DurationSeconds > 0 {
		args = append(args, "-t", formatSeconds(opts.DurationSeconds))
	}
	args = append(args,
		"-ac", "1",
		"-ar", strconv.Itoa(opts.SampleRate),
		"-f", "f64le",
		"pipe:1",
	)
	return args
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// parsePCMF64LE decodes raw little-endian float64 PCM. Non-finite samples
// indicate a corrupt stream and are rejected.
func parsePCMF64LE(raw []byte) ([]float64, error) {
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("raw PCM length %d is not a multiple of 8", len(raw))
	}

	pcm := make([]float64, len(raw)/8)
	for i := range pcm {
		bits := binary.LittleEndian.Uint64(raw[i*8:])
		v := math.Float64frombits(bits)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite sample at index %d", i)
		}
		pcm[i] = v
	}
	return pcm, nil
}
