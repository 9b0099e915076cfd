package transcode

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/tempest-dsp/tempograph/algorithms/filters"
)

// decodeMP3File decodes an MP3 without ffmpeg. go-mp3 always emits 16-bit
// stereo frames at the file's native rate, so the slice and downmix happen
// at that rate before resampling to the requested output rate.
func decodeMP3File(path string, opts Options) (*AudioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcode: open %s: %w", path, err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("transcode: mp3 decode %s: %w", path, err)
	}
	nativeRate := dec.SampleRate()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("transcode: mp3 read %s: %w", path, err)
	}

	mono := stereoInt16ToMono(raw)
	if len(mono) == 0 {
		return nil, fmt.Errorf("transcode: mp3 produced no audio from %s", path)
	}

	start := int(math.Round(opts.StartSeconds * float64(nativeRate)))
	if start >= len(mono) {
		return nil, fmt.Errorf("transcode: start offset %.2fs is beyond mp3 duration %.2fs",
			opts.StartSeconds, float64(len(mono))/float64(nativeRate))
	}
	mono = mono[start:]

	if opts.DurationSeconds > 0 {
		limit := int(math.Round(opts.DurationSeconds * float64(nativeRate)))
		if limit < len(mono) {
			mono = mono[:limit]
		}
	}

	pcm := mono
	if nativeRate != opts.SampleRate {
		resampler := filters.NewResampler()
		pcm, err = resampler.Resample(mono, nativeRate, opts.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("transcode: resample %d -> %d: %w", nativeRate, opts.SampleRate, err)
		}
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: opts.SampleRate,
		Channels:   1,
		Duration:   time.Duration(float64(len(pcm)) / float64(opts.SampleRate) * float64(time.Second)),
	}, nil
}

// stereoInt16ToMono converts go-mp3's interleaved 16-bit LE stereo output
// to mono float64 in [-1, 1].
func stereoInt16ToMono(raw []byte) []float64 {
	frames := len(raw) / 4
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		base := i * 4
		left := int16(uint16(raw[base]) | uint16(raw[base+1])<<8)
		right := int16(uint16(raw[base+2]) | uint16(raw[base+3])<<8)
		mono[i] = (float64(left) + float64(right)) / 2.0 / 32768.0
	}
	return mono
}
