package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"
)

// STFT provides Short-Time Fourier Transform analysis and overlap-add
// resynthesis. Frames are processed in parallel; results are deterministic
// because every worker writes only its own frame rows.
type STFT struct {
	fft *FFT
}

// STFTResult holds the result of STFT analysis
type STFTResult struct {
	Magnitude      [][]float64    `json:"magnitude"`       // Time x Frequency magnitude matrix
	Phase          [][]float64    `json:"phase"`           // Time x Frequency phase matrix
	Complex        [][]complex128 `json:"-"`               // Raw complex spectrogram (not serialized)
	TimeFrames     int            `json:"time_frames"`     // Number of time frames
	FreqBins       int            `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int            `json:"sample_rate"`     // Sample rate
	WindowSize     int            `json:"window_size"`     // FFT window size
	HopSize        int            `json:"hop_size"`        // Hop size between frames
	FreqResolution float64        `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64        `json:"time_resolution"` // Time resolution (seconds/frame)
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
	Coefficients() []float64
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// Compute computes the STFT of a signal with the given window
func (s *STFT) Compute(signal []float64, windowSize, hopSize, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	// Positive frequencies only
	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	phase := make([][]float64, numFrames)
	complexSpectrum := make([][]complex128, numFrames)

	for i := 0; i < numFrames; i++ {
		magnitude[i] = make([]float64, freqBins)
		phase[i] = make([]float64, freqBins)
		complexSpectrum[i] = make([]complex128, freqBins)
	}

	numWorkers := s.optimalWorkerCount(numFrames)

	type frameJob struct {
		frameIdx int
		startIdx int
	}

	jobs := make(chan frameJob, numFrames)

	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, windowSize)

			for job := range jobs {
				copy(frameBuffer, signal[job.startIdx:job.startIdx+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						continue
					}
				}

				fftResult := s.fft.Compute(frameBuffer)

				for i := 0; i < freqBins; i++ {
					complexSpectrum[job.frameIdx][i] = fftResult[i]
					magnitude[job.frameIdx][i] = cmplx.Abs(fftResult[i])
					phase[job.frameIdx][i] = cmplx.Phase(fftResult[i])
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
			startIdx := frameIdx * hopSize
			if startIdx+windowSize <= len(signal) {
				jobs <- frameJob{frameIdx: frameIdx, startIdx: startIdx}
			}
		}
	}()

	wg.Wait()

	result := &STFTResult{
		Magnitude:      magnitude,
		Phase:          phase,
		Complex:        complexSpectrum,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}

	return result, nil
}

// Inverse reconstructs a time-domain signal from a half-spectrum complex
// spectrogram by windowed overlap-add. outputLen trims or zero-pads the
// result to the original signal length; pass 0 to keep the natural length.
func (s *STFT) Inverse(spectrum [][]complex128, windowSize, hopSize int, window Window, outputLen int) ([]float64, error) {
	if len(spectrum) == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}

	if windowSize <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("window size and hop size must be positive")
	}

	freqBins := windowSize/2 + 1
	if len(spectrum[0]) != freqBins {
		return nil, fmt.Errorf("spectrogram has %d bins, expected %d for window size %d", len(spectrum[0]), freqBins, windowSize)
	}

	numFrames := len(spectrum)
	naturalLen := (numFrames-1)*hopSize + windowSize

	output := make([]float64, naturalLen)
	windowSum := make([]float64, naturalLen)

	var coeffs []float64
	if window != nil {
		coeffs = window.Coefficients()
	} else {
		coeffs = make([]float64, windowSize)
		for i := range coeffs {
			coeffs[i] = 1.0
		}
	}

	fullSpectrum := make([]complex128, windowSize)
	for f := 0; f < numFrames; f++ {
		// Rebuild the full conjugate-symmetric spectrum from positive bins
		for k := 0; k < freqBins; k++ {
			fullSpectrum[k] = spectrum[f][k]
		}
		for k := freqBins; k < windowSize; k++ {
			fullSpectrum[k] = cmplx.Conj(spectrum[f][windowSize-k])
		}

		frame := s.fft.ComputeInverseReal(fullSpectrum)

		offset := f * hopSize
		for i := 0; i < windowSize; i++ {
			output[offset+i] += frame[i] * coeffs[i]
			windowSum[offset+i] += coeffs[i] * coeffs[i]
		}
	}

	// Compensate the squared analysis/synthesis window overlap
	for i := range output {
		if windowSum[i] > 1e-10 {
			output[i] /= windowSum[i]
		}
	}

	if outputLen <= 0 || outputLen == naturalLen {
		return output, nil
	}
	if outputLen < naturalLen {
		return output[:outputLen], nil
	}

	padded := make([]float64, outputLen)
	copy(padded, output)
	return padded, nil
}

// optimalWorkerCount determines the number of workers based on workload
func (s *STFT) optimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
