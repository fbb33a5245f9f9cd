package fingerprint

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/window"

	"github.com/himanishpuri/landmark/internal/model"
)

// Spectrogram is a time-major magnitude grid: one row per frame, one column
// per frequency bin from DC up to and including Nyquist. It is immutable once
// built.
type Spectrogram struct {
	values     [][]float64
	bins       int
	sampleRate int
	windowSize int
	hopSize    int
}

func (s *Spectrogram) Frames() int { return len(s.values) }
func (s *Spectrogram) Bins() int   { return s.bins }

func (s *Spectrogram) SampleRate() int { return s.sampleRate }
func (s *Spectrogram) WindowSize() int { return s.windowSize }
func (s *Spectrogram) HopSize() int    { return s.hopSize }

// At returns the magnitude at frame t, bin f.
func (s *Spectrogram) At(t, f int) float64 { return s.values[t][f] }

// FrameTimeMs converts a frame index to milliseconds from the start of the
// buffer, rounded to the nearest millisecond.
func (s *Spectrogram) FrameTimeMs(t int) uint32 {
	num := int64(t) * int64(s.hopSize) * 1000
	sr := int64(s.sampleRate)
	return uint32((num + sr/2) / sr)
}

// BinFrequency returns the centre frequency of bin f in Hz.
func (s *Spectrogram) BinFrequency(f int) float64 {
	return float64(f) * float64(s.sampleRate) / float64(s.windowSize)
}

// FrameCount returns how many full frames fit in n samples. The trailing
// partial frame is dropped, so the count only depends on n, window and hop.
func FrameCount(n, windowSize, hopSize int) int {
	if n < windowSize {
		return 0
	}
	return (n-windowSize)/hopSize + 1
}

// taper returns the window coefficients for the configured function.
func taper(name string, n int) []float64 {
	switch name {
	case WindowHamming:
		return window.Hamming(n)
	case WindowRectangular:
		return window.Rectangular(n)
	default:
		return window.Hann(n)
	}
}

// BuildSpectrogram runs a short-time Fourier transform over samples.
func BuildSpectrogram(samples []float64, sampleRate int, cfg Config) (*Spectrogram, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", model.ErrInvalidConfig, sampleRate)
	}
	if len(samples) < cfg.WindowSize {
		return nil, &model.InputError{
			Op:  "spectrogram",
			Err: fmt.Errorf("%w: have %d, need %d", model.ErrInsufficientSamples, len(samples), cfg.WindowSize),
		}
	}

	nFrames := FrameCount(len(samples), cfg.WindowSize, cfg.HopSize)
	nBins := cfg.NumBins()
	win := taper(cfg.Window, cfg.WindowSize)

	values := make([][]float64, nFrames)

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > nFrames {
		workers = nFrames
	}

	// Each worker owns a contiguous range of frames and its own transform
	// scratch, so rows are written without coordination.
	var wg sync.WaitGroup
	chunk := (nFrames + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, nFrames)
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			tr := newTransformer(cfg.Backend, cfg.WindowSize)
			frame := make([]float64, cfg.WindowSize)
			for t := lo; t < hi; t++ {
				start := t * cfg.HopSize
				for i := 0; i < cfg.WindowSize; i++ {
					frame[i] = samples[start+i] * win[i]
				}
				coeffs := tr.transform(frame)
				row := make([]float64, nBins)
				for f := 0; f < nBins; f++ {
					mag := cmplx.Abs(coeffs[f])
					if cfg.LogMagnitude {
						mag = math.Log1p(mag)
					}
					row[f] = mag
				}
				values[t] = row
			}
		}(lo, hi)
	}
	wg.Wait()

	return &Spectrogram{
		values:     values,
		bins:       nBins,
		sampleRate: sampleRate,
		windowSize: cfg.WindowSize,
		hopSize:    cfg.HopSize,
	}, nil
}
