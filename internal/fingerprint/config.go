package fingerprint

import (
	"fmt"

	"github.com/himanishpuri/landmark/internal/model"
)

// Window function names accepted by Config.Window.
const (
	WindowHann        = "hann"
	WindowHamming     = "hamming"
	WindowRectangular = "rectangular"
)

// FFT backends accepted by Config.Backend.
const (
	BackendGoDSP = "go-dsp"
	BackendGonum = "gonum"
)

// Config controls every tunable in the spectrogram, peak extraction and
// fingerprint generation stages. The same Config must be used for adding and
// matching, otherwise hashes will not line up.
type Config struct {
	// Spectrogram
	WindowSize   int    // FFT size in samples, power of two
	HopSize      int    // samples between successive frames
	Window       string // taper applied before the transform
	LogMagnitude bool   // store log1p(|X|) instead of |X|
	Backend      string // FFT implementation
	Workers      int    // goroutines used to transform frames, <=1 runs inline

	// Peaks
	TimeRadius        int     // +/- frames in the max-filter neighborhood
	FreqRadius        int     // +/- bins in the max-filter neighborhood
	MinMagnitude      float64 // absolute floor for a peak, must be positive
	AdaptiveThreshold float64 // if > 0, floor is also mean + k*stddev of the grid
	MaxFreqBin        int     // bins above this are ignored, 0 keeps all

	// Hashes
	FanOut         int // targets paired with each anchor
	MinDeltaFrames int
	MaxDeltaFrames int
	MinFreqDelta   int // targets closer than this many bins to the anchor are skipped
	MaxFreqDelta   int // target zone height in bins, 0 is unbounded
	FreqBits       int
	DeltaBits      int
}

// DefaultConfig returns parameters tuned for music at 8-22 kHz sample rates.
//
// Peaks are picked per frame (TimeRadius 0). A held note then yields the same
// bins in every frame it covers, so a query cut at any sample lines up with the
// stored frames to within one hop. The adaptive floor keeps broadband noise
// out of the constellation.
func DefaultConfig() Config {
	return Config{
		WindowSize:   1024,
		HopSize:      512,
		Window:       WindowHann,
		LogMagnitude: false,
		Backend:      BackendGoDSP,
		Workers:      1,

		TimeRadius:        0,
		FreqRadius:        12,
		MinMagnitude:      0.5,
		AdaptiveThreshold: 1,

		FanOut:         5,
		MinDeltaFrames: 1,
		MinFreqDelta:   1,
		MaxDeltaFrames: 64,
		FreqBits:       10,
		DeltaBits:      12,
	}
}

// NumBins is the number of frequency bins per frame, DC through Nyquist.
func (c Config) NumBins() int {
	return c.WindowSize/2 + 1
}

// Validate checks the invariants the pipeline relies on.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", model.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.WindowSize < 2 || c.WindowSize&(c.WindowSize-1) != 0 {
		return invalid("window size %d is not a power of two", c.WindowSize)
	}
	if c.HopSize <= 0 || c.HopSize > c.WindowSize {
		return invalid("hop size %d must be in (0, %d]", c.HopSize, c.WindowSize)
	}
	switch c.Window {
	case WindowHann, WindowHamming, WindowRectangular:
	default:
		return invalid("unknown window %q", c.Window)
	}
	switch c.Backend {
	case BackendGoDSP, BackendGonum:
	default:
		return invalid("unknown fft backend %q", c.Backend)
	}
	if c.TimeRadius < 0 || c.FreqRadius < 0 {
		return invalid("neighborhood radii must be non-negative")
	}
	if c.MinMagnitude <= 0 {
		return invalid("min magnitude %g must be positive", c.MinMagnitude)
	}
	if c.AdaptiveThreshold < 0 {
		return invalid("adaptive threshold must be non-negative")
	}
	if c.MaxFreqBin < 0 {
		return invalid("max freq bin must be non-negative")
	}
	if c.FanOut <= 0 {
		return invalid("fan-out must be positive")
	}
	if c.MinDeltaFrames < 0 || c.MaxDeltaFrames < c.MinDeltaFrames {
		return invalid("delta bounds [%d, %d] are inverted", c.MinDeltaFrames, c.MaxDeltaFrames)
	}
	if c.MinFreqDelta < 0 || c.MaxFreqDelta < 0 {
		return invalid("freq deltas must be non-negative")
	}
	if c.MaxFreqDelta > 0 && c.MinFreqDelta > c.MaxFreqDelta {
		return invalid("freq delta bounds [%d, %d] are inverted", c.MinFreqDelta, c.MaxFreqDelta)
	}
	if c.FreqBits <= 0 || c.DeltaBits <= 0 || 2*c.FreqBits+c.DeltaBits > 32 {
		return invalid("bit layout %d/%d/%d does not fit 32 bits", c.FreqBits, c.FreqBits, c.DeltaBits)
	}
	if c.MaxDeltaFrames >= 1<<c.DeltaBits {
		return invalid("max delta %d does not fit in %d bits", c.MaxDeltaFrames, c.DeltaBits)
	}
	return nil
}
