package fingerprint

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/himanishpuri/landmark/internal/model"
)

const testSampleRate = 11025

// melody synthesizes n samples of a few sine voices that change pitch every
// quarter second, plus a little noise. The same seed always yields the same
// buffer.
func melody(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	step := testSampleRate / 4
	freqs := make([]float64, 3)
	for start := 0; start < n; start += step {
		for v := range freqs {
			freqs[v] = 200 + rng.Float64()*3000
		}
		for i := start; i < start+step && i < n; i++ {
			tm := float64(i) / testSampleRate
			s := 0.0
			for _, f := range freqs {
				s += 0.25 * math.Sin(2*math.Pi*f*tm)
			}
			out[i] = s + 0.01*(rng.Float64()*2-1)
		}
	}
	return out
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		n, window, hop, expected int
	}{
		{1023, 1024, 512, 0},
		{1024, 1024, 512, 1},
		{1535, 1024, 512, 1},
		{1536, 1024, 512, 2},
		{10000, 1024, 512, 18},
		{4096, 1024, 1024, 4},
	}

	for _, tt := range tests {
		if got := FrameCount(tt.n, tt.window, tt.hop); got != tt.expected {
			t.Errorf("FrameCount(%d, %d, %d) = %d, expected %d", tt.n, tt.window, tt.hop, got, tt.expected)
		}
	}
}

func TestBuildSpectrogramDimensions(t *testing.T) {
	cfg := DefaultConfig()
	samples := melody(10000, 1)

	spec, err := BuildSpectrogram(samples, testSampleRate, cfg)
	if err != nil {
		t.Fatalf("BuildSpectrogram failed: %v", err)
	}

	if spec.Frames() != 18 {
		t.Errorf("Expected 18 frames (partial frame dropped), got %d", spec.Frames())
	}
	if spec.Bins() != cfg.WindowSize/2+1 {
		t.Errorf("Expected %d bins, got %d", cfg.WindowSize/2+1, spec.Bins())
	}

	for ti := 0; ti < spec.Frames(); ti++ {
		for f := 0; f < spec.Bins(); f++ {
			if v := spec.At(ti, f); v < 0 || math.IsNaN(v) {
				t.Fatalf("Cell (%d,%d) has invalid magnitude %f", ti, f, v)
			}
		}
	}
}

func TestBuildSpectrogramInsufficientSamples(t *testing.T) {
	cfg := DefaultConfig()

	_, err := BuildSpectrogram(make([]float64, cfg.WindowSize-1), testSampleRate, cfg)
	if err == nil {
		t.Fatal("Expected error with samples shorter than window")
	}
	if !errors.Is(err, model.ErrInsufficientSamples) {
		t.Errorf("Expected ErrInsufficientSamples, got %v", err)
	}
	if !model.IsInputError(err) {
		t.Errorf("Expected InputError, got %T", err)
	}
}

func TestBuildSpectrogramInvalidInput(t *testing.T) {
	samples := make([]float64, 4096)

	cfg := DefaultConfig()
	cfg.WindowSize = 1000
	if _, err := BuildSpectrogram(samples, testSampleRate, cfg); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for non power of two window, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.HopSize = 0
	if _, err := BuildSpectrogram(samples, testSampleRate, cfg); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for zero hop, got %v", err)
	}

	if _, err := BuildSpectrogram(samples, 0, DefaultConfig()); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for zero sample rate, got %v", err)
	}
}

func TestBuildSpectrogramSineLandsInBin(t *testing.T) {
	cfg := DefaultConfig()
	const bin = 64
	freq := float64(bin) * testSampleRate / float64(cfg.WindowSize)

	samples := make([]float64, testSampleRate)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}

	spec, err := BuildSpectrogram(samples, testSampleRate, cfg)
	if err != nil {
		t.Fatalf("BuildSpectrogram failed: %v", err)
	}

	for ti := 0; ti < spec.Frames(); ti++ {
		best := 0
		for f := 1; f < spec.Bins(); f++ {
			if spec.At(ti, f) > spec.At(ti, best) {
				best = f
			}
		}
		if best != bin {
			t.Errorf("Frame %d: expected strongest bin %d, got %d", ti, bin, best)
		}
	}

	if got := spec.BinFrequency(bin); math.Abs(got-freq) > 1e-9 {
		t.Errorf("BinFrequency(%d) = %f, expected %f", bin, got, freq)
	}
}

func TestBuildSpectrogramParallelIsDeterministic(t *testing.T) {
	samples := melody(3*testSampleRate, 7)

	cfg := DefaultConfig()
	serial, err := BuildSpectrogram(samples, testSampleRate, cfg)
	if err != nil {
		t.Fatalf("serial build failed: %v", err)
	}

	cfg.Workers = 4
	parallel, err := BuildSpectrogram(samples, testSampleRate, cfg)
	if err != nil {
		t.Fatalf("parallel build failed: %v", err)
	}

	if serial.Frames() != parallel.Frames() {
		t.Fatalf("Frame count differs: %d vs %d", serial.Frames(), parallel.Frames())
	}
	for ti := 0; ti < serial.Frames(); ti++ {
		for f := 0; f < serial.Bins(); f++ {
			if serial.At(ti, f) != parallel.At(ti, f) {
				t.Fatalf("Cell (%d,%d) differs: %v vs %v", ti, f, serial.At(ti, f), parallel.At(ti, f))
			}
		}
	}
}

func TestBackendsAgree(t *testing.T) {
	samples := melody(testSampleRate, 3)

	cfg := DefaultConfig()
	dsp, err := BuildSpectrogram(samples, testSampleRate, cfg)
	if err != nil {
		t.Fatalf("go-dsp build failed: %v", err)
	}

	cfg.Backend = BackendGonum
	gon, err := BuildSpectrogram(samples, testSampleRate, cfg)
	if err != nil {
		t.Fatalf("gonum build failed: %v", err)
	}

	for ti := 0; ti < dsp.Frames(); ti++ {
		for f := 0; f < dsp.Bins(); f++ {
			a, b := dsp.At(ti, f), gon.At(ti, f)
			if math.Abs(a-b) > 1e-6*math.Max(1, math.Abs(a)) {
				t.Fatalf("Cell (%d,%d): go-dsp %f, gonum %f", ti, f, a, b)
			}
		}
	}
}

func TestLogMagnitudeIsNonNegative(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogMagnitude = true

	spec, err := BuildSpectrogram(melody(testSampleRate, 5), testSampleRate, cfg)
	if err != nil {
		t.Fatalf("BuildSpectrogram failed: %v", err)
	}
	for ti := 0; ti < spec.Frames(); ti++ {
		for f := 0; f < spec.Bins(); f++ {
			if spec.At(ti, f) < 0 {
				t.Fatalf("Negative log magnitude at (%d,%d)", ti, f)
			}
		}
	}
}

func TestFrameTimeMs(t *testing.T) {
	spec := &Spectrogram{sampleRate: 11025, windowSize: 1024, hopSize: 512}

	tests := []struct {
		frame    int
		expected uint32
	}{
		{0, 0},
		{1, 46},   // 46.44ms
		{10, 464}, // 464.39ms
		{100, 4644},
	}
	for _, tt := range tests {
		if got := spec.FrameTimeMs(tt.frame); got != tt.expected {
			t.Errorf("FrameTimeMs(%d) = %d, expected %d", tt.frame, got, tt.expected)
		}
	}
}

func TestTaper(t *testing.T) {
	for _, name := range []string{WindowHann, WindowHamming} {
		w := taper(name, 1024)
		if len(w) != 1024 {
			t.Fatalf("%s: expected 1024 coefficients, got %d", name, len(w))
		}
		for i, v := range w {
			if v < 0 || v > 1 {
				t.Errorf("%s: coefficient %d out of range [0,1]: %f", name, i, v)
			}
		}
		if w[0] >= w[512] {
			t.Errorf("%s window should be lower at edges", name)
		}
	}

	for i, v := range taper(WindowRectangular, 64) {
		if v != 1 {
			t.Errorf("rectangular coefficient %d = %f, expected 1", i, v)
		}
	}
}
