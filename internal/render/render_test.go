package render

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/landmark/internal/fingerprint"
)

func tone(n, sampleRate int, freq float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestConstellation(t *testing.T) {
	cfg := fingerprint.DefaultConfig()
	samples := tone(11025, 11025, 689.0625) // bin 64
	spec, err := fingerprint.BuildSpectrogram(samples, 11025, cfg)
	if err != nil {
		t.Fatalf("BuildSpectrogram failed: %v", err)
	}
	peaks := fingerprint.ExtractPeaks(spec, cfg)
	if len(peaks) == 0 {
		t.Fatal("Expected peaks from a pure tone")
	}

	img := ConstellationImage(spec, peaks)
	if img.Bounds().Dx() != spec.Frames() || img.Bounds().Dy() != spec.Bins() {
		t.Fatalf("Unexpected image size %v", img.Bounds())
	}
	p := peaks[0]
	if got := img.RGBAAt(p.Frame, spec.Bins()-1-p.Bin); got != peakColor {
		t.Errorf("Peak pixel = %v, expected %v", got, peakColor)
	}

	out := filepath.Join(t.TempDir(), "png", "constellation.png")
	if err := Constellation(spec, peaks, out); err != nil {
		t.Fatalf("Constellation failed: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Errorf("Output is not a PNG: %v", err)
	}
}

func TestSpectrogram(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spec.png")
	if err := Spectrogram(tone(22050, 11025, 440), 11025, out, 256, 128); err != nil {
		t.Fatalf("Spectrogram failed: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("Expected PNG at %s: %v", out, err)
	}
	if info.Size() == 0 {
		t.Error("PNG is empty")
	}
}

func TestSpectrogramEmpty(t *testing.T) {
	if err := Spectrogram(nil, 11025, filepath.Join(t.TempDir(), "x.png"), 0, 0); err == nil {
		t.Error("Expected error for empty input")
	}
}
