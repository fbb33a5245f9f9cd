// Package render draws spectrograms and peak constellations as PNG images.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"github.com/eligwz/spectrogram"
	"gonum.org/v1/gonum/floats"

	"github.com/himanishpuri/landmark/internal/fingerprint"
	"github.com/himanishpuri/landmark/pkg/utils"
)

const (
	DefaultWidth  = 2048
	DefaultHeight = 512
)

var peakColor = color.RGBA{R: 255, G: 40, B: 40, A: 255}

// Spectrogram draws samples with a Hamming-windowed FFT, one frequency bin
// per image row, and writes the PNG to out.
func Spectrogram(samples []float64, sampleRate int, out string, width, height int) error {
	if len(samples) == 0 {
		return errors.New("no samples to render")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// rectangle=false selects the Hamming window, dft=false the FFT path,
	// mag=true plots magnitude on a linear scale.
	spectrogram.Drawfft(img, samples, uint32(sampleRate), uint32(height), false, false, true, false)

	if err := utils.MakeParentDir(out); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := spectrogram.SavePng(img, out); err != nil {
		return fmt.Errorf("saving spectrogram png: %w", err)
	}
	return nil
}

// ConstellationImage plots the spectrogram in gray, one pixel per cell with
// low frequencies at the bottom, and marks every peak in red.
func ConstellationImage(spec *fingerprint.Spectrogram, peaks []fingerprint.Peak) *image.RGBA {
	frames, bins := spec.Frames(), spec.Bins()
	img := image.NewRGBA(image.Rect(0, 0, frames, bins))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	if frames == 0 || bins == 0 {
		return img
	}

	row := make([]float64, bins)
	peak := 0.0
	for t := 0; t < frames; t++ {
		for f := range row {
			row[f] = math.Log1p(spec.At(t, f))
		}
		peak = math.Max(peak, floats.Max(row))
	}
	if peak == 0 {
		peak = 1
	}

	for t := 0; t < frames; t++ {
		for f := 0; f < bins; f++ {
			v := uint8(255 * math.Log1p(spec.At(t, f)) / peak)
			img.SetRGBA(t, bins-1-f, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	for _, p := range peaks {
		if p.Frame < frames && p.Bin < bins {
			img.SetRGBA(p.Frame, bins-1-p.Bin, peakColor)
		}
	}
	return img
}

// Constellation writes ConstellationImage to out as PNG.
func Constellation(spec *fingerprint.Spectrogram, peaks []fingerprint.Peak, out string) error {
	if err := utils.MakeParentDir(out); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating png: %w", err)
	}
	if err := png.Encode(f, ConstellationImage(spec, peaks)); err != nil {
		f.Close()
		return fmt.Errorf("encoding png: %w", err)
	}
	return f.Close()
}
