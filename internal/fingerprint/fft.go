package fingerprint

import (
	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// transformer computes the non-negative frequency half of a real FFT:
// n/2+1 coefficients for an n-sample frame.
type transformer interface {
	transform(frame []float64) []complex128
}

func newTransformer(backend string, n int) transformer {
	if backend == BackendGonum {
		return &gonumTransformer{plan: fourier.NewFFT(n), dst: make([]complex128, n/2+1)}
	}
	return goDSPTransformer{half: n/2 + 1}
}

type goDSPTransformer struct {
	half int
}

func (t goDSPTransformer) transform(frame []float64) []complex128 {
	return fft.FFTReal(frame)[:t.half]
}

// gonumTransformer reuses one plan and output buffer; it is not safe for
// concurrent use, so every spectrogram worker builds its own.
type gonumTransformer struct {
	plan *fourier.FFT
	dst  []complex128
}

func (t *gonumTransformer) transform(frame []float64) []complex128 {
	return t.plan.Coefficients(t.dst, frame)
}
