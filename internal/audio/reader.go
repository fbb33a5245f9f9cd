// Package audio turns WAV files into mono float samples for the fingerprint
// pipeline.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/landmark/internal/model"
)

// Downmix averages every channel into one. Any other non-negative value of
// Options.Channel picks that channel instead.
const Downmix = -1

const pcmFormat = 1

var (
	ErrNotWAV             = errors.New("not a WAV/RIFF file")
	ErrUnsupportedFormat  = errors.New("unsupported WAV audio format: only integer PCM supported")
	ErrUnsupportedLayout  = errors.New("unsupported channel layout: only mono/stereo supported")
	ErrUnsupportedBitRate = errors.New("unsupported bits per sample")
	ErrEmpty              = errors.New("no audio samples")
)

// Buffer holds mono samples normalized to [-1, 1].
type Buffer struct {
	Samples    []float64
	SampleRate int
	Channels   int // channel count of the source
	BitDepth   int
}

func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

func (b *Buffer) DurationMs() int {
	return int(b.Duration() / time.Millisecond)
}

type Options struct {
	Channel int
}

func DefaultOptions() Options {
	return Options{Channel: Downmix}
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string, opts Options) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.InputError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	buf, err := Decode(f, opts)
	if err != nil {
		var ie *model.InputError
		if errors.As(err, &ie) && ie.Path == "" {
			ie.Path = path
		}
		return nil, err
	}
	return buf, nil
}

// Decode reads a PCM WAV stream of 8, 16, 24 or 32 bits with one or two
// channels. Failures are reported as *model.InputError.
func Decode(r io.ReadSeeker, opts Options) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, &model.InputError{Op: "decode", Err: ErrNotWAV}
	}
	if dec.WavAudioFormat != pcmFormat {
		return nil, &model.InputError{Op: "decode", Err: fmt.Errorf("%w (format %d)", ErrUnsupportedFormat, dec.WavAudioFormat)}
	}
	channels := int(dec.NumChans)
	if channels < 1 || channels > 2 {
		return nil, &model.InputError{Op: "decode", Err: fmt.Errorf("%w (%d channels)", ErrUnsupportedLayout, channels)}
	}
	if opts.Channel >= channels {
		return nil, &model.InputError{Op: "decode", Err: fmt.Errorf("%w: channel %d of %d", ErrUnsupportedLayout, opts.Channel, channels)}
	}
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, &model.InputError{Op: "decode", Err: fmt.Errorf("%w: %d", ErrUnsupportedBitRate, bitDepth)}
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &model.InputError{Op: "decode", Err: fmt.Errorf("reading PCM samples: %w", err)}
	}
	if pcm == nil || len(pcm.Data) < channels {
		return nil, &model.InputError{Op: "decode", Err: ErrEmpty}
	}

	return &Buffer{
		Samples:    toMono(pcm, channels, bitDepth, opts.Channel),
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
	}, nil
}

// toMono normalizes interleaved integer samples and folds them to one
// channel.
func toMono(pcm *goaudio.IntBuffer, channels, bitDepth, channel int) []float64 {
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	offset := 0
	if bitDepth == 8 {
		// 8-bit WAV is unsigned.
		offset = 128
	}

	frames := len(pcm.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		frame := pcm.Data[i*channels : (i+1)*channels]
		if channel >= 0 {
			out[i] = float64(frame[channel]-offset) * scale
			continue
		}
		sum := 0
		for _, s := range frame {
			sum += s - offset
		}
		out[i] = float64(sum) * scale / float64(channels)
	}
	return out
}
