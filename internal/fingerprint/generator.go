package fingerprint

import (
	"github.com/himanishpuri/landmark/internal/model"
)

// Generate pairs each anchor peak with up to FanOut later peaks inside its
// target zone and returns one fingerprint per distinct (hash, anchor time).
//
// peaks must be sorted by (frame, bin), as ExtractPeaks returns them, so the
// forward scan visits targets nearest in time first and can stop at the first
// peak beyond MaxDeltaFrames. Output order follows the anchors. A pair that
// repeats an earlier fingerprint still counts toward its anchor's fan-out.
func Generate(peaks []Peak, cfg Config) []model.Fingerprint {
	if len(peaks) == 0 {
		return nil
	}

	fps := make([]model.Fingerprint, 0, len(peaks)*cfg.FanOut)
	seen := make(map[uint64]struct{}, len(peaks)*cfg.FanOut)
	for i, anchor := range peaks {
		paired := 0
		for j := i + 1; j < len(peaks) && paired < cfg.FanOut; j++ {
			target := peaks[j]
			delta := target.Frame - anchor.Frame
			if delta > cfg.MaxDeltaFrames {
				break
			}
			if delta < cfg.MinDeltaFrames {
				continue
			}
			df := absInt(target.Bin - anchor.Bin)
			if df < cfg.MinFreqDelta || (cfg.MaxFreqDelta > 0 && df > cfg.MaxFreqDelta) {
				continue
			}
			hash, ok := PackHash(anchor, target, cfg)
			if !ok {
				continue
			}
			paired++
			key := uint64(hash)<<32 | uint64(anchor.TimeMs)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			fps = append(fps, model.Fingerprint{Hash: hash, AnchorTimeMs: anchor.TimeMs})
		}
	}
	return fps
}

// Pipeline runs spectrogram, peak extraction and hash generation over one
// buffer of mono samples.
func Pipeline(samples []float64, sampleRate int, cfg Config) ([]model.Fingerprint, []Peak, error) {
	spec, err := BuildSpectrogram(samples, sampleRate, cfg)
	if err != nil {
		return nil, nil, err
	}
	peaks := ExtractPeaks(spec, cfg)
	return Generate(peaks, cfg), peaks, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
