package fingerprint

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Peak represents a spectral landmark used for fingerprinting.
// It contains both index and physical units for convenience.
type Peak struct {
	Frame     int     // frame index in the spectrogram
	Bin       int     // frequency bin index
	Magnitude float64 // value of the spectrogram cell
	TimeMs    uint32  // frame start in milliseconds
	FreqHz    float64 // bin centre frequency
}

// ExtractPeaks finds local maxima of the spectrogram that clear the magnitude
// threshold, thins them with non-maximum suppression and returns them sorted
// by (frame, bin).
//
// A cell is a candidate when it equals the maximum of its
// (2*TimeRadius+1) x (2*FreqRadius+1) neighborhood. Candidates are accepted
// strongest first; equal magnitudes go to the earliest (frame, bin). Each
// accepted peak suppresses every other candidate inside its neighborhood.
func ExtractPeaks(spec *Spectrogram, cfg Config) []Peak {
	if spec == nil || spec.Frames() == 0 || spec.Bins() == 0 {
		return nil
	}

	nFrames := spec.Frames()
	nBins := spec.Bins()
	if cfg.MaxFreqBin > 0 && cfg.MaxFreqBin+1 < nBins {
		nBins = cfg.MaxFreqBin + 1
	}

	filtered := MaxFilter(spec, cfg.TimeRadius, cfg.FreqRadius, nBins)
	threshold := peakThreshold(spec, nBins, cfg)

	type candidate struct {
		t, f int
		mag  float64
	}
	cands := make([]candidate, 0, nFrames)
	for t := 0; t < nFrames; t++ {
		for f := 0; f < nBins; f++ {
			mag := spec.At(t, f)
			if mag <= 0 || mag < threshold || mag != filtered[t][f] {
				continue
			}
			cands = append(cands, candidate{t: t, f: f, mag: mag})
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].mag != cands[j].mag {
			return cands[i].mag > cands[j].mag
		}
		if cands[i].t != cands[j].t {
			return cands[i].t < cands[j].t
		}
		return cands[i].f < cands[j].f
	})

	suppressed := make([]bool, nFrames*nBins)
	peaks := make([]Peak, 0, len(cands)/4+1)
	for _, c := range cands {
		if suppressed[c.t*nBins+c.f] {
			continue
		}
		peaks = append(peaks, Peak{
			Frame:     c.t,
			Bin:       c.f,
			Magnitude: c.mag,
			TimeMs:    spec.FrameTimeMs(c.t),
			FreqHz:    spec.BinFrequency(c.f),
		})
		for t := max(0, c.t-cfg.TimeRadius); t <= min(nFrames-1, c.t+cfg.TimeRadius); t++ {
			row := suppressed[t*nBins : (t+1)*nBins]
			for f := max(0, c.f-cfg.FreqRadius); f <= min(nBins-1, c.f+cfg.FreqRadius); f++ {
				row[f] = true
			}
		}
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].Frame == peaks[j].Frame {
			return peaks[i].Bin < peaks[j].Bin
		}
		return peaks[i].Frame < peaks[j].Frame
	})

	return peaks
}

// peakThreshold combines the absolute floor with the optional adaptive one.
func peakThreshold(spec *Spectrogram, nBins int, cfg Config) float64 {
	threshold := cfg.MinMagnitude
	if cfg.AdaptiveThreshold <= 0 {
		return threshold
	}
	all := make([]float64, 0, spec.Frames()*nBins)
	for t := 0; t < spec.Frames(); t++ {
		all = append(all, spec.values[t][:nBins]...)
	}
	mean, std := stat.MeanStdDev(all, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return math.Max(threshold, mean+cfg.AdaptiveThreshold*std)
}

// MaxFilter returns a grid where every cell holds the maximum of the
// spectrogram over its (2*timeRadius+1) x (2*freqRadius+1) neighborhood,
// clipped at the edges. Only the first nBins columns are considered.
//
// The rectangle max is separable, so it runs as a sliding max along
// frequency followed by one along time, each O(cells).
func MaxFilter(spec *Spectrogram, timeRadius, freqRadius, nBins int) [][]float64 {
	nFrames := spec.Frames()
	if nBins <= 0 || nBins > spec.Bins() {
		nBins = spec.Bins()
	}

	var dq []int
	rows := make([][]float64, nFrames)
	for t := 0; t < nFrames; t++ {
		rows[t] = make([]float64, nBins)
		dq = slidingMax(spec.values[t][:nBins], rows[t], freqRadius, dq)
	}

	col := make([]float64, nFrames)
	colMax := make([]float64, nFrames)
	for f := 0; f < nBins; f++ {
		for t := 0; t < nFrames; t++ {
			col[t] = rows[t][f]
		}
		dq = slidingMax(col, colMax, timeRadius, dq)
		for t := 0; t < nFrames; t++ {
			rows[t][f] = colMax[t]
		}
	}
	return rows
}

// slidingMax writes max(src[i-radius .. i+radius]) into dst[i] using a
// monotonic deque of indices. dq is scratch space and is returned for reuse.
func slidingMax(src, dst []float64, radius int, dq []int) []int {
	n := len(src)
	dq = dq[:0]
	head := 0
	next := 0
	for i := 0; i < n; i++ {
		hi := min(i+radius, n-1)
		for ; next <= hi; next++ {
			for len(dq) > head && src[dq[len(dq)-1]] <= src[next] {
				dq = dq[:len(dq)-1]
			}
			dq = append(dq, next)
		}
		for dq[head] < i-radius {
			head++
		}
		dst[i] = src[dq[head]]
	}
	return dq
}
