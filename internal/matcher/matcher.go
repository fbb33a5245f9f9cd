// Package matcher aligns query fingerprints against an index by offset
// histogram voting.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/landmark/internal/index"
	"github.com/himanishpuri/landmark/internal/model"
)

type Config struct {
	// MinSupport is the smallest aligned vote count reported as a match. Two
	// unrelated notes sharing a pair of bins can align a dozen votes, so the
	// default sits above that.
	MinSupport int

	// OffsetToleranceMs widens each histogram bin to [offset, offset+tol].
	// Frame times are rounded to whole milliseconds, so the same alignment
	// can land one millisecond apart.
	OffsetToleranceMs int

	// Workers bounds concurrent index lookups.
	Workers int

	// MaxCandidates caps Rank's output. 0 keeps every candidate.
	MaxCandidates int
}

func DefaultConfig() Config {
	return Config{
		MinSupport:        20,
		OffsetToleranceMs: 2,
		Workers:           4,
		MaxCandidates:     10,
	}
}

func (c Config) Validate() error {
	switch {
	case c.MinSupport < 1:
		return fmt.Errorf("%w: min support %d must be at least 1", model.ErrInvalidConfig, c.MinSupport)
	case c.OffsetToleranceMs < 0:
		return fmt.Errorf("%w: negative offset tolerance %d", model.ErrInvalidConfig, c.OffsetToleranceMs)
	case c.Workers < 0:
		return fmt.Errorf("%w: negative worker count %d", model.ErrInvalidConfig, c.Workers)
	case c.MaxCandidates < 0:
		return fmt.Errorf("%w: negative candidate cap %d", model.ErrInvalidConfig, c.MaxCandidates)
	}
	return nil
}

// histogram is votes[trackID][offsetMs].
type histogram map[uint32]map[int32]int

func (h histogram) add(trackID uint32, offset int32, n int) {
	m, ok := h[trackID]
	if !ok {
		m = make(map[int32]int)
		h[trackID] = m
	}
	m[offset] += n
}

// Match returns the best aligned track for query, or ErrNoMatch when no
// candidate reaches MinSupport.
func Match(ctx context.Context, query []model.Fingerprint, idx index.Index, cfg Config) (model.MatchResult, error) {
	results, err := Rank(ctx, query, idx, cfg)
	if err != nil {
		return model.MatchResult{}, err
	}
	if len(results) == 0 {
		return model.MatchResult{}, model.ErrNoMatch
	}
	return results[0], nil
}

// Rank returns every track whose best offset window reaches MinSupport,
// ordered by support desc, then track id asc, then offset asc.
func Rank(ctx context.Context, query []model.Fingerprint, idx index.Index, cfg Config) ([]model.MatchResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(query) == 0 {
		return nil, nil
	}

	hist, err := vote(ctx, query, idx, cfg.Workers)
	if err != nil {
		return nil, err
	}

	results := make([]model.MatchResult, 0, len(hist))
	for trackID, offsets := range hist {
		r := bestWindow(offsets, int32(cfg.OffsetToleranceMs))
		if r.Support < cfg.MinSupport {
			continue
		}
		r.TrackID = trackID
		r.Ratio = float64(r.Support) / float64(len(query))
		if r.Ratio > 1 {
			r.Ratio = 1
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Support != b.Support {
			return a.Support > b.Support
		}
		if a.TrackID != b.TrackID {
			return a.TrackID < b.TrackID
		}
		return a.OffsetMs < b.OffsetMs
	})

	if cfg.MaxCandidates > 0 && len(results) > cfg.MaxCandidates {
		results = results[:cfg.MaxCandidates]
	}
	return results, nil
}

// vote looks every distinct query hash up once and tallies
// dbAnchor - queryAnchor per track. Each worker fills a private histogram;
// they are merged after all lookups finish.
func vote(ctx context.Context, query []model.Fingerprint, idx index.Index, workers int) (histogram, error) {
	byHash := make(map[uint32][]uint32)
	for _, fp := range query {
		byHash[fp.Hash] = append(byHash[fp.Hash], fp.AnchorTimeMs)
	}
	hashes := make([]uint32, 0, len(byHash))
	for h := range byHash {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	if workers < 1 {
		workers = 1
	}
	if workers > len(hashes) {
		workers = len(hashes)
	}

	partials := make([]histogram, workers)
	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(hashes) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(hashes))
		part := make(histogram)
		partials[w] = part
		g.Go(func() error {
			for _, h := range hashes[lo:hi] {
				occs, err := idx.Lookup(gctx, h)
				if err != nil {
					return lookupError(err)
				}
				for _, occ := range occs {
					for _, qt := range byHash[h] {
						part.add(occ.TrackID, int32(occ.AnchorTimeMs)-int32(qt), 1)
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := partials[0]
	for _, part := range partials[1:] {
		for trackID, offsets := range part {
			for off, n := range offsets {
				merged.add(trackID, off, n)
			}
		}
	}
	return merged, nil
}

func lookupError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || model.IsIndexError(err) {
		return err
	}
	return &model.IndexError{Op: "lookup", Err: err}
}

// bestWindow slides [o, o+tol] over the sorted offsets of one track and
// keeps the window with the most votes; ties go to the smaller start. The
// reported offset is the most voted single offset inside that window.
func bestWindow(offsets map[int32]int, tol int32) model.MatchResult {
	keys := make([]int32, 0, len(offsets))
	total := 0
	for off, n := range offsets {
		keys = append(keys, off)
		total += n
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	bestStart, bestEnd, bestSum := 0, 0, -1
	sum, hi := 0, 0
	for lo := range keys {
		for hi < len(keys) && keys[hi]-keys[lo] <= tol {
			sum += offsets[keys[hi]]
			hi++
		}
		if sum > bestSum {
			bestStart, bestEnd, bestSum = lo, hi, sum
		}
		sum -= offsets[keys[lo]]
	}

	mode := keys[bestStart]
	for _, off := range keys[bestStart:bestEnd] {
		if offsets[off] > offsets[mode] {
			mode = off
		}
	}

	return model.MatchResult{OffsetMs: mode, Support: bestSum, TotalHits: total}
}
