// Package index defines the fingerprint multi-map consumed by the matcher and
// an in-memory implementation of it.
package index

import (
	"context"
	"sort"

	"github.com/himanishpuri/landmark/internal/model"
)

// Index maps hash codes to the places they occur. An insert must be visible
// to every later lookup in the same process.
type Index interface {
	Insert(ctx context.Context, hash uint32, occ model.Occurrence) error
	Lookup(ctx context.Context, hash uint32) ([]model.Occurrence, error)
}

// BatchInserter is implemented by indexes that can store all fingerprints of
// one track in a single critical section or transaction.
type BatchInserter interface {
	InsertBatch(ctx context.Context, trackID uint32, fps []model.Fingerprint) error
}

// InsertAll stores fps for trackID, batching when idx supports it.
func InsertAll(ctx context.Context, idx Index, trackID uint32, fps []model.Fingerprint) error {
	if b, ok := idx.(BatchInserter); ok {
		return b.InsertBatch(ctx, trackID, fps)
	}
	for _, fp := range fps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := idx.Insert(ctx, fp.Hash, model.Occurrence{TrackID: trackID, AnchorTimeMs: fp.AnchorTimeMs}); err != nil {
			return err
		}
	}
	return nil
}

// SortOccurrences orders occurrences by (track id, anchor time).
func SortOccurrences(occs []model.Occurrence) {
	sort.Slice(occs, func(i, j int) bool {
		if occs[i].TrackID != occs[j].TrackID {
			return occs[i].TrackID < occs[j].TrackID
		}
		return occs[i].AnchorTimeMs < occs[j].AnchorTimeMs
	})
}
