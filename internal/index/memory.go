package index

import (
	"context"
	"sync"

	"github.com/himanishpuri/landmark/internal/model"
)

// Memory is a mutex-guarded multi-map. Writers hold the lock for a whole
// batch, so a track's fingerprints become visible all at once.
type Memory struct {
	mu      sync.RWMutex
	buckets map[uint32][]model.Occurrence
	count   int
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[uint32][]model.Occurrence)}
}

func (m *Memory) Insert(ctx context.Context, hash uint32, occ model.Occurrence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.buckets[hash] = append(m.buckets[hash], occ)
	m.count++
	m.mu.Unlock()
	return nil
}

func (m *Memory) InsertBatch(ctx context.Context, trackID uint32, fps []model.Fingerprint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fp := range fps {
		m.buckets[fp.Hash] = append(m.buckets[fp.Hash], model.Occurrence{TrackID: trackID, AnchorTimeMs: fp.AnchorTimeMs})
	}
	m.count += len(fps)
	return nil
}

// Lookup returns a sorted copy of the bucket for hash.
func (m *Memory) Lookup(ctx context.Context, hash uint32) ([]model.Occurrence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	bucket := m.buckets[hash]
	out := make([]model.Occurrence, len(bucket))
	copy(out, bucket)
	m.mu.RUnlock()

	SortOccurrences(out)
	return out, nil
}

// RemoveTrack drops every occurrence of trackID and reports how many went.
func (m *Memory) RemoveTrack(trackID uint32) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for hash, bucket := range m.buckets {
		kept := bucket[:0]
		for _, occ := range bucket {
			if occ.TrackID == trackID {
				removed++
				continue
			}
			kept = append(kept, occ)
		}
		if len(kept) == 0 {
			delete(m.buckets, hash)
		} else {
			m.buckets[hash] = kept
		}
	}
	m.count -= removed
	return removed
}

// Len returns the number of stored occurrences.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}
