package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/himanishpuri/landmark/internal/index"
	"github.com/himanishpuri/landmark/internal/model"
)

// Memory is a process-local Store for tests and throwaway sessions.
type Memory struct {
	*index.Memory

	mu     sync.Mutex
	nextID uint32
	tracks map[uint32]model.Track
}

func NewMemory() *Memory {
	return &Memory{
		Memory: index.NewMemory(),
		tracks: make(map[uint32]model.Track),
	}
}

func (m *Memory) RegisterTrack(ctx context.Context, t model.Track) (model.Track, error) {
	if err := ctx.Err(); err != nil {
		return model.Track{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	m.tracks[t.ID] = t
	return t, nil
}

func (m *Memory) GetTrack(_ context.Context, id uint32) (model.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[id]
	if !ok {
		return model.Track{}, fmt.Errorf("%w: %d", model.ErrTrackNotFound, id)
	}
	return t, nil
}

func (m *Memory) FindTrackByChecksum(_ context.Context, sum uint64) (model.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		found model.Track
		ok    bool
	)
	for _, t := range m.tracks {
		if t.Checksum == sum && (!ok || t.ID < found.ID) {
			found, ok = t, true
		}
	}
	if !ok {
		return model.Track{}, model.ErrTrackNotFound
	}
	return found, nil
}

func (m *Memory) ListTracks(context.Context) ([]model.Track, error) {
	m.mu.Lock()
	out := make([]model.Track, 0, len(m.tracks))
	for _, t := range m.tracks {
		out = append(out, t)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteTrack(_ context.Context, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracks[id]; !ok {
		return fmt.Errorf("%w: %d", model.ErrTrackNotFound, id)
	}
	delete(m.tracks, id)
	m.Memory.RemoveTrack(id)
	return nil
}

func (m *Memory) Stats(context.Context) (Stats, error) {
	m.mu.Lock()
	tracks := len(m.tracks)
	m.mu.Unlock()
	return Stats{Tracks: tracks, Occurrences: int64(m.Memory.Len())}, nil
}

func (m *Memory) Close() error { return nil }
