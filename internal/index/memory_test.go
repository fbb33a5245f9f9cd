package index

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/himanishpuri/landmark/internal/model"
)

func TestMemoryInsertLookup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if occs, err := m.Lookup(ctx, 42); err != nil || len(occs) != 0 {
		t.Fatalf("Expected empty lookup, got %v, %v", occs, err)
	}

	inserts := []model.Occurrence{
		{TrackID: 2, AnchorTimeMs: 100},
		{TrackID: 1, AnchorTimeMs: 300},
		{TrackID: 1, AnchorTimeMs: 50},
	}
	for _, occ := range inserts {
		if err := m.Insert(ctx, 42, occ); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	occs, err := m.Lookup(ctx, 42)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	expected := []model.Occurrence{
		{TrackID: 1, AnchorTimeMs: 50},
		{TrackID: 1, AnchorTimeMs: 300},
		{TrackID: 2, AnchorTimeMs: 100},
	}
	if len(occs) != len(expected) {
		t.Fatalf("Expected %d occurrences, got %d", len(expected), len(occs))
	}
	for i := range expected {
		if occs[i] != expected[i] {
			t.Errorf("Occurrence %d = %v, expected %v", i, occs[i], expected[i])
		}
	}

	if m.Len() != 3 {
		t.Errorf("Expected Len 3, got %d", m.Len())
	}
}

func TestMemoryLookupReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Insert(ctx, 1, model.Occurrence{TrackID: 1, AnchorTimeMs: 10})

	occs, _ := m.Lookup(ctx, 1)
	occs[0].TrackID = 99

	again, _ := m.Lookup(ctx, 1)
	if again[0].TrackID != 1 {
		t.Error("Mutating lookup result changed the index")
	}
}

func TestInsertAllAndRemoveTrack(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	fps := []model.Fingerprint{{Hash: 1, AnchorTimeMs: 0}, {Hash: 2, AnchorTimeMs: 10}, {Hash: 1, AnchorTimeMs: 20}}
	if err := InsertAll(ctx, m, 7, fps); err != nil {
		t.Fatalf("InsertAll failed: %v", err)
	}
	if err := InsertAll(ctx, m, 8, fps[:1]); err != nil {
		t.Fatalf("InsertAll failed: %v", err)
	}

	if removed := m.RemoveTrack(7); removed != 3 {
		t.Errorf("Expected 3 removed, got %d", removed)
	}
	occs, _ := m.Lookup(ctx, 1)
	if len(occs) != 1 || occs[0].TrackID != 8 {
		t.Errorf("Expected only track 8 left under hash 1, got %v", occs)
	}
	if occs, _ := m.Lookup(ctx, 2); len(occs) != 0 {
		t.Errorf("Expected hash 2 to be empty, got %v", occs)
	}
}

func TestMemoryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory()
	if err := m.Insert(ctx, 1, model.Occurrence{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if _, err := m.Lookup(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestInsertAllWithoutBatching(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	// Embedding only the interface hides InsertBatch.
	var idx Index = struct{ Index }{m}

	fps := []model.Fingerprint{{Hash: 3, AnchorTimeMs: 5}, {Hash: 4, AnchorTimeMs: 6}}
	if err := InsertAll(ctx, idx, 1, fps); err != nil {
		t.Fatalf("InsertAll failed: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Expected 2 occurrences, got %d", m.Len())
	}
}

func TestMemoryConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for track := uint32(1); track <= 8; track++ {
		wg.Add(1)
		go func(track uint32) {
			defer wg.Done()
			fps := make([]model.Fingerprint, 100)
			for i := range fps {
				fps[i] = model.Fingerprint{Hash: uint32(i % 10), AnchorTimeMs: uint32(i)}
			}
			_ = m.InsertBatch(ctx, track, fps)
		}(track)
	}
	wg.Wait()

	if m.Len() != 800 {
		t.Errorf("Expected 800 occurrences, got %d", m.Len())
	}
	occs, _ := m.Lookup(ctx, 0)
	if len(occs) != 80 {
		t.Errorf("Expected 80 occurrences under hash 0, got %d", len(occs))
	}
}
