package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/himanishpuri/landmark/internal/index"
	"github.com/himanishpuri/landmark/internal/model"
)

// failingIndex returns err from every lookup.
type failingIndex struct{ err error }

func (f failingIndex) Insert(context.Context, uint32, model.Occurrence) error { return f.err }
func (f failingIndex) Lookup(context.Context, uint32) ([]model.Occurrence, error) {
	return nil, f.err
}

// trackFingerprints builds n fingerprints with distinct hashes spaced 10ms
// apart, starting at startMs.
func trackFingerprints(base uint32, n int, startMs uint32) []model.Fingerprint {
	fps := make([]model.Fingerprint, n)
	for i := range fps {
		fps[i] = model.Fingerprint{Hash: base + uint32(i), AnchorTimeMs: startMs + uint32(i*10)}
	}
	return fps
}

func seed(t *testing.T, idx *index.Memory, trackID uint32, fps []model.Fingerprint) {
	t.Helper()
	if err := idx.InsertBatch(context.Background(), trackID, fps); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
}

func TestMatchFindsOffset(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemory()

	track := trackFingerprints(1000, 200, 0)
	seed(t, idx, 1, track)
	seed(t, idx, 2, trackFingerprints(5000, 200, 0))

	// Clip starts 50 fingerprints (500ms) into track 1; query times restart at 0.
	query := make([]model.Fingerprint, 40)
	for i := range query {
		query[i] = model.Fingerprint{Hash: track[50+i].Hash, AnchorTimeMs: uint32(i * 10)}
	}

	res, err := Match(ctx, query, idx, DefaultConfig())
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if res.TrackID != 1 {
		t.Errorf("Expected track 1, got %d", res.TrackID)
	}
	if res.OffsetMs != 500 {
		t.Errorf("Expected offset 500ms, got %d", res.OffsetMs)
	}
	if res.Support != 40 || res.TotalHits != 40 {
		t.Errorf("Expected support 40 of 40 hits, got %d of %d", res.Support, res.TotalHits)
	}
	if res.Ratio != 1 {
		t.Errorf("Expected ratio 1, got %f", res.Ratio)
	}
}

func TestMatchNoMatch(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemory()
	seed(t, idx, 1, trackFingerprints(1000, 50, 0))

	_, err := Match(ctx, trackFingerprints(90000, 50, 0), idx, DefaultConfig())
	if !errors.Is(err, model.ErrNoMatch) {
		t.Errorf("Expected ErrNoMatch, got %v", err)
	}

	_, err = Match(ctx, nil, idx, DefaultConfig())
	if !errors.Is(err, model.ErrNoMatch) {
		t.Errorf("Expected ErrNoMatch for empty query, got %v", err)
	}
}

func TestMatchBelowMinSupport(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemory()
	track := trackFingerprints(1000, 50, 0)
	seed(t, idx, 1, track)

	cfg := DefaultConfig()
	cfg.MinSupport = 4
	if _, err := Match(ctx, track[:3], idx, cfg); !errors.Is(err, model.ErrNoMatch) {
		t.Errorf("Expected ErrNoMatch with 3 votes under MinSupport 4, got %v", err)
	}
	if _, err := Match(ctx, track[:4], idx, cfg); err != nil {
		t.Errorf("Expected match with 4 votes, got %v", err)
	}
}

func TestTieBreakIsDeterministic(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemory()

	// Tracks 7 and 3 hold identical fingerprints, so both reach equal support.
	fps := trackFingerprints(1000, 30, 100)
	seed(t, idx, 7, fps)
	seed(t, idx, 3, fps)

	query := trackFingerprints(1000, 30, 0)
	cfg := DefaultConfig()
	for run := 0; run < 20; run++ {
		cfg.Workers = 1 + run%4
		results, err := Rank(ctx, query, idx, cfg)
		if err != nil {
			t.Fatalf("Rank failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 candidates, got %d", len(results))
		}
		if results[0].TrackID != 3 || results[1].TrackID != 7 {
			t.Fatalf("Run %d: expected lowest track id first, got %d then %d", run, results[0].TrackID, results[1].TrackID)
		}
		if results[0].OffsetMs != 100 {
			t.Fatalf("Run %d: expected offset 100, got %d", run, results[0].OffsetMs)
		}
	}
}

func TestTieBreakSmallestOffset(t *testing.T) {
	offsets := map[int32]int{500: 3, 200: 3, 900: 1}
	r := bestWindow(offsets, 0)
	if r.OffsetMs != 200 || r.Support != 3 || r.TotalHits != 7 {
		t.Errorf("Expected (200, 3, 7), got (%d, %d, %d)", r.OffsetMs, r.Support, r.TotalHits)
	}
}

func TestOffsetTolerance(t *testing.T) {
	offsets := map[int32]int{100: 4, 101: 3, 104: 2}

	exact := bestWindow(offsets, 0)
	if exact.Support != 4 || exact.OffsetMs != 100 {
		t.Errorf("Exact: expected support 4 at 100, got %d at %d", exact.Support, exact.OffsetMs)
	}

	wide := bestWindow(offsets, 2)
	if wide.Support != 7 || wide.OffsetMs != 100 {
		t.Errorf("Tolerance 2: expected support 7 at 100, got %d at %d", wide.Support, wide.OffsetMs)
	}

	mode := bestWindow(map[int32]int{100: 1, 101: 5}, 2)
	if mode.OffsetMs != 101 {
		t.Errorf("Expected most voted offset 101 inside window, got %d", mode.OffsetMs)
	}
}

func TestMatchIndexError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")

	_, err := Match(ctx, trackFingerprints(1, 10, 0), failingIndex{err: boom}, DefaultConfig())
	if !model.IsIndexError(err) {
		t.Fatalf("Expected IndexError, got %T %v", err, err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped cause, got %v", err)
	}
	if errors.Is(err, model.ErrNoMatch) {
		t.Error("Index failure must not look like NoMatch")
	}
}

func TestMatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := index.NewMemory()
	_, err := Match(ctx, trackFingerprints(1, 10, 0), idx, DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRankMaxCandidates(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemory()
	fps := trackFingerprints(1000, 30, 0)
	for id := uint32(1); id <= 5; id++ {
		seed(t, idx, id, fps)
	}

	cfg := DefaultConfig()
	cfg.MaxCandidates = 2
	results, err := Rank(ctx, fps, idx, cfg)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(results) != 2 || results[0].TrackID != 1 || results[1].TrackID != 2 {
		t.Errorf("Expected tracks 1 and 2, got %v", results)
	}
}

func TestRankInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSupport = 0
	if _, err := Rank(context.Background(), nil, index.NewMemory(), cfg); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
