package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/himanishpuri/landmark/internal/model"
)

// Badger key layout, all integers big-endian so prefix scans come out sorted:
//
//	h/<hash:4><track:4><anchor:4>  occurrence, empty value
//	r/<track:4><hash:4><anchor:4>  reverse entry used by DeleteTrack
//	t/<track:4>                    track JSON
//	c/<checksum:8>                 track id
var (
	prefixHash     = []byte("h/")
	prefixReverse  = []byte("r/")
	prefixTrack    = []byte("t/")
	prefixChecksum = []byte("c/")
	keySequence    = []byte("seq/tracks")
)

const sequenceBandwidth = 100

type Badger struct {
	db  *badger.DB
	seq *badger.Sequence
	// mu serializes catalog writes so a track and its checksum key land
	// together.
	mu sync.Mutex
}

// NewBadger opens a badger store in dir, or in memory when dir is empty.
func NewBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}
	seq, err := db.GetSequence(keySequence, sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening track sequence: %w", err)
	}
	return &Badger{db: db, seq: seq}, nil
}

func (b *Badger) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	if err := b.seq.Release(); err != nil {
		b.db.Close()
		return err
	}
	return b.db.Close()
}

func occurrenceKey(hash, trackID, anchor uint32) []byte {
	k := make([]byte, 0, len(prefixHash)+12)
	k = append(k, prefixHash...)
	k = binary.BigEndian.AppendUint32(k, hash)
	k = binary.BigEndian.AppendUint32(k, trackID)
	return binary.BigEndian.AppendUint32(k, anchor)
}

func reverseKey(trackID, hash, anchor uint32) []byte {
	k := make([]byte, 0, len(prefixReverse)+12)
	k = append(k, prefixReverse...)
	k = binary.BigEndian.AppendUint32(k, trackID)
	k = binary.BigEndian.AppendUint32(k, hash)
	return binary.BigEndian.AppendUint32(k, anchor)
}

func hashPrefix(hash uint32) []byte {
	return binary.BigEndian.AppendUint32(append([]byte{}, prefixHash...), hash)
}

func trackKey(id uint32) []byte {
	return binary.BigEndian.AppendUint32(append([]byte{}, prefixTrack...), id)
}

func checksumKey(sum uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, prefixChecksum...), sum)
}

func (b *Badger) Insert(ctx context.Context, hash uint32, occ model.Occurrence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(occurrenceKey(hash, occ.TrackID, occ.AnchorTimeMs), nil); err != nil {
			return err
		}
		return txn.Set(reverseKey(occ.TrackID, hash, occ.AnchorTimeMs), nil)
	})
	return indexErr("insert", err)
}

// InsertBatch streams one track's occurrences through a WriteBatch.
func (b *Badger) InsertBatch(ctx context.Context, trackID uint32, fps []model.Fingerprint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, fp := range fps {
		if err := wb.Set(occurrenceKey(fp.Hash, trackID, fp.AnchorTimeMs), nil); err != nil {
			return indexErr("insert", err)
		}
		if err := wb.Set(reverseKey(trackID, fp.Hash, fp.AnchorTimeMs), nil); err != nil {
			return indexErr("insert", err)
		}
	}
	return indexErr("insert", wb.Flush())
}

func (b *Badger) Lookup(ctx context.Context, hash uint32) ([]model.Occurrence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.Occurrence
	prefix := hashPrefix(hash)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().Key()[len(prefix):]
			out = append(out, model.Occurrence{
				TrackID:      binary.BigEndian.Uint32(k[0:4]),
				AnchorTimeMs: binary.BigEndian.Uint32(k[4:8]),
			})
		}
		return nil
	})
	if err != nil {
		return nil, indexErr("lookup", err)
	}
	return out, nil
}

func (b *Badger) RegisterTrack(ctx context.Context, t model.Track) (model.Track, error) {
	if err := ctx.Err(); err != nil {
		return model.Track{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := b.seq.Next()
	if err != nil {
		return model.Track{}, indexErr("register", err)
	}
	// Sequences start at zero; track ids start at one.
	t.ID = uint32(next + 1)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	val, err := json.Marshal(t)
	if err != nil {
		return model.Track{}, fmt.Errorf("encoding track: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(trackKey(t.ID), val); err != nil {
			return err
		}
		if t.Checksum == 0 {
			return nil
		}
		if _, err := txn.Get(checksumKey(t.Checksum)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(checksumKey(t.Checksum), binary.BigEndian.AppendUint32(nil, t.ID))
	})
	if err != nil {
		return model.Track{}, indexErr("register", err)
	}
	return t, nil
}

func getTrack(txn *badger.Txn, id uint32) (model.Track, error) {
	item, err := txn.Get(trackKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.Track{}, fmt.Errorf("%w: %d", model.ErrTrackNotFound, id)
	}
	if err != nil {
		return model.Track{}, err
	}
	var t model.Track
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &t)
	})
	return t, err
}

func (b *Badger) GetTrack(ctx context.Context, id uint32) (model.Track, error) {
	var t model.Track
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		t, err = getTrack(txn, id)
		return err
	})
	return t, indexErr("get track", err)
}

func (b *Badger) FindTrackByChecksum(ctx context.Context, sum uint64) (model.Track, error) {
	var t model.Track
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checksumKey(sum))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return model.ErrTrackNotFound
		}
		if err != nil {
			return err
		}
		var id uint32
		if err := item.Value(func(val []byte) error {
			id = binary.BigEndian.Uint32(val)
			return nil
		}); err != nil {
			return err
		}
		t, err = getTrack(txn, id)
		return err
	})
	return t, indexErr("find track", err)
}

func (b *Badger) ListTracks(ctx context.Context) ([]model.Track, error) {
	var out []model.Track
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixTrack
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefixTrack); it.ValidForPrefix(prefixTrack); it.Next() {
			var t model.Track
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			}); err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, indexErr("list tracks", err)
	}
	return out, nil
}

// DeleteTrack walks the reverse entries of the track to find its
// occurrences, then drops everything in one write batch.
func (b *Badger) DeleteTrack(ctx context.Context, id uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		t    model.Track
		keys [][]byte
	)
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		if t, err = getTrack(txn, id); err != nil {
			return err
		}
		prefix := binary.BigEndian.AppendUint32(append([]byte{}, prefixReverse...), id)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rk := it.Item().KeyCopy(nil)
			rest := rk[len(prefix):]
			hash := binary.BigEndian.Uint32(rest[0:4])
			anchor := binary.BigEndian.Uint32(rest[4:8])
			keys = append(keys, rk, occurrenceKey(hash, id, anchor))
		}
		return nil
	})
	if err != nil {
		return indexErr("delete", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return indexErr("delete", err)
		}
	}
	if err := wb.Delete(trackKey(id)); err != nil {
		return indexErr("delete", err)
	}
	if t.Checksum != 0 {
		if owner, err := b.checksumOwner(t.Checksum); err == nil && owner == id {
			if err := wb.Delete(checksumKey(t.Checksum)); err != nil {
				return indexErr("delete", err)
			}
		}
	}
	return indexErr("delete", wb.Flush())
}

func (b *Badger) checksumOwner(sum uint64) (uint32, error) {
	var id uint32
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checksumKey(sum))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = binary.BigEndian.Uint32(val)
			return nil
		})
	})
	return id, err
}

func (b *Badger) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := b.db.View(func(txn *badger.Txn) error {
		count := func(prefix []byte) int64 {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()
			var n int64
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				n++
			}
			return n
		}
		st.Tracks = int(count(prefixTrack))
		st.Occurrences = count(prefixHash)
		return nil
	})
	return st, indexErr("stats", err)
}
