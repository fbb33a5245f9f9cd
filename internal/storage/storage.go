// Package storage persists the fingerprint index together with the track
// catalog it refers to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/himanishpuri/landmark/internal/index"
	"github.com/himanishpuri/landmark/internal/model"
)

const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

const (
	DefaultDBFile    = "landmark.sqlite3"
	DefaultBadgerDir = "landmark.badger"
)

// Store is an index plus the catalog of tracks whose fingerprints it holds.
// Implementations are safe for concurrent use; writes are serialized.
type Store interface {
	index.Index
	index.BatchInserter

	// RegisterTrack assigns the next id from the store's sequence and
	// returns the stored track.
	RegisterTrack(ctx context.Context, t model.Track) (model.Track, error)
	GetTrack(ctx context.Context, id uint32) (model.Track, error)
	FindTrackByChecksum(ctx context.Context, sum uint64) (model.Track, error)
	ListTracks(ctx context.Context) ([]model.Track, error)
	// DeleteTrack removes the track and all of its occurrences.
	DeleteTrack(ctx context.Context, id uint32) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

type Stats struct {
	Tracks      int   `json:"tracks"`
	Occurrences int64 `json:"occurrences"`
}

type Options struct {
	Backend string
	// Path is the sqlite file or the badger directory. Empty picks the
	// backend default; badger with an empty path runs in memory.
	Path string
}

// Open returns the store selected by opts.Backend.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendSQLite:
		path := opts.Path
		if path == "" {
			path = DefaultDBFile
		}
		return NewSQLite(path)
	case BackendBadger:
		return NewBadger(opts.Path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", model.ErrInvalidConfig, opts.Backend)
	}
}

// OptionsFromEnv reads LANDMARK_BACKEND and LANDMARK_DB_PATH.
func OptionsFromEnv() Options {
	return Options{
		Backend: os.Getenv("LANDMARK_BACKEND"),
		Path:    os.Getenv("LANDMARK_DB_PATH"),
	}
}

// indexErr wraps storage failures; not-found and context errors pass
// through untouched.
func indexErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrTrackNotFound) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) || model.IsIndexError(err) {
		return err
	}
	return &model.IndexError{Op: op, Err: err}
}
