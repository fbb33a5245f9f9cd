package landmark

import (
	"context"

	"github.com/himanishpuri/landmark/internal/model"
)

type Service interface {
	// AddFile indexes one WAV file. Adding a byte-identical file again
	// returns the track already stored.
	AddFile(ctx context.Context, path, name string) (model.Track, error)
	AddSamples(ctx context.Context, name string, samples []float64, sampleRate int) (model.Track, error)
	// AddDirectory indexes every WAV file under dir. Per-file failures are
	// recorded in the report; only discovery failures return an error.
	AddDirectory(ctx context.Context, dir string) (*BatchReport, error)

	MatchFile(ctx context.Context, path string) (*Match, error)
	MatchSamples(ctx context.Context, samples []float64, sampleRate int) (*Match, error)
	MatchFingerprints(ctx context.Context, fps []model.Fingerprint) (*Match, error)
	Fingerprint(samples []float64, sampleRate int) ([]model.Fingerprint, error)

	GetTrack(ctx context.Context, id uint32) (model.Track, error)
	ListTracks(ctx context.Context) ([]model.Track, error)
	DeleteTrack(ctx context.Context, id uint32) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
