package landmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/landmark/internal/audio"
	"github.com/himanishpuri/landmark/internal/fingerprint"
	"github.com/himanishpuri/landmark/internal/index"
	"github.com/himanishpuri/landmark/internal/matcher"
	"github.com/himanishpuri/landmark/internal/model"
	"github.com/himanishpuri/landmark/internal/storage"
	"github.com/himanishpuri/landmark/pkg/logger"
	"github.com/himanishpuri/landmark/pkg/utils"
)

// landmarkService is the default implementation of the Service interface.
type landmarkService struct {
	store  storage.Store
	log    Logger
	config *Config

	// addMu makes the checksum lookup, registration and insert of one file
	// atomic with respect to other adds.
	addMu sync.Mutex
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Fingerprint.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Match.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	store := cfg.Store
	if store == nil {
		var err error
		store, err = storage.Open(storage.Options{Backend: cfg.Backend, Path: cfg.DBPath})
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
	}

	return &landmarkService{
		store:  store,
		log:    cfg.Logger,
		config: cfg,
	}, nil
}

func (s *landmarkService) Fingerprint(samples []float64, sampleRate int) ([]model.Fingerprint, error) {
	fps, _, err := fingerprint.Pipeline(samples, sampleRate, s.config.Fingerprint)
	return fps, err
}

// AddFile decodes, fingerprints and stores one WAV file.
func (s *landmarkService) AddFile(ctx context.Context, path, name string) (model.Track, error) {
	tr, _, err := s.addFile(ctx, s.log, path, name)
	return tr, err
}

// addFile reports existed=true when the file's checksum was already indexed.
func (s *landmarkService) addFile(ctx context.Context, log Logger, path, name string) (model.Track, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Track{}, false, err
	}

	f, err := audio.Load(path, audio.Options{Channel: s.config.Channel})
	if err != nil {
		return model.Track{}, false, err
	}
	if name == "" {
		name = f.Name
	}

	if existing, err := s.store.FindTrackByChecksum(ctx, f.Checksum); err == nil {
		log.Infof("Already indexed as track %d: %s", existing.ID, path)
		return existing, true, nil
	} else if !errors.Is(err, model.ErrTrackNotFound) {
		return model.Track{}, false, err
	}

	fps, peaks, err := fingerprint.Pipeline(f.Samples, f.SampleRate, s.config.Fingerprint)
	if err != nil {
		return model.Track{}, false, withPath(err, path)
	}
	log.Debugf("%s: %d peaks, %d fingerprints", path, len(peaks), len(fps))

	s.addMu.Lock()
	defer s.addMu.Unlock()

	// A concurrent add of the same content may have won the race.
	if existing, err := s.store.FindTrackByChecksum(ctx, f.Checksum); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, model.ErrTrackNotFound) {
		return model.Track{}, false, err
	}

	tr, err := s.store.RegisterTrack(ctx, model.Track{
		Name:       name,
		DurationMs: f.DurationMs(),
		SampleRate: f.SampleRate,
		Checksum:   f.Checksum,
	})
	if err != nil {
		return model.Track{}, false, fmt.Errorf("failed to register track: %w", err)
	}

	if err := index.InsertAll(ctx, s.store, tr.ID, fps); err != nil {
		s.rollback(tr.ID)
		return model.Track{}, false, fmt.Errorf("failed to store fingerprints: %w", err)
	}

	log.Infof("Added track %d %q (%d fingerprints)", tr.ID, tr.Name, len(fps))
	return tr, false, nil
}

// AddSamples fingerprints an in-memory mono buffer.
func (s *landmarkService) AddSamples(ctx context.Context, name string, samples []float64, sampleRate int) (model.Track, error) {
	if err := ctx.Err(); err != nil {
		return model.Track{}, err
	}
	fps, _, err := fingerprint.Pipeline(samples, sampleRate, s.config.Fingerprint)
	if err != nil {
		return model.Track{}, err
	}

	s.addMu.Lock()
	defer s.addMu.Unlock()

	tr, err := s.store.RegisterTrack(ctx, model.Track{
		Name:       name,
		DurationMs: int(int64(len(samples)) * 1000 / int64(sampleRate)),
		SampleRate: sampleRate,
	})
	if err != nil {
		return model.Track{}, fmt.Errorf("failed to register track: %w", err)
	}
	if err := index.InsertAll(ctx, s.store, tr.ID, fps); err != nil {
		s.rollback(tr.ID)
		return model.Track{}, fmt.Errorf("failed to store fingerprints: %w", err)
	}

	s.log.Infof("Added track %d %q (%d fingerprints)", tr.ID, tr.Name, len(fps))
	return tr, nil
}

// rollback runs on a fresh context so a canceled add still cleans up.
func (s *landmarkService) rollback(id uint32) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.store.DeleteTrack(ctx, id); err != nil {
		s.log.Errorf("Rollback of track %d failed: %v", id, err)
	}
}

// AddDirectory fingerprints every WAV under dir on a bounded pool. A failing
// file is recorded and the run carries on; cancellation stops dispatch and
// the files not yet started are reported as skipped.
func (s *landmarkService) AddDirectory(ctx context.Context, dir string) (*BatchReport, error) {
	files, err := utils.ListAudioFiles(dir)
	if err != nil {
		return nil, err
	}

	runID := utils.NewRunID()
	log := scoped(s.log, "[run "+utils.ShortID(runID)+"]")
	log.Infof("Indexing %d files from %s", len(files), dir)

	type outcome struct {
		track   model.Track
		existed bool
		skipped bool
		err     error
	}
	outcomes := make([]outcome, len(files))

	var (
		progress *mpb.Progress
		bar      *mpb.Bar
	)
	if s.config.Progress != nil && len(files) > 0 {
		progress = mpb.New(mpb.WithOutput(s.config.Progress), mpb.WithWidth(64))
		bar = progress.AddBar(int64(len(files)),
			mpb.PrependDecorators(
				decor.Name("Indexing: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
			),
		)
	}
	tick := func() {
		if bar != nil {
			bar.Increment()
		}
	}

	var g errgroup.Group
	g.SetLimit(s.config.Workers)
	for i, path := range files {
		if ctx.Err() != nil {
			outcomes[i] = outcome{skipped: true}
			tick()
			continue
		}
		i, path := i, path
		g.Go(func() error {
			defer tick()
			tr, existed, err := s.addFile(ctx, log, path, "")
			switch {
			case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
				outcomes[i] = outcome{skipped: true}
			case err != nil:
				log.Warnf("Skipping %s: %v", path, err)
				outcomes[i] = outcome{err: err}
			default:
				outcomes[i] = outcome{track: tr, existed: existed}
			}
			return nil
		})
	}
	_ = g.Wait()
	if progress != nil {
		progress.Wait()
	}

	report := &BatchReport{RunID: runID}
	for i, o := range outcomes {
		switch {
		case o.skipped:
			report.Skipped = append(report.Skipped, files[i])
		case o.err != nil:
			report.Failed = append(report.Failed, FileError{Path: files[i], Err: o.err})
		case o.existed:
			report.Existing = append(report.Existing, o.track)
		default:
			report.Added = append(report.Added, o.track)
		}
	}

	log.Infof("Done: %d added, %d already indexed, %d failed, %d skipped",
		len(report.Added), len(report.Existing), len(report.Failed), len(report.Skipped))
	return report, nil
}

// MatchFile identifies the WAV file at path.
func (s *landmarkService) MatchFile(ctx context.Context, path string) (*Match, error) {
	s.log.Infof("Matching audio: %s", path)
	buf, err := audio.ReadFile(path, audio.Options{Channel: s.config.Channel})
	if err != nil {
		return nil, err
	}
	m, err := s.MatchSamples(ctx, buf.Samples, buf.SampleRate)
	return m, withPath(err, path)
}

func (s *landmarkService) MatchSamples(ctx context.Context, samples []float64, sampleRate int) (*Match, error) {
	fps, peaks, err := fingerprint.Pipeline(samples, sampleRate, s.config.Fingerprint)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("Query has %d peaks, %d fingerprints", len(peaks), len(fps))
	return s.MatchFingerprints(ctx, fps)
}

// MatchFingerprints ranks stored tracks against query fingerprints produced
// with the same fingerprint configuration.
func (s *landmarkService) MatchFingerprints(ctx context.Context, fps []model.Fingerprint) (*Match, error) {
	results, err := matcher.Rank(ctx, fps, s.store, s.config.Match)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		tr, err := s.store.GetTrack(ctx, r.TrackID)
		if err != nil {
			// Deleted between lookup and now.
			if errors.Is(err, model.ErrTrackNotFound) {
				s.log.Warnf("Matched track %d is gone", r.TrackID)
				continue
			}
			return nil, err
		}
		candidates = append(candidates, Candidate{
			MatchResult: r,
			Track:       tr,
			Confidence:  calculateConfidence(r.Support, len(fps)),
		})
	}
	if len(candidates) == 0 {
		return nil, model.ErrNoMatch
	}

	best := candidates[0]
	s.log.Infof("Best match: track %d %q at %dms (support %d/%d)",
		best.TrackID, best.Track.Name, best.OffsetMs, best.Support, len(fps))
	return &Match{
		Best:              best.MatchResult,
		Track:             best.Track,
		Confidence:        best.Confidence,
		Candidates:        candidates,
		QueryFingerprints: len(fps),
	}, nil
}

// calculateConfidence maps the aligned share of query fingerprints onto a
// 0-100 logistic curve centred at 15%, and damps matches with very few votes.
func calculateConfidence(support, queryFPCount int) float64 {
	if support == 0 || queryFPCount == 0 {
		return 0.0
	}

	ratio := math.Min(1, float64(support)/float64(queryFPCount))

	const (
		steepness = 20.0
		midpoint  = 0.15
	)

	confidence := 100.0 / (1.0 + math.Exp(-steepness*(ratio-midpoint)))

	if ratio > 0.30 {
		confidence = math.Min(100.0, confidence+(ratio-0.30)*50)
	}

	if support < 5 {
		confidence *= float64(support) / 5.0
	}

	return confidence
}

func (s *landmarkService) GetTrack(ctx context.Context, id uint32) (model.Track, error) {
	return s.store.GetTrack(ctx, id)
}

func (s *landmarkService) ListTracks(ctx context.Context) ([]model.Track, error) {
	return s.store.ListTracks(ctx)
}

// DeleteTrack removes a track and all its fingerprints.
func (s *landmarkService) DeleteTrack(ctx context.Context, id uint32) error {
	s.addMu.Lock()
	defer s.addMu.Unlock()
	return s.store.DeleteTrack(ctx, id)
}

func (s *landmarkService) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}

func (s *landmarkService) Close() error {
	return s.store.Close()
}

// withPath fills in the file path on input errors raised below the file
// layer.
func withPath(err error, path string) error {
	var ie *model.InputError
	if errors.As(err, &ie) && ie.Path == "" {
		ie.Path = path
	}
	return err
}

// scoped tags every line of l with prefix.
func scoped(l Logger, prefix string) Logger {
	if ll, ok := l.(*logger.Logger); ok {
		return ll.With(prefix)
	}
	return prefixed{l: l, prefix: prefix + " "}
}

type prefixed struct {
	l      Logger
	prefix string
}

func (p prefixed) Infof(format string, args ...any)  { p.l.Infof(p.prefix+format, args...) }
func (p prefixed) Warnf(format string, args ...any)  { p.l.Warnf(p.prefix+format, args...) }
func (p prefixed) Errorf(format string, args ...any) { p.l.Errorf(p.prefix+format, args...) }
func (p prefixed) Debugf(format string, args ...any) { p.l.Debugf(p.prefix+format, args...) }
