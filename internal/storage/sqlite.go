package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/landmark/internal/model"
)

const insertBatchSize = 500

type trackRow struct {
	ID         uint32 `gorm:"primaryKey;autoIncrement"`
	Name       string `gorm:"index:idx_track_name"`
	DurationMs int
	SampleRate int
	// SQLite integers are signed; the checksum is stored bit-for-bit.
	Checksum  int64 `gorm:"index:idx_track_checksum"`
	CreatedAt time.Time
}

func (trackRow) TableName() string { return "tracks" }

type hashRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Hash         uint32 `gorm:"index:idx_hash"`
	TrackID      uint32 `gorm:"index:idx_track"`
	AnchorTimeMs uint32
}

func (hashRow) TableName() string { return "hashes" }

func (r trackRow) toModel() model.Track {
	return model.Track{
		ID:         r.ID,
		Name:       r.Name,
		DurationMs: r.DurationMs,
		SampleRate: r.SampleRate,
		Checksum:   uint64(r.Checksum),
		CreatedAt:  r.CreatedAt,
	}
}

// SQLite is the default Store, backed by gorm over a pure-Go sqlite driver.
type SQLite struct {
	db    *gorm.DB
	sqlDB *sql.DB
	// SQLite allows one writer; mu keeps concurrent adds from tripping
	// SQLITE_BUSY.
	mu sync.Mutex
}

func NewSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&trackRow{}, &hashRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &SQLite{db: db, sqlDB: sqlDB}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLite) Insert(ctx context.Context, hash uint32, occ model.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := hashRow{Hash: hash, TrackID: occ.TrackID, AnchorTimeMs: occ.AnchorTimeMs}
	return indexErr("insert", s.db.WithContext(ctx).Create(&row).Error)
}

// InsertBatch writes all fingerprints of one track in a single transaction.
func (s *SQLite) InsertBatch(ctx context.Context, trackID uint32, fps []model.Fingerprint) error {
	if len(fps) == 0 {
		return nil
	}
	rows := make([]hashRow, len(fps))
	for i, fp := range fps {
		rows[i] = hashRow{Hash: fp.Hash, TrackID: trackID, AnchorTimeMs: fp.AnchorTimeMs}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("batch insert fingerprints: %w", err)
		}
		return nil
	})
	return indexErr("insert", err)
}

func (s *SQLite) Lookup(ctx context.Context, hash uint32) ([]model.Occurrence, error) {
	var rows []hashRow
	err := s.db.WithContext(ctx).
		Where("hash = ?", hash).
		Order("track_id, anchor_time_ms").
		Find(&rows).Error
	if err != nil {
		return nil, indexErr("lookup", fmt.Errorf("querying hash %d: %w", hash, err))
	}
	out := make([]model.Occurrence, len(rows))
	for i, r := range rows {
		out[i] = model.Occurrence{TrackID: r.TrackID, AnchorTimeMs: r.AnchorTimeMs}
	}
	return out, nil
}

func (s *SQLite) RegisterTrack(ctx context.Context, t model.Track) (model.Track, error) {
	row := trackRow{
		Name:       t.Name,
		DurationMs: t.DurationMs,
		SampleRate: t.SampleRate,
		Checksum:   int64(t.Checksum),
		CreatedAt:  t.CreatedAt,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Track{}, indexErr("register", fmt.Errorf("creating track: %w", err))
	}
	return row.toModel(), nil
}

func (s *SQLite) GetTrack(ctx context.Context, id uint32) (model.Track, error) {
	var row trackRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Track{}, fmt.Errorf("%w: %d", model.ErrTrackNotFound, id)
		}
		return model.Track{}, indexErr("get track", err)
	}
	return row.toModel(), nil
}

func (s *SQLite) FindTrackByChecksum(ctx context.Context, sum uint64) (model.Track, error) {
	var row trackRow
	err := s.db.WithContext(ctx).Where("checksum = ?", int64(sum)).Order("id").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Track{}, model.ErrTrackNotFound
		}
		return model.Track{}, indexErr("find track", err)
	}
	return row.toModel(), nil
}

func (s *SQLite) ListTracks(ctx context.Context) ([]model.Track, error) {
	var rows []trackRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, indexErr("list tracks", err)
	}
	out := make([]model.Track, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *SQLite) DeleteTrack(ctx context.Context, id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&hashRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&trackRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", model.ErrTrackNotFound, id)
		}
		return nil
	})
	return indexErr("delete", err)
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var tracks, hashes int64
	if err := s.db.WithContext(ctx).Model(&trackRow{}).Count(&tracks).Error; err != nil {
		return Stats{}, indexErr("stats", err)
	}
	if err := s.db.WithContext(ctx).Model(&hashRow{}).Count(&hashes).Error; err != nil {
		return Stats{}, indexErr("stats", err)
	}
	return Stats{Tracks: int(tracks), Occurrences: hashes}, nil
}
