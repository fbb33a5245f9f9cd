package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/himanishpuri/landmark/pkg/landmark"
)

const (
	// MaxFingerprintsHardLimit bounds one /api/match/fingerprints request,
	// roughly two minutes of audio at default settings.
	MaxFingerprintsHardLimit = 50000

	// FingerprintWarningThreshold triggers a log line for large queries.
	FingerprintWarningThreshold = 10000
)

// FingerprintDTO is one (hash, anchor time) pair computed by the client.
type FingerprintDTO struct {
	Hash         uint32 `json:"hash"`
	AnchorTimeMs uint32 `json:"anchor_time_ms"`
}

// MatchFingerprintsRequest is the body of POST /api/match/fingerprints. It
// accepts either a bare JSON array or {"fingerprints": [...]}.
type MatchFingerprintsRequest struct {
	Fingerprints []FingerprintDTO `json:"fingerprints"`
}

func (r *MatchFingerprintsRequest) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &r.Fingerprints)
	}
	type plain MatchFingerprintsRequest
	return json.Unmarshal(data, (*plain)(r))
}

func (r *MatchFingerprintsRequest) Validate() error {
	if len(r.Fingerprints) == 0 {
		return fmt.Errorf("fingerprints cannot be empty")
	}
	if len(r.Fingerprints) > MaxFingerprintsHardLimit {
		return fmt.Errorf("too many fingerprints: %d (maximum: %d)", len(r.Fingerprints), MaxFingerprintsHardLimit)
	}
	return nil
}

func (r *MatchFingerprintsRequest) ToFingerprints() []landmark.Fingerprint {
	fps := make([]landmark.Fingerprint, len(r.Fingerprints))
	for i, f := range r.Fingerprints {
		fps[i] = landmark.Fingerprint{Hash: f.Hash, AnchorTimeMs: f.AnchorTimeMs}
	}
	return fps
}

type TrackDTO struct {
	ID         uint32    `json:"id"`
	Name       string    `json:"name"`
	DurationMs int       `json:"duration_ms"`
	SampleRate int       `json:"sample_rate"`
	Checksum   string    `json:"checksum,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func trackDTO(t landmark.Track) TrackDTO {
	dto := TrackDTO{
		ID:         t.ID,
		Name:       t.Name,
		DurationMs: t.DurationMs,
		SampleRate: t.SampleRate,
		CreatedAt:  t.CreatedAt,
	}
	if t.Checksum != 0 {
		dto.Checksum = fmt.Sprintf("%016x", t.Checksum)
	}
	return dto
}

type ListTracksResponse struct {
	Tracks []TrackDTO `json:"tracks"`
	Count  int        `json:"count"`
}

type AddTrackResponse struct {
	Message string   `json:"message"`
	Track   TrackDTO `json:"track"`
}

type DeleteTrackResponse struct {
	Message string `json:"message"`
	ID      uint32 `json:"id"`
}

// CandidateDTO is one ranked track in a match response.
type CandidateDTO struct {
	Track      TrackDTO `json:"track"`
	OffsetMs   int32    `json:"offset_ms"`
	Support    int      `json:"support"`
	TotalHits  int      `json:"total_hits"`
	Ratio      float64  `json:"ratio"`
	Confidence float64  `json:"confidence"`
}

type MatchResponse struct {
	Match             CandidateDTO   `json:"match"`
	Candidates        []CandidateDTO `json:"candidates"`
	QueryFingerprints int            `json:"query_fingerprints"`
}

func matchResponse(m *landmark.Match) MatchResponse {
	cands := make([]CandidateDTO, len(m.Candidates))
	for i, c := range m.Candidates {
		cands[i] = CandidateDTO{
			Track:      trackDTO(c.Track),
			OffsetMs:   c.OffsetMs,
			Support:    c.Support,
			TotalHits:  c.TotalHits,
			Ratio:      c.Ratio,
			Confidence: c.Confidence,
		}
	}
	return MatchResponse{
		Match:             cands[0],
		Candidates:        cands,
		QueryFingerprints: m.QueryFingerprints,
	}
}

type StatsResponse struct {
	Status       string `json:"status"`
	Backend      string `json:"backend"`
	Tracks       int    `json:"tracks"`
	Fingerprints int64  `json:"fingerprints"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
