package landmark

import (
	"github.com/himanishpuri/landmark/internal/model"
	"github.com/himanishpuri/landmark/internal/storage"
)

type (
	Track       = model.Track
	Fingerprint = model.Fingerprint
	MatchResult = model.MatchResult
	Stats       = storage.Stats
)

// Candidate is one ranked match with its catalog entry.
type Candidate struct {
	MatchResult
	Track      Track
	Confidence float64 // 0-100
}

// Match is the outcome of a successful lookup. Best is Candidates[0].
type Match struct {
	Best              MatchResult
	Track             Track
	Confidence        float64
	Candidates        []Candidate
	QueryFingerprints int
}

type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }
func (e FileError) Unwrap() error { return e.Err }

// BatchReport lists what happened to every file of an AddDirectory run, in
// file order.
type BatchReport struct {
	RunID string
	Added []Track

	// Existing holds files whose content was already indexed.
	Existing []Track

	// Skipped holds files never processed because the run was canceled.
	Skipped []string
	Failed  []FileError
}

func (r *BatchReport) Total() int {
	return len(r.Added) + len(r.Existing) + len(r.Skipped) + len(r.Failed)
}
