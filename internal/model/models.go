package model

import "time"

// Occurrence is the stored value for a hash bucket entry.
// AnchorTimeMs is the time (in ms) of the anchor peak in the source audio.
type Occurrence struct {
	TrackID      uint32
	AnchorTimeMs uint32
}

// Fingerprint is a single (hash, anchor time) pair produced from one
// anchor/target peak pair.
type Fingerprint struct {
	Hash         uint32
	AnchorTimeMs uint32
}

// Track describes a stored recording. It is created once per add and never
// mutated afterwards.
type Track struct {
	ID         uint32
	Name       string
	DurationMs int
	SampleRate int
	Checksum   uint64
	CreatedAt  time.Time
}

// MatchResult is a candidate produced by the matcher.
type MatchResult struct {
	TrackID   uint32
	OffsetMs  int32   // dbAnchorTimeMs - queryAnchorTimeMs
	Support   int     // votes agreeing on (TrackID, OffsetMs)
	TotalHits int     // all votes for TrackID regardless of offset
	Ratio     float64 // Support / number of query fingerprints
}
