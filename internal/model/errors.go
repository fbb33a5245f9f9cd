package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientSamples is reported (inside an *InputError) when the
	// audio is shorter than one analysis window.
	ErrInsufficientSamples = errors.New("insufficient samples for one analysis window")

	// ErrNoMatch means matching completed but no candidate reached the
	// minimum support. It is an outcome, not a processing failure.
	ErrNoMatch = errors.New("no match")

	ErrTrackNotFound = errors.New("track not found")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// InputError reports unreadable, empty or unsupported audio.
type InputError struct {
	Path string
	Op   string
	Err  error
}

func (e *InputError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("input %s: %s: %v", e.Path, e.Op, e.Err)
	}
	return fmt.Sprintf("input: %s: %v", e.Op, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IndexError reports a storage-layer failure while inserting or looking up.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// IsInputError reports whether err carries an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// IsIndexError reports whether err carries an *IndexError.
func IsIndexError(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie)
}
