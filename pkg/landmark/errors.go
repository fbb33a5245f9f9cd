package landmark

import "github.com/himanishpuri/landmark/internal/model"

var (
	ErrNoMatch             = model.ErrNoMatch
	ErrTrackNotFound       = model.ErrTrackNotFound
	ErrInsufficientSamples = model.ErrInsufficientSamples
	ErrInvalidConfig       = model.ErrInvalidConfig
)

type (
	InputError = model.InputError
	IndexError = model.IndexError
)

func IsInputError(err error) bool { return model.IsInputError(err) }
func IsIndexError(err error) bool { return model.IsIndexError(err) }
