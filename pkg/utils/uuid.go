package utils

import "github.com/google/uuid"

// NewRunID returns a random id used to tag the log lines of one batch run.
func NewRunID() string {
	return uuid.NewString()
}

// ShortID trims a run id to its first block for compact log prefixes.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
