package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// Job admission / execution errors. Matched with errors.Is at the
	// submission boundary and mapped to HTTP status codes there.
	ErrQueueTimeout = errors.New("no worker slot available before deadline")
	ErrToolNotFound = errors.New("research tool executable not found")
	ErrSpawn        = errors.New("failed to spawn research tool")
	ErrJobTimeout   = errors.New("job exceeded its time budget")
	ErrJobKilled    = errors.New("job was cancelled")
	ErrRateLimited  = errors.New("submission rate limit exceeded")

	// Scoring errors
	ErrScoreParse = errors.New("scoring artifact is not valid JSON")
)
