package store

import "errors"

var (
	// ErrUnknownQuery means the identifier is not in the catalog.
	ErrUnknownQuery = errors.New("store: unknown query")

	// ErrInvalidPlatform means the platform is neither A nor B.
	ErrInvalidPlatform = errors.New("store: invalid platform")

	// ErrInvalidScore means a numeric rating is outside [1,5].
	ErrInvalidScore = errors.New("store: invalid score")

	// ErrIncompleteRecord means a score was submitted before both platform
	// responses exist.
	ErrIncompleteRecord = errors.New("store: incomplete record")

	// ErrNotFound means no record exists yet for a catalog identifier.
	ErrNotFound = errors.New("store: record not found")

	// ErrSampleExists means a sample set was already generated for this run.
	ErrSampleExists = errors.New("store: sample set already generated")

	// ErrNoSample means no sample set has been generated yet.
	ErrNoSample = errors.New("store: no sample set")
)
