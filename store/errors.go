package store

import "errors"

var (
	// ErrPreconditionFailed is returned when a conditional operation's entity tag no longer matches.
	ErrPreconditionFailed = errors.New("docsample: precondition failed (entity tag mismatch)")

	// ErrNotFound is returned when the addressed document doesn't exist.
	ErrNotFound = errors.New("docsample: document not found")

	// ErrNoMorePages is returned when NextPage is called after the last page.
	ErrNoMorePages = errors.New("docsample: no more pages")

	// ErrSessionNotAvailable is returned when a scope refers to writes the collection has not seen.
	ErrSessionNotAvailable = errors.New("docsample: read session not available")
)
