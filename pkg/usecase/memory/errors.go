package memory

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrMissingSnapshot is returned when a turn is scheduled without a snapshot
	ErrMissingSnapshot = goerr.New("memory snapshot is missing")

	// ErrEmbeddingMismatch is returned when a batch embedding returns a
	// different number of vectors than texts
	ErrEmbeddingMismatch = goerr.New("embedding count mismatch")
)
