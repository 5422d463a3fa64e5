package domain

import (
	"errors"
)

// Sentinel errors used across all layers.
var (
	// ErrFlushFailed marks a failed bulk dispatch to the durable store.
	// The frozen batch stays with the caller, which may log and discard
	// or rebuild the payload and redispatch.
	ErrFlushFailed = errors.New("bulk dispatch failed")

	// ErrMergeFailed marks a failed staging→production merge. The merge
	// transaction has been rolled back and staging rows for the source
	// are intact, so the merge can be re-run.
	ErrMergeFailed = errors.New("staging merge failed")
)
