package store

import "errors"

// Domain errors for the store package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, store.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a datapoint or object does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrUpstream is returned for opaque failures from the backing store.
	// Malformed upstream error shapes are normalised to this class.
	ErrUpstream = errors.New("store: upstream failure")
)
