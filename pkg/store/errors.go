package store

import "errors"

// Gateway implementations translate every backend failure into one of these
// two sentinels, wrapped with context via %w. The distinction matters: an
// absent object is an ordinary outcome the engines turn into their own
// not-found semantics, while an unreachable store is fatal for the request.
// The two are never conflated.
var (
	// ErrObjectNotFound indicates the requested key does not exist. Returned
	// by Stat and Get only; Exists and Delete treat absence as a normal
	// result.
	ErrObjectNotFound = errors.New("object not found")

	// ErrStoreUnavailable indicates a transport or protocol failure from the
	// underlying store. Engines propagate it untouched.
	ErrStoreUnavailable = errors.New("store unavailable")
)
