package store

import (
	"context"
	"io"
)

// Object describes a single stored object as returned by listing and stat
// operations.
type Object struct {
	// Key is the fully-qualified object key, including the per-user prefix.
	Key string

	// Size is the object's length in bytes. Directory markers are zero.
	Size int64

	// ContentType is the stored MIME type, when the backend tracks one.
	// Listing operations may leave it empty; Stat always populates it.
	ContentType string
}

// Gateway is the capability surface the engines consume to talk to the flat
// object store.
//
// The store has no directory concept: directory semantics (markers, prefix
// boundaries) are entirely the caller's responsibility. The gateway's job is
// limited to raw key operations plus translating backend-specific failures
// into the two sentinel errors of this package. Retry policy, if any, lives
// inside the adapter (the S3 implementation configures the SDK retryer);
// engines never retry.
//
// Implementations must be safe for concurrent use: the gateway is the only
// resource shared across requests.
type Gateway interface {
	// Stat returns the metadata of a single object. It fails with
	// ErrObjectNotFound if the exact key is absent.
	Stat(ctx context.Context, key string) (*Object, error)

	// Exists reports whether at least one key starts with the given prefix.
	// This is the directory existence probe: the backend listing is capped at
	// one result. Absence is not an error.
	Exists(ctx context.Context, prefix string) (bool, error)

	// List returns every object whose key starts with the given prefix, in
	// the store's native lexicographic key order. The listing is finite and
	// complete; pagination is handled inside the adapter.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Get returns a reader over the object's bytes. It fails with
	// ErrObjectNotFound if the key is absent. The caller owns the reader and
	// must close it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes an object, overwriting unconditionally if the key already
	// exists. The logical layer is responsible for collision checks.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Delete removes an object. Deleting an absent key is not an error at
	// this level; the engines enforce existence for user-facing semantics.
	Delete(ctx context.Context, key string) error
}
