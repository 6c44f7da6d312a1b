// Package drive implements the hierarchical file-and-directory abstraction
// on top of the flat object store.
//
// Directories do not exist in the store: a key ending in "/" is a zero-byte
// marker object, a directory "exists" when at least one key lives under its
// prefix, and every directory-wide operation (delete, rename, move, zip
// download) iterates a prefix listing and acts on each key individually.
//
// Both engines are stateless. Every call re-derives the store key from the
// (identity, path) pair, so no state is shared across requests and no
// locking is needed. Concurrent requests touching overlapping paths are not
// coordinated here: the store's per-key atomicity is the only serialization
// point, and multi-key operations are explicitly not transactional.
package drive

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittodrive/pkg/resource"
	"github.com/marmos91/dittodrive/pkg/store"
)

// PartialError reports a directory-wide operation that failed mid-iteration.
//
// Multi-key operations are not transactional: keys processed before the
// failure stay processed. Completed and Total let callers expose how far the
// operation got instead of collapsing it into a plain failure. The underlying
// cause is reachable through Unwrap, so the error taxonomy still applies.
type PartialError struct {
	// Op is the operation that failed: "delete", "rename", or "move".
	Op string

	// Path is the logical directory path the operation targeted.
	Path string

	// Completed counts the objects processed before the failure.
	Completed int

	// Total is the number of objects the operation set out to process.
	Total int

	// Err is the failure that stopped the iteration.
	Err error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s %s: processed %d of %d objects: %v", e.Op, e.Path, e.Completed, e.Total, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// join appends a name to a logical directory path. The root directory is the
// empty prefix in key space, so joining under it yields the bare name.
func join(dirPath, name string) string {
	if dirPath == resource.Root {
		return name
	}
	return dirPath + name
}

// asNotFound converts the gateway's absent-object sentinel into the
// user-facing taxonomy while leaving transport failures untouched.
func asNotFound(err error, path string) error {
	if errors.Is(err, store.ErrObjectNotFound) {
		return fmt.Errorf("%s: %w", path, resource.ErrNotFound)
	}
	return err
}
