package resource

import "errors"

// Closed error taxonomy for resource operations.
//
// Engines perform existence checks proactively (check-then-act) and return
// these sentinels wrapped with context via %w. The HTTP boundary maps each
// kind to a status code exactly once; nothing in between switches on error
// types.
var (
	// ErrNotFound indicates the target resource, or a required parent
	// directory, does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a create, upload, rename, or move collided
	// with an existing resource at the target path.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidArgument indicates a blank or malformed path, query, or file
	// list. It is raised at the boundary before any store traffic.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedOperation indicates a rename whose source and target
	// disagree on resource kind (file vs. directory). The operation is
	// rejected rather than silently treated as either case.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrStoreUnavailable indicates a transport-level failure talking to the
	// object store. It is fatal for the current request and is never retried
	// by the engines; retry policy lives in the gateway adapter.
	ErrStoreUnavailable = errors.New("object store unavailable")
)
