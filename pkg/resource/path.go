package resource

import (
	"fmt"
	"strings"
)

// Root is the logical path of a user's namespace root.
//
// The root is a sentinel: it has no parent and no name of its own, and every
// function in this package special-cases it explicitly instead of relying on
// split arithmetic that would index out of bounds on an empty segment list.
const Root = "/"

// UserID identifies the owner of a namespace.
//
// The identity is supplied by the authentication layer once per request and
// is only ever consumed to compute the per-user key prefix. It is never
// persisted by this package or by the engines built on top of it.
type UserID int64

// Prefix returns the object-store prefix that isolates this user's namespace
// within the shared flat bucket.
//
// Every key the service touches must start with this prefix; ownership of a
// key is determined by nothing else.
func (id UserID) Prefix() string {
	return fmt.Sprintf("user-%d-files/", id)
}

// IsDir reports whether a logical path denotes a directory.
//
// The convention is purely syntactic: a trailing "/" means directory, its
// absence means file. The root path "/" is a directory.
func IsDir(path string) bool {
	return strings.HasSuffix(path, "/")
}

// Segments splits a logical path into its non-empty components.
//
// The empty trailing segment produced by a directory's trailing slash is
// dropped, so "docs/reports/" and "docs/reports" both yield
// ["docs", "reports"]. The root path yields an empty slice.
func Segments(path string) []string {
	if path == Root {
		return nil
	}

	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}

	return segments
}

// Name returns the last segment of a logical path.
//
// For the root path it returns "/" itself, matching what callers display for
// the namespace root.
func Name(path string) string {
	if path == Root {
		return Root
	}

	segments := Segments(path)
	if len(segments) == 0 {
		return Root
	}

	return segments[len(segments)-1]
}

// Parent returns the logical path of the containing directory, always with a
// trailing slash.
//
// A single-segment path ("file.txt" or "docs/") is contained in the root and
// maps to "/". The root maps to itself.
func Parent(path string) string {
	if path == Root {
		return Root
	}

	segments := Segments(path)
	if len(segments) <= 1 {
		return Root
	}

	return strings.Join(segments[:len(segments)-1], "/") + "/"
}

// WithUserPrefix composes the fully-qualified store key for a logical path.
//
// The key is derived, never persisted: it is always recomputed from the
// (identity, path) pair so that a request can never smuggle in another user's
// prefix.
func WithUserPrefix(id UserID, path string) string {
	if path == Root {
		return id.Prefix()
	}

	return id.Prefix() + path
}

// WithoutUserPrefix strips the leading user-prefix segment from a store key
// and returns the logical path, preserving the key's directory-ness.
//
// The bare prefix key ("user-42-files/") maps back to the root path "/".
func WithoutUserPrefix(key string) string {
	idx := strings.Index(key, "/")
	if idx < 0 || idx == len(key)-1 {
		return Root
	}

	return key[idx+1:]
}

// InnerPath returns the portion of a descendant key between the parent of an
// ancestor directory key and the descendant's own filename.
//
// It is used to reconstruct the relative subtree shape when moving a
// directory: moving "folder/" into "dest/" must place
// "folder/inner/file.txt" at "dest/" + "folder/inner/" + "file.txt".
//
// For a directory-marker descendant (key ending in "/") the filename is
// empty, so the returned portion runs to the end of the key. Zero-depth
// children and arbitrarily nested descendants are handled identically:
//
//	InnerPath("u/folder/a.txt", "u/folder/")           == "folder/"
//	InnerPath("u/folder/inner/file.txt", "u/folder/")  == "folder/inner/"
//	InnerPath("u/folder/inner/", "u/folder/")          == "folder/inner/"
func InnerPath(fullKey, baseDir string) string {
	start := len(baseDir) - len(Name(baseDir)) - 1
	if start < 0 {
		start = 0
	}

	end := len(fullKey)
	if !IsDir(fullKey) {
		end -= len(Name(fullKey))
	}

	return fullKey[start:end]
}
