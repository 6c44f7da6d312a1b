package resource

// Kind discriminates the two resource types exposed by the service.
type Kind string

const (
	KindFile      Kind = "FILE"
	KindDirectory Kind = "DIRECTORY"
)

// Descriptor is the result type returned to callers for every resource
// operation.
//
// Path is the logical (prefix-stripped) path of the containing directory and
// Name is the resource's own last segment; together they locate the resource
// without ever exposing the fully-qualified store key. Size is set for files
// only.
type Descriptor struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size *int64 `json:"size,omitempty"`
	Kind Kind   `json:"type"`
}

// FileDescriptor builds a descriptor for a file at the given logical path.
func FileDescriptor(path string, size int64) Descriptor {
	return Descriptor{
		Path: Parent(path),
		Name: Name(path),
		Size: &size,
		Kind: KindFile,
	}
}

// DirDescriptor builds a descriptor for a directory at the given logical
// path.
func DirDescriptor(path string) Descriptor {
	return Descriptor{
		Path: Parent(path),
		Name: Name(path),
		Kind: KindDirectory,
	}
}

// KindOf returns the resource kind implied by a logical path's syntax.
func KindOf(path string) Kind {
	if IsDir(path) {
		return KindDirectory
	}
	return KindFile
}
