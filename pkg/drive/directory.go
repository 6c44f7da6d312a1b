package drive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/marmos91/dittodrive/pkg/resource"
	"github.com/marmos91/dittodrive/pkg/store"
)

// zipCopyBufferSize bounds the per-file buffer used while streaming entries
// into a zip archive, so a directory download never holds a whole file in
// memory.
const zipCopyBufferSize = 32 * 1024

// DirectoryEngine implements directory operations by emulating a hierarchy
// over the flat store: markers for empty directories, prefix probes for
// existence, and per-key iteration for everything that touches a subtree.
//
// Multi-key operations (Delete, Rename, Move) proceed sequentially in store
// listing order and stop at the first failing key. There is no rollback; the
// returned error states how far the iteration got so callers can expose the
// partial result instead of reporting a clean failure.
type DirectoryEngine struct {
	gateway store.Gateway
	files   *FileEngine
}

// NewDirectoryEngine creates a directory engine sharing the file engine's
// gateway. Per-key copies during rename and move delegate to the file
// engine.
func NewDirectoryEngine(gateway store.Gateway, files *FileEngine) *DirectoryEngine {
	return &DirectoryEngine{gateway: gateway, files: files}
}

// Exists reports whether a directory exists, meaning at least one key
// (marker or content) lives under its prefix.
func (e *DirectoryEngine) Exists(ctx context.Context, id resource.UserID, path string) (bool, error) {
	return e.gateway.Exists(ctx, resource.WithUserPrefix(id, path))
}

// Info returns the descriptor of an existing directory. It fails with
// resource.ErrNotFound when nothing lives under the path.
func (e *DirectoryEngine) Info(ctx context.Context, id resource.UserID, path string) (resource.Descriptor, error) {
	exists, err := e.Exists(ctx, id, path)
	if err != nil {
		return resource.Descriptor{}, err
	}
	if !exists {
		return resource.Descriptor{}, fmt.Errorf("%s: %w", path, resource.ErrNotFound)
	}

	return resource.DirDescriptor(path), nil
}

// Content lists everything under a directory.
//
// The store is flat, so the listing is naturally recursive: every key under
// the prefix surfaces as one row, nested directory markers included. The
// directory's own marker is the only key excluded, since it represents the
// directory itself rather than an entry in it.
func (e *DirectoryEngine) Content(ctx context.Context, id resource.UserID, path string) ([]resource.Descriptor, error) {
	key := resource.WithUserPrefix(id, path)

	exists, err := e.gateway.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", path, resource.ErrNotFound)
	}

	objects, err := e.gateway.List(ctx, key)
	if err != nil {
		return nil, err
	}

	entries := make([]resource.Descriptor, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == key {
			continue
		}

		logical := resource.WithoutUserPrefix(obj.Key)
		if resource.IsDir(obj.Key) {
			entries = append(entries, resource.DirDescriptor(logical))
		} else {
			entries = append(entries, resource.FileDescriptor(logical, obj.Size))
		}
	}

	return entries, nil
}

// Create writes a zero-byte marker object for a new directory.
//
// The parent must already exist unless the new directory sits directly under
// the root; creating "a/b/" without "a/" fails with resource.ErrNotFound
// rather than implicitly materializing the chain.
func (e *DirectoryEngine) Create(ctx context.Context, id resource.UserID, path string) (resource.Descriptor, error) {
	parent := resource.Parent(path)
	if parent != resource.Root {
		parentExists, err := e.Exists(ctx, id, parent)
		if err != nil {
			return resource.Descriptor{}, err
		}
		if !parentExists {
			return resource.Descriptor{}, fmt.Errorf("parent %s: %w", parent, resource.ErrNotFound)
		}
	}

	exists, err := e.Exists(ctx, id, path)
	if err != nil {
		return resource.Descriptor{}, err
	}
	if exists {
		return resource.Descriptor{}, fmt.Errorf("create %s: %w", path, resource.ErrAlreadyExists)
	}

	key := resource.WithUserPrefix(id, path)
	if err := e.gateway.Put(ctx, key, strings.NewReader(""), 0, ""); err != nil {
		return resource.Descriptor{}, err
	}

	return resource.DirDescriptor(path), nil
}

// Delete removes a directory and everything under it, one key at a time in
// store listing order.
//
// A failure mid-iteration leaves the keys already processed deleted; the
// error reports how many of the listed objects were removed.
func (e *DirectoryEngine) Delete(ctx context.Context, id resource.UserID, path string) error {
	key := resource.WithUserPrefix(id, path)

	exists, err := e.gateway.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("delete %s: %w", path, resource.ErrNotFound)
	}

	objects, err := e.gateway.List(ctx, key)
	if err != nil {
		return err
	}

	for i, obj := range objects {
		if err := e.gateway.Delete(ctx, obj.Key); err != nil {
			return &PartialError{Op: "delete", Path: path, Completed: i, Total: len(objects), Err: err}
		}
	}

	return nil
}

// Download streams the directory's subtree into the writer as a zip archive.
//
// Entry names are store keys with the directory's own key stripped, so the
// archive root is the directory's content. Nested markers become directory
// entries; files are streamed through a bounded buffer. The archive writer
// is finalized on every path, including a failure mid-entry, so the output
// never ends with a dangling open entry.
func (e *DirectoryEngine) Download(ctx context.Context, id resource.UserID, path string, w io.Writer) error {
	key := resource.WithUserPrefix(id, path)

	exists, err := e.gateway.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("download %s: %w", path, resource.ErrNotFound)
	}

	objects, err := e.gateway.List(ctx, key)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	defer zw.Close()

	buf := make([]byte, zipCopyBufferSize)
	for _, obj := range objects {
		entry := strings.TrimPrefix(obj.Key, key)
		if entry == "" {
			continue
		}

		if resource.IsDir(obj.Key) {
			if _, err := zw.Create(entry); err != nil {
				return fmt.Errorf("archive entry %s: %w", entry, err)
			}
			continue
		}

		if err := e.writeZipEntry(ctx, zw, obj.Key, entry, buf); err != nil {
			return err
		}
	}

	return zw.Close()
}

func (e *DirectoryEngine) writeZipEntry(ctx context.Context, zw *zip.Writer, key, entry string, buf []byte) error {
	r, err := e.gateway.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()

	ew, err := zw.Create(entry)
	if err != nil {
		return fmt.Errorf("archive entry %s: %w", entry, err)
	}

	if _, err := io.CopyBuffer(ew, r, buf); err != nil {
		return fmt.Errorf("archive entry %s: %w", entry, err)
	}

	return nil
}

// Rename moves a whole directory tree to a new path by swapping the prefix
// of every key under it and copying each object individually.
//
// Not atomic across the set: a failure partway leaves keys split between the
// two prefixes, reported in the error.
func (e *DirectoryEngine) Rename(ctx context.Context, id resource.UserID, oldPath, newPath string) (resource.Descriptor, error) {
	oldKey := resource.WithUserPrefix(id, oldPath)
	newKey := resource.WithUserPrefix(id, newPath)

	exists, err := e.gateway.Exists(ctx, oldKey)
	if err != nil {
		return resource.Descriptor{}, err
	}
	if !exists {
		return resource.Descriptor{}, fmt.Errorf("rename %s: %w", oldPath, resource.ErrNotFound)
	}

	taken, err := e.gateway.Exists(ctx, newKey)
	if err != nil {
		return resource.Descriptor{}, err
	}
	if taken {
		return resource.Descriptor{}, fmt.Errorf("rename to %s: %w", newPath, resource.ErrAlreadyExists)
	}

	objects, err := e.gateway.List(ctx, oldKey)
	if err != nil {
		return resource.Descriptor{}, err
	}

	for i, obj := range objects {
		target := newKey + strings.TrimPrefix(obj.Key, oldKey)
		if err := e.files.renameKey(ctx, obj.Key, target); err != nil {
			return resource.Descriptor{}, &PartialError{Op: "rename", Path: oldPath, Completed: i, Total: len(objects), Err: err}
		}
	}

	return resource.DirDescriptor(newPath), nil
}

// Move relocates a directory tree under a target directory, keeping its own
// name: moving "folder/" into "dest/" places "folder/inner/file.txt" at
// "dest/folder/inner/file.txt".
//
// The relative shape of each key is reconstructed with resource.InnerPath.
// Like Rename, the per-key iteration is not atomic.
func (e *DirectoryEngine) Move(ctx context.Context, id resource.UserID, fromPath, toPath string) (resource.Descriptor, error) {
	fromKey := resource.WithUserPrefix(id, fromPath)
	destPath := join(toPath, resource.Name(fromPath)+"/")

	exists, err := e.gateway.Exists(ctx, fromKey)
	if err != nil {
		return resource.Descriptor{}, err
	}
	if !exists {
		return resource.Descriptor{}, fmt.Errorf("move %s: %w", fromPath, resource.ErrNotFound)
	}

	taken, err := e.Exists(ctx, id, destPath)
	if err != nil {
		return resource.Descriptor{}, err
	}
	if taken {
		return resource.Descriptor{}, fmt.Errorf("move to %s: %w", destPath, resource.ErrAlreadyExists)
	}

	toKey := resource.WithUserPrefix(id, toPath)

	objects, err := e.gateway.List(ctx, fromKey)
	if err != nil {
		return resource.Descriptor{}, err
	}

	for i, obj := range objects {
		target := toKey + resource.InnerPath(obj.Key, fromKey)
		if !resource.IsDir(obj.Key) {
			target += resource.Name(obj.Key)
		}

		if err := e.files.renameKey(ctx, obj.Key, target); err != nil {
			return resource.Descriptor{}, &PartialError{Op: "move", Path: fromPath, Completed: i, Total: len(objects), Err: err}
		}
	}

	return resource.DirDescriptor(destPath), nil
}

// CreateUserRoot provisions a fresh namespace by writing the root marker for
// the identity. Called once, at account creation.
func (e *DirectoryEngine) CreateUserRoot(ctx context.Context, id resource.UserID) error {
	return e.gateway.Put(ctx, id.Prefix(), strings.NewReader(""), 0, "")
}
