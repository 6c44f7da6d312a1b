package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/marmos91/dittodrive/pkg/resource"
	"github.com/marmos91/dittodrive/pkg/store"
)

// FileEngine implements single-object operations: existence, info, upload,
// download, delete, rename, move, and search.
//
// Existence checks are proactive (check-then-act): the store's own not-found
// signal is only reliable for exact-key reads, so user-facing semantics are
// enforced before issuing writes. This makes conflicts on concurrent
// overlapping requests possible but detectable; see the package comment.
type FileEngine struct {
	gateway store.Gateway
}

// NewFileEngine creates a file engine backed by the given gateway.
func NewFileEngine(gateway store.Gateway) *FileEngine {
	return &FileEngine{gateway: gateway}
}

// UploadItem is one file of a multi-file upload request.
type UploadItem struct {
	// Filename is the target name inside the destination directory.
	Filename string

	// ContentType is the MIME type reported by the client. May be empty.
	ContentType string

	// Size is the content length in bytes.
	Size int64

	// Content is the file's byte stream. The engine consumes it exactly once
	// and does not close it.
	Content io.Reader
}

// Exists reports whether a file exists at the given logical path.
//
// It probes the exact key, so "a.txt" existing never implies "a.tx" does.
func (e *FileEngine) Exists(ctx context.Context, id resource.UserID, path string) (bool, error) {
	_, err := e.gateway.Stat(ctx, resource.WithUserPrefix(id, path))
	if err != nil {
		if errors.Is(err, store.ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Info returns the descriptor of an existing file. It fails with
// resource.ErrNotFound when the path is absent.
func (e *FileEngine) Info(ctx context.Context, id resource.UserID, path string) (resource.Descriptor, error) {
	obj, err := e.gateway.Stat(ctx, resource.WithUserPrefix(id, path))
	if err != nil {
		return resource.Descriptor{}, asNotFound(err, path)
	}

	return resource.FileDescriptor(path, obj.Size), nil
}

// Upload writes each item into the destination directory, in input order.
//
// Each item's target is checked for collisions before its write, and a
// collision fails the whole call with resource.ErrAlreadyExists. The
// operation is not transactional: items written before a failure on a later
// item stay written and are returned alongside the error, so callers can see
// exactly which files made it.
func (e *FileEngine) Upload(ctx context.Context, id resource.UserID, dirPath string, items []UploadItem) ([]resource.Descriptor, error) {
	written := make([]resource.Descriptor, 0, len(items))

	for _, item := range items {
		path := join(dirPath, item.Filename)

		exists, err := e.Exists(ctx, id, path)
		if err != nil {
			return written, err
		}
		if exists {
			return written, fmt.Errorf("upload %s: %w", path, resource.ErrAlreadyExists)
		}

		key := resource.WithUserPrefix(id, path)
		if err := e.gateway.Put(ctx, key, item.Content, item.Size, item.ContentType); err != nil {
			return written, err
		}

		written = append(written, resource.FileDescriptor(path, item.Size))
	}

	return written, nil
}

// Delete removes a file. It fails with resource.ErrNotFound when the path is
// absent, even though the gateway-level delete itself is idempotent.
func (e *FileEngine) Delete(ctx context.Context, id resource.UserID, path string) error {
	exists, err := e.Exists(ctx, id, path)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("delete %s: %w", path, resource.ErrNotFound)
	}

	return e.gateway.Delete(ctx, resource.WithUserPrefix(id, path))
}

// Download returns the file's byte stream. The caller owns the reader and
// sets the attachment filename from the path's name.
func (e *FileEngine) Download(ctx context.Context, id resource.UserID, path string) (io.ReadCloser, error) {
	r, err := e.gateway.Get(ctx, resource.WithUserPrefix(id, path))
	if err != nil {
		return nil, asNotFound(err, path)
	}

	return r, nil
}

// Rename moves a file's content to a new logical path.
//
// It fails with resource.ErrNotFound when the source is absent and with
// resource.ErrAlreadyExists when the target is taken. The copy is
// delete-then-put: a crash between the two steps loses the object. Conflict
// checks run before the destructive step, so the window only opens once the
// operation is already committed to succeed.
func (e *FileEngine) Rename(ctx context.Context, id resource.UserID, oldPath, newPath string) (resource.Descriptor, error) {
	oldKey := resource.WithUserPrefix(id, oldPath)

	obj, err := e.gateway.Stat(ctx, oldKey)
	if err != nil {
		return resource.Descriptor{}, asNotFound(err, oldPath)
	}

	exists, err := e.Exists(ctx, id, newPath)
	if err != nil {
		return resource.Descriptor{}, err
	}
	if exists {
		return resource.Descriptor{}, fmt.Errorf("rename to %s: %w", newPath, resource.ErrAlreadyExists)
	}

	if err := e.renameKey(ctx, oldKey, resource.WithUserPrefix(id, newPath)); err != nil {
		return resource.Descriptor{}, err
	}

	return resource.FileDescriptor(newPath, obj.Size), nil
}

// Move relocates a file into a target directory, keeping its name.
func (e *FileEngine) Move(ctx context.Context, id resource.UserID, path, targetDir string) (resource.Descriptor, error) {
	return e.Rename(ctx, id, path, join(targetDir, resource.Name(path)))
}

// Search returns descriptors for every file in the user's namespace whose
// name contains the query as a case-sensitive substring.
//
// The whole namespace is scanned per call, in store listing order; directory
// markers never match. There is no pagination.
func (e *FileEngine) Search(ctx context.Context, id resource.UserID, query string) ([]resource.Descriptor, error) {
	objects, err := e.gateway.List(ctx, id.Prefix())
	if err != nil {
		return nil, err
	}

	matches := make([]resource.Descriptor, 0)
	for _, obj := range objects {
		if resource.IsDir(obj.Key) {
			continue
		}

		path := resource.WithoutUserPrefix(obj.Key)
		if strings.Contains(resource.Name(path), query) {
			matches = append(matches, resource.FileDescriptor(path, obj.Size))
		}
	}

	return matches, nil
}

// renameKey copies one object to a new key and removes the old one, carrying
// size and content type over. No existence checks happen here; callers have
// already enforced the user-facing semantics.
//
// The source is deleted before the destination write completes, matching the
// documented copy-then-delete behavior. The memory and S3 gateways both keep
// an already-open reader valid across the delete.
func (e *FileEngine) renameKey(ctx context.Context, oldKey, newKey string) error {
	obj, err := e.gateway.Stat(ctx, oldKey)
	if err != nil {
		return err
	}

	r, err := e.gateway.Get(ctx, oldKey)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := e.gateway.Delete(ctx, oldKey); err != nil {
		return err
	}

	return e.gateway.Put(ctx, newKey, r, obj.Size, obj.ContentType)
}
