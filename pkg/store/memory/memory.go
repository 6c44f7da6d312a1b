package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/dittodrive/pkg/store"
)

// MemoryGateway implements store.Gateway using an in-memory map.
//
// It exists for testing and development: the engines are exercised against
// it without a running object store, and it doubles as the reference
// implementation for the conformance suite in pkg/store/testing.
//
// Characteristics:
//   - Volatile: data is lost on restart
//   - Thread-safe: protected by an RWMutex
//   - Listing order: lexicographic by key, matching S3's native ordering
//
// Data is copied on read and write so callers can never observe each other's
// buffers.
type MemoryGateway struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		objects: make(map[string]memObject),
	}
}

// Stat implements store.Gateway.
func (g *MemoryGateway) Stat(ctx context.Context, key string) (*store.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	obj, ok := g.objects[key]
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", key, store.ErrObjectNotFound)
	}

	return &store.Object{
		Key:         key,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
	}, nil
}

// Exists implements store.Gateway.
func (g *MemoryGateway) Exists(ctx context.Context, prefix string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for key := range g.objects {
		if strings.HasPrefix(key, prefix) {
			return true, nil
		}
	}

	return false, nil
}

// List implements store.Gateway. Results are sorted lexicographically to
// match the key ordering of a real object store.
func (g *MemoryGateway) List(ctx context.Context, prefix string) ([]store.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var objects []store.Object
	for key, obj := range g.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, store.Object{
				Key:         key,
				Size:        int64(len(obj.data)),
				ContentType: obj.contentType,
			})
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})

	return objects, nil
}

// Get implements store.Gateway. The reader serves a copy of the stored
// bytes, so later writes to the same key do not affect it.
func (g *MemoryGateway) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	obj, ok := g.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, store.ErrObjectNotFound)
	}

	data := make([]byte, len(obj.data))
	copy(data, obj.data)

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put implements store.Gateway. Existing keys are overwritten
// unconditionally.
func (g *MemoryGateway) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.objects[key] = memObject{
		data:        data,
		contentType: contentType,
	}

	return nil
}

// Delete implements store.Gateway. Deleting an absent key succeeds.
func (g *MemoryGateway) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.objects, key)

	return nil
}
