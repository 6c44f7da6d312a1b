// Package memory implements a volatile user store for tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodrive/pkg/resource"
	"github.com/marmos91/dittodrive/pkg/user"
)

// MemoryUserStore implements user.Store with an in-memory map, guarded by a
// mutex so the uniqueness check and the insert are atomic.
type MemoryUserStore struct {
	mu     sync.RWMutex
	nextID resource.UserID
	byID   map[resource.UserID]*user.User
	byName map[string]resource.UserID
}

// NewMemoryUserStore creates an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		nextID: 1,
		byID:   make(map[resource.UserID]*user.User),
		byName: make(map[string]resource.UserID),
	}
}

// Create implements user.Store.
func (s *MemoryUserStore) Create(ctx context.Context, username, passwordHash string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[username]; taken {
		return nil, fmt.Errorf("create %s: %w", username, user.ErrUsernameTaken)
	}

	record := &user.User{
		ID:           s.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.nextID++

	s.byID[record.ID] = record
	s.byName[username] = record.ID

	copied := *record
	return &copied, nil
}

// GetByUsername implements user.Store.
func (s *MemoryUserStore) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, fmt.Errorf("%s: %w", username, user.ErrUserNotFound)
	}

	copied := *s.byID[id]
	return &copied, nil
}

// GetByID implements user.Store.
func (s *MemoryUserStore) GetByID(ctx context.Context, id resource.UserID) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, user.ErrUserNotFound)
	}

	copied := *record
	return &copied, nil
}

// Close implements user.Store. Nothing to release.
func (s *MemoryUserStore) Close() error {
	return nil
}
