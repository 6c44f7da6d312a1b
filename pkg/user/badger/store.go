// Package badger implements the user store on BadgerDB, a fast embedded
// key-value store.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/dittodrive/pkg/resource"
	"github.com/marmos91/dittodrive/pkg/user"
)

// Key schema:
//
//	u:id:<8-byte big-endian id>  -> JSON user record
//	u:name:<username>            -> 8-byte big-endian id
//	u:seq                        -> id sequence (managed by Badger)
//
// The name index makes username uniqueness a single txn.Get inside the same
// transaction that inserts the record, so concurrent sign-ups for one name
// cannot both succeed.
const (
	idKeyPrefix   = "u:id:"
	nameKeyPrefix = "u:name:"
	seqKey        = "u:seq"
)

// BadgerUserStore implements user.Store with persistence across restarts.
//
// All mutations run inside Badger transactions, which provide the atomicity
// the Store contract requires. The store owns the database handle and closes
// it on Close.
type BadgerUserStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// BadgerUserStoreConfig contains configuration for creating the store.
type BadgerUserStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files. Created if it
	// does not exist.
	DBPath string

	// InMemory runs Badger without touching disk. Used by tests and by
	// deployments that accept losing accounts on restart.
	InMemory bool
}

// NewBadgerUserStore opens the database and prepares the id sequence.
func NewBadgerUserStore(ctx context.Context, config BadgerUserStoreConfig) (*BadgerUserStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(config.DBPath)
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)
	if config.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	// Ids start at 1; bandwidth 1 keeps them dense at the cost of one disk
	// write per allocation, which sign-up volume does not notice.
	seq, err := db.GetSequence([]byte(seqKey), 1)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open id sequence: %w", err)
	}

	return &BadgerUserStore{db: db, seq: seq}, nil
}

// Create implements user.Store.
func (s *BadgerUserStore) Create(ctx context.Context, username, passwordHash string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next, err := s.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate user id: %w", err)
	}

	record := &user.User{
		ID:           resource.UserID(next + 1),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		nameKey := []byte(nameKeyPrefix + username)

		_, err := txn.Get(nameKey)
		if err == nil {
			return fmt.Errorf("create %s: %w", username, user.ErrUsernameTaken)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check username: %w", err)
		}

		recordBytes, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode user: %w", err)
		}

		if err := txn.Set(idKey(record.ID), recordBytes); err != nil {
			return fmt.Errorf("failed to store user: %w", err)
		}

		return txn.Set(nameKey, encodeID(record.ID))
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// GetByUsername implements user.Store.
func (s *BadgerUserStore) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record *user.User

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(nameKeyPrefix + username))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%s: %w", username, user.ErrUserNotFound)
			}
			return fmt.Errorf("failed to read username index: %w", err)
		}

		var id resource.UserID
		if err := item.Value(func(val []byte) error {
			id = decodeID(val)
			return nil
		}); err != nil {
			return err
		}

		record, err = getByID(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// GetByID implements user.Store.
func (s *BadgerUserStore) GetByID(ctx context.Context, id resource.UserID) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record *user.User

	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		record, err = getByID(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Close releases the id sequence and the database handle.
func (s *BadgerUserStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to release id sequence: %w", err)
	}

	return s.db.Close()
}

func getByID(txn *badger.Txn, id resource.UserID) (*user.User, error) {
	item, err := txn.Get(idKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, user.ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to read user: %w", err)
	}

	var record user.User
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode user %d: %w", id, err)
	}

	return &record, nil
}

func idKey(id resource.UserID) []byte {
	key := make([]byte, len(idKeyPrefix)+8)
	copy(key, idKeyPrefix)
	binary.BigEndian.PutUint64(key[len(idKeyPrefix):], uint64(id))
	return key
}

func encodeID(id resource.UserID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func decodeID(val []byte) resource.UserID {
	if len(val) != 8 {
		return 0
	}
	return resource.UserID(binary.BigEndian.Uint64(val))
}
