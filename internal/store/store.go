// Package store caches the current session locally so a restart can restore
// the conversation. It is a convenience cache, not a durability guarantee.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"lingchat/internal/domain"
)

var (
	currentKey     = []byte("session:current")
	snapshotPrefix = "snapshot:"
)

// Store persists session snapshots in a badger database.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the cache at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Save stores the snapshot under its session id and marks it current.
func (s *Store) Save(snapshot domain.Snapshot) error {
	if snapshot.SessionID == "" {
		return errors.New("snapshot has no session id")
	}
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = time.Now().UTC()
	}

	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(snapshotKey(snapshot.SessionID), encoded); err != nil {
			return err
		}
		return txn.Set(currentKey, []byte(snapshot.SessionID))
	})
}

// Load returns the current session snapshot, if any.
func (s *Store) Load() (domain.Snapshot, bool, error) {
	var snapshot domain.Snapshot
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(currentKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		sessionID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err = txn.Get(snapshotKey(string(sessionID)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		encoded, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(encoded, &snapshot); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	return snapshot, found, nil
}

// Clear drops the current snapshot pointer and its payload.
func (s *Store) Clear() error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(currentKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		sessionID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(snapshotKey(string(sessionID))); err != nil {
			return err
		}
		return txn.Delete(currentKey)
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func snapshotKey(sessionID string) []byte {
	return []byte(snapshotPrefix + sessionID)
}
