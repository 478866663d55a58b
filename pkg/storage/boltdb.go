// Package storage optionally persists the registry's bookkeeping so an
// orchestrator restart can reconcile against real containers instead
// of leaking them. It is not snippet storage.
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/tailot/taylored-orchestrator/pkg/types"
)

var bucketRunners = []byte("runners")

// BoltStore persists types.Runner records keyed by session id.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a BoltDB file named
// "runners.db" under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "runners.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRunners)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Put writes or overwrites the record for runner.SessionID.
func (s *BoltStore) Put(runner types.Runner) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRunners)
		data, err := json.Marshal(runner)
		if err != nil {
			return err
		}
		return b.Put([]byte(runner.SessionID), data)
	})
}

// Delete removes the record for sessionID, if any.
func (s *BoltStore) Delete(sessionID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRunners).Delete([]byte(sessionID))
	})
}

// LoadAll returns every persisted runner record.
func (s *BoltStore) LoadAll() ([]types.Runner, error) {
	var out []types.Runner
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRunners)
		return b.ForEach(func(k, v []byte) error {
			var run types.Runner
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("storage: decode record %q: %w", k, err)
			}
			out = append(out, run)
			return nil
		})
	})
	return out, err
}
