package storage

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketActorState = []byte("actor_state")

// BoltStore implements Store using BoltDB. All actor state lives in a
// single bucket under the composite key "<actorID>|<key>"; bolt
// serializes update transactions, which gives per-key linearizability.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "grace.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketActorState); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketActorState, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle so sibling components (reminders,
// read-model projections) can keep their buckets in the same file.
func (s *BoltStore) DB() *bolt.DB {
	return s.db
}

func compositeKey(actorID, key string) []byte {
	return []byte(actorID + "|" + key)
}

func (s *BoltStore) Save(actorID, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActorState)
		return b.Put(compositeKey(actorID, key), value)
	})
}

func (s *BoltStore) Retrieve(actorID, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActorState)
		data := b.Get(compositeKey(actorID, key))
		if data != nil {
			// Copy out: bolt buffers are only valid inside the transaction.
			value = append([]byte(nil), data...)
		}
		return nil
	})
	return value, err
}

func (s *BoltStore) Delete(actorID, key string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActorState)
		k := compositeKey(actorID, key)
		existed = b.Get(k) != nil
		return b.Delete(k)
	})
	return existed, err
}
