package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DefaultDir is the state directory name under the user cache directory
	DefaultDir = "setup-go"

	dbName = "state.db"
)

// BoltStore persists state in a bbolt database with one bucket per run
type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
}

// NewBoltStore opens (or creates) the state database in dir, scoped to runID
func NewBoltStore(dir, runID string) (*BoltStore, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve state directory: %w", err)
		}

		dir = filepath.Join(base, DefaultDir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, dbName), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	return &BoltStore{db: db, bucket: []byte(runID)}, nil
}

// Close closes the state database
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// Save implements Store
func (s *BoltStore) Save(name, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}

		return b.Put([]byte(name), []byte(value))
	})
}

// Get implements Store
func (s *BoltStore) Get(name string) (string, bool, error) {
	var (
		value string
		found bool
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}

		if data := b.Get([]byte(name)); data != nil {
			value = string(data)
			found = true
		}

		return nil
	})
	if err != nil {
		return "", false, err
	}

	return value, found, nil
}

// Clear drops everything recorded for this run
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(s.bucket) == nil {
			return nil
		}

		return tx.DeleteBucket(s.bucket)
	})
}
