package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DefaultLocalDir is the cache directory name under the user cache directory
	DefaultLocalDir = "setup-go-cache"

	// bucketName is the BoltDB bucket name for cache entries
	bucketName = "entries"

	artifactsDir = "artifacts"
)

// LocalStore keeps cache archives on disk and indexes them with BoltDB
type LocalStore struct {
	db   *bbolt.DB
	root string // Root directory for the store
	now  func() time.Time
}

var _ Store = (*LocalStore)(nil)

// NewLocal creates a local store rooted at dir.
// If dir is empty, uses DefaultLocalDir in the user cache directory
func NewLocal(dir string) (*LocalStore, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
		}

		dir = filepath.Join(base, DefaultLocalDir)
	}

	if err := os.MkdirAll(filepath.Join(dir, artifactsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, "cache.db"), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &LocalStore{
		db:   db,
		root: dir,
		now:  time.Now,
	}, nil
}

// Close closes the cache database
func (s *LocalStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// Restore implements Store
func (s *LocalStore) Restore(ctx context.Context, paths []string, primaryKey string, restoreKeys []string) (string, error) {
	if len(paths) == 0 {
		return "", ErrNoPaths
	}

	key, err := match(ctx, s, primaryKey, restoreKeys)
	if err != nil || key == "" {
		return "", err
	}

	entry, err := s.Get(key)
	if err != nil {
		return "", err
	}

	if entry == nil {
		return "", fmt.Errorf("entry %s disappeared during restore", key)
	}

	f, err := os.Open(s.archivePath(entry.Archive))
	if err != nil {
		return "", fmt.Errorf("failed to open archive for %s: %w", key, err)
	}
	defer f.Close()

	if err := Unpack(ctx, f, paths); err != nil {
		return "", fmt.Errorf("failed to restore %s: %w", key, err)
	}

	return key, nil
}

// Save implements Store. The archive is written to a temporary file and only
// renamed into place once the key is claimed in the index.
func (s *LocalStore) Save(ctx context.Context, paths []string, key string) error {
	if key == "" {
		return fmt.Errorf("cache key is required")
	}

	if ok, err := s.exists(ctx, key); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrKeyExists, key)
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, artifactsDir), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	defer os.Remove(tmp.Name())

	if err := Pack(ctx, tmp, paths); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to archive cache paths: %w", err)
	}

	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	entry := Entry{
		Key:     key,
		Paths:   paths,
		Archive: archiveName(key),
		Size:    info.Size(),
		Created: s.now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		// A racing writer may have claimed the key since the check above
		if b.Get([]byte(key)) != nil {
			return fmt.Errorf("%w: %s", ErrKeyExists, key)
		}

		if err := os.Rename(tmp.Name(), s.archivePath(entry.Archive)); err != nil {
			return fmt.Errorf("failed to store archive: %w", err)
		}

		return b.Put([]byte(key), data)
	})
}

// Get retrieves an entry by exact key
// Returns nil if not stored
func (s *LocalStore) Get(key string) (*Entry, error) {
	var entry *Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}

		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", key, err)
	}

	return entry, nil
}

func (s *LocalStore) exists(_ context.Context, key string) (bool, error) {
	entry, err := s.Get(key)
	return entry != nil, err
}

// newest scans keys sharing prefix; bbolt keeps keys sorted so the scan stops
// at the first key past the prefix.
func (s *LocalStore) newest(_ context.Context, prefix string) (string, bool, error) {
	var (
		best    string
		created time.Time
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		p := []byte(prefix)

		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to decode entry %s: %w", k, err)
			}

			if best == "" || entry.Created.After(created) {
				best, created = entry.Key, entry.Created
			}
		}

		return nil
	})
	if err != nil {
		return "", false, err
	}

	return best, best != "", nil
}

// Stats returns the number of entries and their total archive size
func (s *LocalStore) Stats() (int, int64, error) {
	var (
		count int
		size  int64
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}

			count++
			size += entry.Size

			return nil
		})
	})
	if err != nil {
		return 0, 0, err
	}

	return count, size, nil
}

// Clear removes all entries and archives
func (s *LocalStore) Clear() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return err
	}

	dir := filepath.Join(s.root, artifactsDir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove artifacts: %w", err)
	}

	return os.MkdirAll(dir, 0o755)
}

// Prune removes entries created more than maxAge ago and returns how many
// were removed. maxAge <= 0 is a no-op.
func (s *LocalStore) Prune(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	cutoff := s.now().Add(-maxAge)

	var stale []Entry
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		err := b.ForEach(func(_, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}

			if entry.Created.Before(cutoff) {
				stale = append(stale, entry)
			}

			return nil
		})
		if err != nil {
			return err
		}

		for _, entry := range stale {
			if err := b.Delete([]byte(entry.Key)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}

	for _, entry := range stale {
		if err := os.Remove(s.archivePath(entry.Archive)); err != nil && !os.IsNotExist(err) {
			return len(stale), fmt.Errorf("failed to remove archive for %s: %w", entry.Key, err)
		}
	}

	return len(stale), nil
}

func (s *LocalStore) archivePath(name string) string {
	return filepath.Join(s.root, artifactsDir, name)
}

// archiveName keeps arbitrary keys safe to use as file names
func archiveName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + ".tgz"
}
