// Package store implements the artifact store used to persist Go build caches
// between job runs.
//
// A Store maps immutable string keys to archives of a set of directories.
// Restore tries the primary key as an exact match first, then each restore key
// in order, where a restore key matches the newest entry whose key starts with
// it. Save never overwrites: the first writer of a key wins and later writers
// get ErrKeyExists.
//
// Two backends are provided: LocalStore keeps archives on disk with a bbolt
// index, S3Store keeps them in an S3 (or S3 compatible) bucket.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrKeyExists is returned by Save when the key is already stored
	ErrKeyExists = errors.New("cache key already exists")

	// ErrNoPaths is returned when a save or restore is given no paths
	ErrNoPaths = errors.New("no cache paths")

	// ErrEmptyPayload is returned by Save when none of the paths exist
	ErrEmptyPayload = errors.New("none of the cache paths exist")
)

// Store restores and saves cache archives
type Store interface {
	// Restore extracts the best matching entry into paths and returns the
	// key that matched, or "" on a miss.
	Restore(ctx context.Context, paths []string, primaryKey string, restoreKeys []string) (string, error)

	// Save archives paths under key.
	Save(ctx context.Context, paths []string, key string) error
}

// index is what a backend needs to provide for key matching
type index interface {
	// exists reports whether key is stored exactly
	exists(ctx context.Context, key string) (bool, error)

	// newest returns the most recently created key starting with prefix
	newest(ctx context.Context, prefix string) (string, bool, error)
}

// match resolves primaryKey and restoreKeys against idx. The primary key only
// matches exactly; restore keys match by prefix. Element 0 of restoreKeys is
// usually the primary key itself.
func match(ctx context.Context, idx index, primaryKey string, restoreKeys []string) (string, error) {
	if primaryKey == "" {
		return "", fmt.Errorf("primary key is required")
	}

	ok, err := idx.exists(ctx, primaryKey)
	if err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", primaryKey, err)
	}

	if ok {
		return primaryKey, nil
	}

	for _, prefix := range restoreKeys {
		if prefix == "" {
			continue
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}

		key, ok, err := idx.newest(ctx, prefix)
		if err != nil {
			return "", fmt.Errorf("failed to look up %s: %w", prefix, err)
		}

		if ok {
			return key, nil
		}
	}

	return "", nil
}
