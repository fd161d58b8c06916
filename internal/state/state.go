// Package state hands job-scoped values from the restore step of a job run to
// its save step. The two steps run as separate processes, so values must be
// persisted outside memory: inside GitHub Actions through the runner's
// GITHUB_STATE file, elsewhere in a bbolt database keyed by run.
package state

import (
	"fmt"

	"github.com/nileag/setup-go/internal/ci"
)

// Names of the values persisted between the restore and save steps
const (
	CacheKey   = "cacheKey"
	CachePaths = "cachePaths"
	CacheHit   = "cacheHit"
)

// Store persists string values for the duration of one job run
type Store interface {
	// Save records value under name
	Save(name, value string) error

	// Get returns the value recorded under name and whether it was found
	Get(name string) (string, bool, error)
}

// Open returns the store for env. Inside Actions (GITHUB_STATE set) values go
// through the runner; otherwise they live in a bbolt database under dir,
// scoped to env.RunID.
func Open(env ci.Environment, dir string, getenv func(string) string) (Store, func() error, error) {
	if env.StateFile != "" {
		return NewActionsStore(env.StateFile, getenv), func() error { return nil }, nil
	}

	s, err := NewBoltStore(dir, env.RunID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}

	return s, s.Close, nil
}
