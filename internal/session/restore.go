package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apex/log"

	"github.com/nileag/setup-go/internal/cachekey"
	"github.com/nileag/setup-go/internal/state"
)

// RestoreInput describes the job at start
type RestoreInput struct {
	// ToolchainVersion is the resolved Go version, e.g. 1.22.3
	ToolchainVersion string

	// WorkingDirectory is where relative paths are resolved
	WorkingDirectory string

	// JobName overrides the ambient job identifier
	JobName string

	// DependencyPath is the lockfile to fingerprint, go.sum by default
	DependencyPath string
}

// RestoreResult is the outcome of a restore
type RestoreResult struct {
	Identity cachekey.Identity
	Keys     cachekey.Keys

	// Paths are the directories that make up the cache payload
	Paths []string

	// RestoredKey is the key the store matched, empty on a miss
	RestoredKey string

	// CacheHit is true only when RestoredKey is exactly the primary key. A
	// fallback restore still restores content but is not a hit.
	CacheHit bool
}

// Identity computes the identity tuple for in
func (c *Controller) Identity(in RestoreInput) cachekey.Identity {
	depPath := in.DependencyPath
	if depPath == "" {
		depPath = "go.sum"
	}

	if !filepath.IsAbs(depPath) {
		depPath = filepath.Join(in.WorkingDirectory, depPath)
	}

	hash := cachekey.Fingerprint(depPath)
	if hash == cachekey.MissingHash {
		c.log.Warnf("dependency file %s could not be read, cache key will not track dependencies", depPath)
	}

	return cachekey.Identity{
		OS:               c.env.OS,
		ToolchainVersion: in.ToolchainVersion,
		JobName:          c.env.JobName(in.JobName),
		ContentHash:      hash,
	}
}

// Restore derives the cache keys for the job, restores the best match from
// the store and records the session state for MaybeSave. A store failure is
// a miss. Errors are reserved for a missing toolchain version and for job
// state that could not be persisted.
func (c *Controller) Restore(ctx context.Context, in RestoreInput) (RestoreResult, error) {
	if in.ToolchainVersion == "" {
		return RestoreResult{}, fmt.Errorf("toolchain version is required")
	}

	id := c.Identity(in)
	keys := cachekey.Derive(id)
	paths := c.env.CachePaths()

	result := RestoreResult{
		Identity: id,
		Keys:     keys,
		Paths:    paths,
	}

	logger := c.log.WithField("key", keys.Primary)
	logger.Debugf("restore keys: %s", strings.Join(keys.Restore, ", "))

	restored, err := c.store.Restore(ctx, paths, keys.Primary, keys.Restore)
	switch {
	case err != nil:
		logger.WithError(err).Warn("cache restore failed, continuing without cache")
	case restored == "":
		logger.Info("cache not found")
	default:
		result.RestoredKey = restored
		result.CacheHit = restored == keys.Primary
		logger.WithField("restored", restored).WithField("hit", result.CacheHit).Info("cache restored")
	}

	if err := c.persist(result); err != nil {
		return result, err
	}

	return result, nil
}

func (c *Controller) persist(r RestoreResult) error {
	values := []struct{ name, value string }{
		{state.CacheKey, r.Keys.Primary},
		{state.CachePaths, strings.Join(r.Paths, pathSeparator)},
		{state.CacheHit, strconv.FormatBool(r.CacheHit)},
	}

	for _, v := range values {
		if err := c.state.Save(v.name, v.value); err != nil {
			return fmt.Errorf("failed to save %s state: %w", v.name, err)
		}
	}

	c.log.WithFields(log.Fields{"key": r.Keys.Primary, "hit": r.CacheHit}).Debug("session state saved")

	return nil
}
