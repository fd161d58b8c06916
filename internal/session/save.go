package session

import (
	"context"
	"errors"
	"strings"

	"github.com/nileag/setup-go/internal/state"
	"github.com/nileag/setup-go/internal/store"
)

// SaveOutcome is how MaybeSave finished
type SaveOutcome int

const (
	// Saved means the cache was written under the primary key
	Saved SaveOutcome = iota

	// SkippedBranch means the ref is not the primary branch
	SkippedBranch

	// SkippedHit means the primary key was an exact hit at restore
	SkippedHit

	// SkippedNoState means the restore step left no usable state
	SkippedNoState

	// SaveFailed means the store rejected or failed the save
	SaveFailed
)

func (o SaveOutcome) String() string {
	switch o {
	case Saved:
		return "saved"
	case SkippedBranch:
		return "skipped: not the primary branch"
	case SkippedHit:
		return "skipped: exact cache hit"
	case SkippedNoState:
		return "skipped: no restore state"
	case SaveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MaybeSave writes the cache back at job end when warranted. The checks run
// in order and the first that applies ends the call:
//
//  1. only the primary branch writes shared cache
//  2. an exact hit means the store already holds this key
//  3. without a recorded key and paths there is nothing safe to save
//
// The hit check comes before the state check so the common exact-hit path
// does not warn about state it would not use anyway. Save failures are
// logged and reported through the outcome, never as an error.
func (c *Controller) MaybeSave(ctx context.Context) SaveOutcome {
	if c.env.Ref != c.primaryBranch {
		c.log.Infof("not saving cache: ref %q is not %s", c.env.Ref, c.primaryBranch)
		return SkippedBranch
	}

	if hit, _ := c.get(state.CacheHit); hit == "true" {
		c.log.Info("not saving cache: exact hit on primary key")
		return SkippedHit
	}

	key, okKey := c.get(state.CacheKey)
	paths, okPaths := c.get(state.CachePaths)
	if !okKey || !okPaths {
		c.log.Warn("not saving cache: no cache key or paths recorded by the restore step")
		return SkippedNoState
	}

	logger := c.log.WithField("key", key)

	if err := c.store.Save(ctx, strings.Split(paths, pathSeparator), key); err != nil {
		if errors.Is(err, store.ErrKeyExists) {
			logger.WithError(err).Warn("cache was saved by another job")
		} else {
			logger.WithError(err).Warn("cache save failed")
		}

		return SaveFailed
	}

	logger.Info("cache saved")

	return Saved
}

// get reads a state value, treating read errors and empty values as absent
func (c *Controller) get(name string) (string, bool) {
	v, ok, err := c.state.Get(name)
	if err != nil {
		c.log.WithError(err).Debugf("failed to read %s state", name)
		return "", false
	}

	return v, ok && v != ""
}
