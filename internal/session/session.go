// Package session runs the two halves of a cached job: Restore at job start
// and MaybeSave at job end. The halves run in separate processes and only
// communicate through the job state store, so neither keeps anything in
// memory for the other.
//
// The cache is strictly optional. Store failures in either half are logged as
// warnings and never returned as errors.
package session

import (
	"github.com/apex/log"

	"github.com/nileag/setup-go/internal/ci"
	"github.com/nileag/setup-go/internal/state"
	"github.com/nileag/setup-go/internal/store"
)

// DefaultPrimaryBranch is the only ref that writes back to the cache unless
// configured otherwise
const DefaultPrimaryBranch = "refs/heads/master"

// pathSeparator joins cache paths in job state
const pathSeparator = "\n"

// Controller restores and saves the Go build cache for one job run
type Controller struct {
	env           ci.Environment
	store         store.Store
	state         state.Store
	log           log.Interface
	primaryBranch string
}

// Option customizes a Controller
type Option func(*Controller)

// WithLogger sets the logger. Defaults to the apex/log global logger.
func WithLogger(l log.Interface) Option {
	return func(c *Controller) { c.log = l }
}

// WithPrimaryBranch sets the full ref allowed to write back to the cache
func WithPrimaryBranch(ref string) Option {
	return func(c *Controller) {
		if ref != "" {
			c.primaryBranch = ref
		}
	}
}

// New creates a controller for env backed by the artifact store st and the
// job state store js.
func New(env ci.Environment, st store.Store, js state.Store, opts ...Option) *Controller {
	c := &Controller{
		env:           env,
		store:         st,
		state:         js,
		log:           log.Log,
		primaryBranch: DefaultPrimaryBranch,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}
