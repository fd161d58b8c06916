// Package ci models the CI platform around a job run: the ambient identity of
// the runner (OS, job, ref, home directory), job-visible outputs, and the
// current source control ref.
//
// Nothing in the core reads the process environment directly. Callers build an
// Environment once with FromEnv and pass it down, which keeps every phase
// testable without a real runner.
package ci

import (
	"os"
	"path/filepath"

	"github.com/nileag/setup-go/internal/cachekey"
)

// Environment variables read from the runner
const (
	EnvRunnerOS    = "RUNNER_OS"
	EnvJob         = "GITHUB_JOB"
	EnvRef         = "GITHUB_REF"
	EnvRunID       = "GITHUB_RUN_ID"
	EnvRunAttempt  = "GITHUB_RUN_ATTEMPT"
	EnvOutputFile  = "GITHUB_OUTPUT"
	EnvStateFile   = "GITHUB_STATE"
	EnvHome        = "HOME"
	defaultJobName = "local"
)

// Environment is the read-only ambient context of a job run
type Environment struct {
	// OS is the runner operating system (Linux, macOS, Windows)
	OS string

	// JobID is the platform's job identifier
	JobID string

	// Ref is the current source control ref, e.g. refs/heads/master
	Ref string

	// Home is the home directory of the invoking user
	Home string

	// RunID scopes job state to one attempt of one job
	RunID string

	// OutputFile receives job outputs; empty means stdout
	OutputFile string

	// StateFile receives job state for the post step; empty outside Actions
	StateFile string
}

// FromEnv builds an Environment from getenv, falling back to defaults for
// anything the runner does not provide.
func FromEnv(getenv func(string) string) Environment {
	if getenv == nil {
		getenv = os.Getenv
	}

	env := Environment{
		OS:         getenv(EnvRunnerOS),
		JobID:      getenv(EnvJob),
		Ref:        getenv(EnvRef),
		Home:       getenv(EnvHome),
		OutputFile: getenv(EnvOutputFile),
		StateFile:  getenv(EnvStateFile),
	}

	if env.OS == "" {
		env.OS = cachekey.DefaultOS
	}

	if env.JobID == "" {
		env.JobID = defaultJobName
	}

	if env.Home == "" {
		if home, err := os.UserHomeDir(); err == nil {
			env.Home = home
		}
	}

	env.RunID = runID(getenv(EnvRunID), getenv(EnvRunAttempt), env.JobID)

	return env
}

// JobName returns explicit if set, otherwise the ambient job identifier
func (e Environment) JobName(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if e.JobID != "" {
		return e.JobID
	}

	return defaultJobName
}

// CachePaths returns the Go build cache and module cache directories under
// the home directory. The order is fixed.
func (e Environment) CachePaths() []string {
	return []string{
		filepath.Join(e.Home, ".cache", "go-build"),
		filepath.Join(e.Home, "go", "pkg", "mod"),
	}
}

func runID(id, attempt, job string) string {
	if id == "" {
		return job
	}

	if attempt == "" {
		attempt = "1"
	}

	return id + "-" + attempt + "-" + job
}
