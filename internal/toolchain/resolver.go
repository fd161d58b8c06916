package toolchain

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/apex/log"
)

// Commander interface for testing
type Commander interface {
	Output() ([]byte, error)
}

// Resolver asks the installed go binary for its version
type Resolver struct {
	execCommand func(ctx context.Context, name string, args ...string) Commander

	// log defaults to the apex/log global logger
	log log.Interface
}

// NewResolver creates a resolver running the go binary on PATH
func NewResolver() *Resolver {
	return &Resolver{
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			return exec.CommandContext(ctx, name, args...)
		},
	}
}

// Installed returns the version of the go binary on PATH, e.g. "1.22.3"
func (p *Resolver) Installed(ctx context.Context) (string, error) {
	out, err := p.execCommand(ctx, "go", "env", "GOVERSION").Output()
	if err != nil {
		return "", fmt.Errorf("failed to run go env: %w", err)
	}

	raw := strings.TrimSpace(string(out))
	if !strings.HasPrefix(raw, "go") {
		// devel builds report "devel +hash"
		return "", fmt.Errorf("unrecognised go version %q", raw)
	}

	return Normalize(raw), nil
}

// Resolve returns the version for the version file at path. When the
// installed toolchain satisfies the requested version (same release, or a
// patch release of a requested minor line) the installed version is returned.
// Otherwise, or when no go binary answers, the requested version is returned
// as written, which may be a minor line such as "1.22", and a warning says so.
func (p *Resolver) Resolve(ctx context.Context, path string) (string, error) {
	requested, err := ReadVersionFile(path)
	if err != nil {
		return "", err
	}

	logger := p.logger().WithField("requested", requested)

	installed, err := p.Installed(ctx)
	if err != nil {
		logger.WithError(err).Warnf("installed Go version unknown, using %s from %s", requested, path)
		return requested, nil
	}

	if Satisfies(installed, requested) {
		return installed, nil
	}

	logger.WithField("installed", installed).Warnf("installed Go does not satisfy %s, using the requested version", requested)

	return requested, nil
}

func (p *Resolver) logger() log.Interface {
	if p.log != nil {
		return p.log
	}

	return log.Log
}

// Satisfies reports whether installed is requested or a release within it.
// "1.22.3" satisfies "1.22" and "1.22.3" but not "1.2" or "1.22.4".
func Satisfies(installed, requested string) bool {
	if installed == "" || requested == "" {
		return false
	}

	return installed == requested || strings.HasPrefix(installed, requested+".")
}
