package ci

import (
	"fmt"

	gogit "github.com/go-git/go-git/v5"
)

// DetectRef returns the full name of the ref HEAD points at in the git
// repository containing dir, e.g. refs/heads/master. A detached HEAD yields
// "HEAD".
func DetectRef(dir string) (string, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("failed to open repository at %s: %w", dir, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	return head.Name().String(), nil
}

// ResolveRef fills in e.Ref from the repository at dir when the platform did
// not report one. It never fails: an undetectable ref leaves Ref empty, which
// no branch guard treats as primary.
func (e Environment) ResolveRef(dir string) Environment {
	if e.Ref != "" {
		return e
	}

	if ref, err := DetectRef(dir); err == nil {
		e.Ref = ref
	}

	return e
}
