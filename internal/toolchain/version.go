// Package toolchain resolves the Go version a job builds with. The version is
// read from a version file (go.mod, go.work, .go-version or .tool-versions)
// and, when the installed toolchain satisfies it, refined to the exact
// installed release.
package toolchain

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

var (
	// ErrNoVersion is returned when a version file names no Go version
	ErrNoVersion = errors.New("no Go version found")

	// ErrNoWorkingDirectory is returned when the working directory is missing
	ErrNoWorkingDirectory = errors.New("working directory does not exist")
)

// ReadVersionFile returns the Go version requested by the file at path
// (e.g. "1.22" or "1.22.3"). For go.mod and go.work a toolchain directive
// takes precedence over the go directive.
func ReadVersionFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read version file: %w", err)
	}

	var version string

	switch filepath.Base(path) {
	case "go.mod":
		f, err := modfile.ParseLax(path, data, nil)
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", path, err)
		}

		switch {
		case f.Toolchain != nil:
			version = f.Toolchain.Name
		case f.Go != nil:
			version = f.Go.Version
		}

	case "go.work":
		f, err := modfile.ParseWork(path, data, nil)
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", path, err)
		}

		switch {
		case f.Toolchain != nil:
			version = f.Toolchain.Name
		case f.Go != nil:
			version = f.Go.Version
		}

	case ".tool-versions":
		version = toolVersion(data)

	default:
		version = string(bytes.TrimSpace(data))
	}

	version = Normalize(version)
	if version == "" {
		return "", fmt.Errorf("%w in %s", ErrNoVersion, path)
	}

	return version, nil
}

// toolVersion finds the golang entry of an asdf .tool-versions file
func toolVersion(data []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && (fields[0] == "golang" || fields[0] == "go") {
			return fields[1]
		}
	}

	return ""
}

// Normalize strips the go/v prefix and any suffix after whitespace, so
// "go1.22.3", "v1.22.3" and "1.22.3" all become "1.22.3".
func Normalize(v string) string {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return ""
	}

	v = fields[0]
	v = strings.TrimPrefix(v, "go")
	v = strings.TrimPrefix(v, "v")

	return v
}

// ValidateWorkingDirectory fails if dir does not exist or is not a directory
func ValidateWorkingDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNoWorkingDirectory, dir)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNoWorkingDirectory, dir)
	}

	return nil
}
