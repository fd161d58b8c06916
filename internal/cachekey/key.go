// Package cachekey derives the hierarchical cache keys used for Go build caches.
//
// A key is built from an Identity: the runner OS, the resolved toolchain version,
// the job name and a short fingerprint of the dependency lockfile (go.sum). Keys
// are joined with a dash under a fixed namespace tag:
//
//	golang-Linux-1.22.0-build-a1b2c3d4
//
// The restore list is the primary key followed by its left prefixes, so a store
// can fall back from "same job, same dependencies" down to "same OS":
//
//	golang-Linux-1.22.0-build-a1b2c3d4
//	golang-Linux-1.22.0-build
//	golang-Linux-1.22.0
//	golang-Linux
package cachekey

import "strings"

const (
	// Namespace is the leading segment of every key
	Namespace = "golang"

	// Delimiter joins key segments
	Delimiter = "-"

	// DefaultOS is used when the runner does not report an OS
	DefaultOS = "Linux"
)

// Identity is the tuple that scopes cache sharing for one job run
type Identity struct {
	OS               string
	ToolchainVersion string
	JobName          string
	ContentHash      string
}

// Keys holds the primary key and the ordered restore list
type Keys struct {
	// Primary is the most specific key
	Primary string

	// Restore is ordered from most to least specific. Restore[0] == Primary.
	Restore []string
}

// Fallbacks returns the restore keys after the primary key
func (k Keys) Fallbacks() []string {
	if len(k.Restore) <= 1 {
		return nil
	}

	out := make([]string, len(k.Restore)-1)
	copy(out, k.Restore[1:])

	return out
}

// Segments returns the key segments in order: namespace, os, version, job, hash
func (id Identity) Segments() []string {
	osName := id.OS
	if osName == "" {
		osName = DefaultOS
	}

	return []string{Namespace, osName, id.ToolchainVersion, id.JobName, id.ContentHash}
}

// Derive computes the primary key and the restore list for id.
func Derive(id Identity) Keys {
	segments := id.Segments()

	// full, without hash, without job, without version
	restore := make([]string, 0, len(segments)-1)
	for n := len(segments); n >= 2; n-- {
		restore = append(restore, strings.Join(segments[:n], Delimiter))
	}

	return Keys{
		Primary: restore[0],
		Restore: restore,
	}
}
