package store

import "time"

// Entry represents a stored cache archive
type Entry struct {
	// Key is the cache key the archive was saved under
	Key string `json:"key"`

	// Paths are the directories that were archived, in order
	Paths []string `json:"paths"`

	// Archive is the archive file name, relative to the artifacts directory
	Archive string `json:"archive"`

	// Size of the archive in bytes
	Size int64 `json:"size"`

	// Created is when the entry was saved
	Created time.Time `json:"created"`
}
