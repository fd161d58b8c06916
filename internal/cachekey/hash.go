package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

const (
	// MissingHash is the fingerprint of a dependency file that could not be read
	MissingHash = "missing"

	// hashLength is the number of hex characters kept from the digest
	hashLength = 8
)

// Fingerprint returns the first 8 hex characters of the SHA-256 digest of the
// file at path, or MissingHash if the file cannot be read for any reason.
func Fingerprint(path string) string {
	sum, err := HashFile(path)
	if err != nil {
		return MissingHash
	}

	return sum[:hashLength]
}

// HashFile creates a hash of a file's content
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
