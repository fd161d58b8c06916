package store

import (
	"context"
	"fmt"
)

// Backend names
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Options selects and configures a backend
type Options struct {
	// Backend is BackendLocal or BackendS3. Empty means local.
	Backend string

	// Dir is the local store directory
	Dir string

	S3 S3Options
}

// Open creates the store described by opts. The returned function releases
// any resources held by the store.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	switch opts.Backend {
	case "", BackendLocal:
		s, err := NewLocal(opts.Dir)
		if err != nil {
			return nil, nil, err
		}

		return s, s.Close, nil

	case BackendS3:
		s, err := OpenS3(ctx, opts.S3)
		if err != nil {
			return nil, nil, err
		}

		return s, func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
