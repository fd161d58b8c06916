package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/nileag/setup-go/internal/session"
	"github.com/nileag/setup-go/internal/store"
)

// Default configuration values
const (
	DefaultGoVersionFile       = "go.mod"
	DefaultCacheDependencyPath = "go.sum"
	DefaultWorkingDirectory    = "."
	DefaultCache               = true
	DefaultStore               = store.BackendLocal
	DefaultPrimaryBranch       = session.DefaultPrimaryBranch
)

// ErrMissingVersionFile is returned when go-version-file is empty
var ErrMissingVersionFile = errors.New("go-version-file is required")

// Holds the configuration options for setup-go
type Config struct {
	// Path to the file naming the Go version (go.mod, go.work, .go-version)
	GoVersionFile string

	// Path to the dependency lockfile fingerprinted into the cache key
	CacheDependencyPath string

	// Directory the job builds in
	WorkingDirectory string

	// Job name in the cache key; empty means the runner's job id
	JobName string

	// Enable the build cache
	Cache bool

	// Artifact store backend (local or s3)
	Store string

	// Local store directory
	CacheDir string

	// Job state directory used outside GitHub Actions
	StateDir string

	// Full ref that is allowed to write back to the cache
	PrimaryBranch string

	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool

	// Log level (debug, info, warn, error)
	LogLevel string
}

func Load() (*Config, error) {
	cfg := &Config{
		GoVersionFile:       viper.GetString("go-version-file"),
		CacheDependencyPath: viper.GetString("cache-dependency-path"),
		WorkingDirectory:    viper.GetString("working-directory"),
		JobName:             viper.GetString("job-name"),
		Cache:               viper.GetBool("cache"),
		Store:               viper.GetString("store"),
		CacheDir:            viper.GetString("cache-dir"),
		StateDir:            viper.GetString("state-dir"),
		PrimaryBranch:       viper.GetString("primary-branch"),
		S3Bucket:            viper.GetString("s3-bucket"),
		S3Prefix:            viper.GetString("s3-prefix"),
		S3Region:            viper.GetString("s3-region"),
		S3Endpoint:          viper.GetString("s3-endpoint"),
		S3PathStyle:         viper.GetBool("s3-path-style"),
		LogLevel:            viper.GetString("log-level"),
	}

	// Apply defaults if not set
	if cfg.CacheDependencyPath == "" {
		cfg.CacheDependencyPath = DefaultCacheDependencyPath
	}

	if cfg.WorkingDirectory == "" {
		cfg.WorkingDirectory = DefaultWorkingDirectory
	}

	if cfg.Store == "" {
		cfg.Store = DefaultStore
	}

	if cfg.PrimaryBranch == "" {
		cfg.PrimaryBranch = DefaultPrimaryBranch
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required options and resolves paths. Relative version and
// dependency files are taken relative to the working directory.
func (c *Config) Validate() error {
	if c.GoVersionFile == "" {
		return ErrMissingVersionFile
	}

	abs, err := filepath.Abs(c.WorkingDirectory)
	if err != nil {
		return fmt.Errorf("invalid working directory: %v", err)
	}

	c.WorkingDirectory = abs

	if !filepath.IsAbs(c.GoVersionFile) {
		c.GoVersionFile = filepath.Join(c.WorkingDirectory, c.GoVersionFile)
	}

	if c.CacheDependencyPath != "" && !filepath.IsAbs(c.CacheDependencyPath) {
		c.CacheDependencyPath = filepath.Join(c.WorkingDirectory, c.CacheDependencyPath)
	}

	switch c.Store {
	case store.BackendLocal:
	case store.BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3-bucket is required for the s3 store")
		}
	default:
		return fmt.Errorf("invalid store: %s", c.Store)
	}

	for _, dir := range []*string{&c.CacheDir, &c.StateDir} {
		if *dir == "" {
			continue
		}

		abs, err := filepath.Abs(*dir)
		if err != nil {
			return fmt.Errorf("invalid directory %s: %v", *dir, err)
		}

		*dir = abs
	}

	return nil
}

// StoreOptions returns the artifact store settings
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend: c.Store,
		Dir:     c.CacheDir,
		S3: store.S3Options{
			Bucket:    c.S3Bucket,
			Prefix:    c.S3Prefix,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			PathStyle: c.S3PathStyle,
		},
	}
}
