package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nileag/setup-go/internal/config"
	applog "github.com/nileag/setup-go/internal/log"
	"github.com/nileag/setup-go/internal/state"
	"github.com/nileag/setup-go/internal/store"
	"github.com/nileag/setup-go/internal/toolchain"
	"github.com/nileag/setup-go/internal/version"
)

var rootCmd = newRootCmd()

// Seams replaced in tests
var (
	getenv    = os.Getenv
	openStore = store.Open
	openState = state.Open
	newResolver = func() versionResolver { return toolchain.NewResolver() }
)

// versionResolver turns a version file into the Go version for the cache key
type versionResolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup-go",
		Short: "Go build cache for CI jobs",
		Long: `Restore and save the Go build and module caches of a CI job.

Run without a subcommand at the start of a job to restore the cache, and
with "save" at the end of the job to write it back.`,
		RunE:         runRestore,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}

	cmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	addConfigFlags(cmd.PersistentFlags())
	cmd.AddCommand(newRestoreCmd(), newSaveCmd(), newKeysCmd(), newCacheCmd())

	return cmd
}

func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(flags *pflag.FlagSet) {
	flags.String("go-version-file", config.DefaultGoVersionFile, "File naming the Go version (go.mod, go.work, .go-version, .tool-versions)")
	flags.String("cache-dependency-path", config.DefaultCacheDependencyPath, "Dependency file fingerprinted into the cache key")
	flags.StringP("working-directory", "C", config.DefaultWorkingDirectory, "Directory the job builds in")
	flags.String("job-name", "", "Job name in the cache key (default: the runner's job id)")
	flags.Bool("cache", config.DefaultCache, "Enable the build cache")
	flags.String("store", config.DefaultStore, "Cache store backend (local, s3)")
	flags.String("cache-dir", "", "Local store directory")
	flags.String("state-dir", "", "Job state directory used outside GitHub Actions")
	flags.String("primary-branch", config.DefaultPrimaryBranch, "Full ref allowed to save the cache")
	flags.String("s3-bucket", "", "S3 bucket for the s3 store")
	flags.String("s3-prefix", "", "Object key prefix for the s3 store")
	flags.String("s3-region", "", "AWS region for the s3 store")
	flags.String("s3-endpoint", "", "Custom S3 endpoint, e.g. a MinIO server")
	flags.Bool("s3-path-style", false, "Use path-style S3 addressing")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig loads the configuration and sets up logging to w
func loadConfig(cmd *cobra.Command, w io.Writer) (*config.Config, log.Interface, error) {
	cfg, err := config.NewLoader(config.WithGetenv(getenv)).LoadForCommand(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, applog.Init(w, cfg.LogLevel), nil
}
