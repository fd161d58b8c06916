package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nileag/setup-go/internal/ci"
	"github.com/nileag/setup-go/internal/session"
	"github.com/nileag/setup-go/internal/state"
	"github.com/nileag/setup-go/internal/toolchain"
)

// Output names
const (
	outputGoVersion = "go-version"
	outputCacheHit  = "cache-hit"
)

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "restore",
		Short:        "Restore the Go build cache",
		Long:         `Resolve the Go version, derive the cache keys for this job and restore the best matching cache.`,
		RunE:         runRestore,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
}

func runRestore(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := toolchain.ValidateWorkingDirectory(cfg.WorkingDirectory); err != nil {
		logger.WithError(err).Error("invalid working directory")
		return err
	}

	goVersion, err := newResolver().Resolve(ctx, cfg.GoVersionFile)
	if err != nil {
		logger.WithError(err).Errorf("failed to resolve Go version from %s", cfg.GoVersionFile)
		return err
	}

	logger.Infof("using Go %s", goVersion)

	env := ci.FromEnv(getenv).ResolveRef(cfg.WorkingDirectory)
	outputs := ci.NewOutputs(env.OutputFile, cmd.OutOrStdout())

	if err := outputs.Set(outputGoVersion, goVersion); err != nil {
		return fmt.Errorf("failed to set output: %w", err)
	}

	js, closeState, err := openState(env, cfg.StateDir, getenv)
	if err != nil {
		logger.WithError(err).Warn("job state unavailable, continuing without cache")
		return outputs.Set(outputCacheHit, "false")
	}
	defer closeState()

	// State left by an earlier run under the same run id must never reach
	// the save step
	if err := resetState(js); err != nil {
		logger.WithError(err).Warn("failed to reset job state, continuing without cache")
		return outputs.Set(outputCacheHit, "false")
	}

	if !cfg.Cache {
		logger.Info("cache disabled")
		return outputs.Set(outputCacheHit, "false")
	}

	st, closeStore, err := openStore(ctx, cfg.StoreOptions())
	if err != nil {
		logger.WithError(err).Warn("cache store unavailable, continuing without cache")
		return outputs.Set(outputCacheHit, "false")
	}
	defer closeStore()

	controller := session.New(env, st, js,
		session.WithLogger(logger),
		session.WithPrimaryBranch(cfg.PrimaryBranch),
	)

	result, err := controller.Restore(ctx, session.RestoreInput{
		ToolchainVersion: goVersion,
		WorkingDirectory: cfg.WorkingDirectory,
		JobName:          cfg.JobName,
		DependencyPath:   cfg.CacheDependencyPath,
	})
	if err != nil {
		// The restore itself already happened; only the save step is affected
		logger.WithError(err).Warn("failed to record cache state, the cache will not be saved")
	}

	return outputs.Set(outputCacheHit, strconv.FormatBool(result.CacheHit))
}

// resetState drops job state from earlier runs. Stores scoped by the runner,
// such as the Actions state file, have nothing to drop.
func resetState(js state.Store) error {
	if c, ok := js.(clearer); ok {
		return c.Clear()
	}

	return nil
}
