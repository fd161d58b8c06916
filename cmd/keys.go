package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nileag/setup-go/internal/cachekey"
	"github.com/nileag/setup-go/internal/ci"
	"github.com/nileag/setup-go/internal/session"
	"github.com/nileag/setup-go/internal/toolchain"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Print the cache keys for this job",
		Long: `Print the cache keys derived for this job, most specific first. The first
line is the primary key.`,
		RunE:         runKeys,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
}

func runKeys(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := toolchain.ValidateWorkingDirectory(cfg.WorkingDirectory); err != nil {
		return err
	}

	goVersion, err := newResolver().Resolve(ctx, cfg.GoVersionFile)
	if err != nil {
		return err
	}

	env := ci.FromEnv(getenv)
	id := session.New(env, nil, nil, session.WithLogger(logger)).Identity(session.RestoreInput{
		ToolchainVersion: goVersion,
		WorkingDirectory: cfg.WorkingDirectory,
		JobName:          cfg.JobName,
		DependencyPath:   cfg.CacheDependencyPath,
	})

	for _, key := range cachekey.Derive(id).Restore {
		fmt.Fprintln(cmd.OutOrStdout(), key)
	}

	return nil
}
