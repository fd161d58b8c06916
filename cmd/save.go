package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nileag/setup-go/internal/ci"
	"github.com/nileag/setup-go/internal/session"
)

func newSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "save",
		Aliases: []string{"post"},
		Short:   "Save the Go build cache",
		Long: `Save the Go build cache at the end of a job. The cache is only written
from the primary branch and only when the restore step missed the primary key.
Failures are reported as warnings and never fail the job.`,
		RunE:         runSave,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
}

// clearer is implemented by job state stores that outlive the job run
type clearer interface {
	Clear() error
}

func runSave(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if !cfg.Cache {
		logger.Info("cache disabled")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env := ci.FromEnv(getenv).ResolveRef(cfg.WorkingDirectory)

	js, closeState, err := openState(env, cfg.StateDir, getenv)
	if err != nil {
		logger.WithError(err).Warn("job state unavailable, not saving cache")
		return nil
	}
	defer closeState()

	st, closeStore, err := openStore(ctx, cfg.StoreOptions())
	if err != nil {
		logger.WithError(err).Warn("cache store unavailable, not saving cache")
		return nil
	}
	defer closeStore()

	controller := session.New(env, st, js,
		session.WithLogger(logger),
		session.WithPrimaryBranch(cfg.PrimaryBranch),
	)

	outcome := controller.MaybeSave(ctx)
	logger.WithField("outcome", outcome.String()).Debug("save step finished")

	if c, ok := js.(clearer); ok {
		if err := c.Clear(); err != nil {
			logger.WithError(err).Debug("failed to clear job state")
		}
	}

	return nil
}
