package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nileag/setup-go/internal/store"
)

const defaultMaxAge = 7 * 24 * time.Hour

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local cache store",
		Long:  `Inspect and maintain the local cache store.`,
	}

	statsCmd := &cobra.Command{
		Use:          "stats",
		Short:        "Show cache statistics",
		RunE:         runCacheStats,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}

	clearCmd := &cobra.Command{
		Use:          "clear",
		Short:        "Remove every cache entry",
		RunE:         runCacheClear,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}

	pruneCmd := &cobra.Command{
		Use:          "prune",
		Short:        "Remove cache entries older than --max-age",
		RunE:         runCachePrune,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
	pruneCmd.Flags().Duration("max-age", defaultMaxAge, "Remove entries created longer ago than this")

	cacheCmd.AddCommand(statsCmd, clearCmd, pruneCmd)

	return cacheCmd
}

// openLocal opens the local store named by the configuration
func openLocal(cmd *cobra.Command) (*store.LocalStore, error) {
	cfg, _, err := loadConfig(cmd, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	if cfg.Store != store.BackendLocal {
		return nil, fmt.Errorf("cache maintenance requires the local store, not %s", cfg.Store)
	}

	s, err := store.NewLocal(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	return s, nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	s, err := openLocal(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	count, size, err := s.Stats()
	if err != nil {
		return fmt.Errorf("failed to get cache stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache entries: %d\n", count)
	fmt.Fprintf(out, "Total size: %s\n", humanize.Bytes(uint64(size)))

	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	s, err := openLocal(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")

	return nil
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	maxAge, err := cmd.Flags().GetDuration("max-age")
	if err != nil {
		return err
	}

	s, err := openLocal(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	removed, err := s.Prune(maxAge)
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s older than %s\n", removed, pluralize(removed, "entry", "entries"), maxAge)

	return nil
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}

	return many
}
