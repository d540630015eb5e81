// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bibresolve/internal/cache"
	"github.com/pdiddy/bibresolve/pkg/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the resolution cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of cached, negative and expired entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(ctx context.Context, cfg types.Config, admin cache.Admin) error {
			s, err := admin.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache: %s (%s)\n", cfg.Cache.Path, cfg.Cache.Backend)
			fmt.Fprintf(cmd.OutOrStdout(), "entries: %d (%d not found, %d expired)\n", s.Entries, s.Negative, s.Expired)
			return nil
		})
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(ctx context.Context, _ types.Config, admin cache.Admin) error {
			n, err := admin.Prune(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired entries\n", n)
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to clear the cache without --yes")
		}
		return withCache(cmd, func(ctx context.Context, _ types.Config, admin cache.Admin) error {
			if err := admin.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		})
	},
}

func init() {
	cacheClearCmd.Flags().Bool("yes", false, "confirm removal of every cached entry")

	cacheCmd.AddCommand(cacheStatsCmd, cachePruneCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

// withCache opens the configured store, runs fn against it and flushes the
// result.
func withCache(cmd *cobra.Command, fn func(context.Context, types.Config, cache.Admin) error) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := cache.Open(cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	admin, ok := store.(cache.Admin)
	if !ok {
		return fmt.Errorf("cache backend %q does not support maintenance", cfg.Cache.Backend)
	}
	if err := fn(cmd.Context(), cfg, admin); err != nil {
		return err
	}
	return store.Flush()
}
