package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the analysis cache",
	Long: `Manage the analysis cache.

Analyses are kept in memory and, when cache.persist is set, in a bbolt file
under cache.dir in the project root. Entries expire after cache.max_age.

Available commands:
  stats  - Show cache counters
  clear  - Delete every cached analysis`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache counters",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached analysis",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, "")
	if err != nil {
		return err
	}
	defer a.Close()

	stats := a.engine.Analyzer().CacheStats()
	w := cmd.OutOrStdout()
	if a.root != "" && a.cfg.Cache.Persist {
		fmt.Fprintf(w, "Cache Location: %s\n", a.cfg.CacheDir(a.root))
	} else {
		fmt.Fprintf(w, "Cache Location: (memory only)\n")
	}
	fmt.Fprintf(w, "Persisted Entries: %d\n", stats.PersistedEntries)
	fmt.Fprintf(w, "Max Age: %s\n", a.cfg.Cache.MaxAge)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, "")
	if err != nil {
		return err
	}
	defer a.Close()

	before := a.engine.Analyzer().CacheStats().PersistedEntries
	if err := a.engine.Analyzer().ClearCache(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached analyses\n", before)
	return nil
}
