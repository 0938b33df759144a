// File: cmd/healbeacon/cache.go
package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healbeacon/internal/observability"
	"github.com/xkilldash9x/healbeacon/internal/selectorcache"
)

// newCacheCmd groups the durable-tier inspection commands.
func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the selector cache",
	}
	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCacheClearCmd())
	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Prints the durable tier location and entry count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := selectorcache.New(appCfg.Cache(), observability.GetLogger())
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			defer closeCache(cache)

			fmt.Fprintf(cmd.OutOrStdout(), "directory: %s\n", cache.Directory())
			fmt.Fprintf(cmd.OutOrStdout(), "entries:   %d\n", cache.Size())
			fmt.Fprintf(cmd.OutOrStdout(), "hit rate:  %.1f%%\n", cache.Metrics().HitRate()*100)

			usage := cache.UsageSummary()
			keys := make([]string, 0, len(usage))
			for key := range usage {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				us := usage[key]
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d attempts, %.1f%% success\n",
					key, us.Attempts, us.SuccessRate()*100)
			}
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empties the cache and deletes the durable documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := selectorcache.New(appCfg.Cache(), observability.GetLogger())
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			defer closeCache(cache)

			removed := cache.Size()
			cache.Clear()
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d entries\n", removed)
			return nil
		},
	}
}

func closeCache(cache *selectorcache.Cache) {
	grace := appCfg.Cache().FlushGracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := cache.Close(ctx); err != nil {
		observability.GetLogger().Warn("Cache close did not drain cleanly", zap.Error(err))
	}
}
