// File: cmd/healbeacon/heal.go
package main

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healbeacon/internal/domopt"
	"github.com/xkilldash9x/healbeacon/internal/healing"
	"github.com/xkilldash9x/healbeacon/internal/observability"
	"github.com/xkilldash9x/healbeacon/internal/selectorcache"
)

// newHealCmd creates the `heal` command: resolve a locator against a live
// page, repairing it if it no longer matches.
func newHealCmd() *cobra.Command {
	var (
		targetURL   string
		description string
	)

	healCmd := &cobra.Command{
		Use:   "heal <locator>",
		Short: "Resolves a locator against a live page, repairing it if broken",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cache, err := selectorcache.New(appCfg.Cache(), logger)
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			defer closeCache(cache)

			oracle, err := healing.NewGeminiOracle(appCfg.Oracle(), logger)
			if err != nil {
				return fmt.Errorf("creating repair oracle: %w", err)
			}

			sessionCtx, cancelSession, err := newBrowserSession(ctx)
			if err != nil {
				return fmt.Errorf("starting browser: %w", err)
			}
			defer cancelSession()

			backend := healing.NewChromedpBackend(sessionCtx, appCfg.Browser(), logger)
			if err := backend.Navigate(ctx, targetURL); err != nil {
				return err
			}

			engine := healing.NewEngine(
				cache,
				domopt.New(appCfg.Optimizer(), logger),
				oracle,
				backend,
				nil,
				logger,
			)

			res, err := engine.Resolve(ctx, args[0], description, nil)
			if err != nil {
				return err
			}

			logger.Info("Locator resolved",
				zap.String("attempt_id", res.AttemptID),
				zap.Bool("healed", res.Healed),
				zap.Bool("from_cache", res.FromCache))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Predicate.Strategy, res.Predicate.Expression)
			return nil
		},
	}

	healCmd.Flags().StringVarP(&targetURL, "url", "u", "", "page to resolve the locator against")
	healCmd.Flags().StringVarP(&description, "description", "d", "", "human description of the target element")
	_ = healCmd.MarkFlagRequired("url")
	return healCmd
}

// newBrowserSession starts an isolated headless browser for one command
// invocation.
func newBrowserSession(ctx context.Context) (context.Context, context.CancelFunc, error) {
	opts := append([]chromedp.ExecAllocatorOption{},
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)
	if appCfg.Browser().Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	sessionCtx, cancelSession := chromedp.NewContext(allocCtx)

	// Force the browser to start now so failures surface here, not on the
	// first query.
	if err := chromedp.Run(sessionCtx); err != nil {
		cancelSession()
		cancelAlloc()
		return nil, nil, err
	}

	return sessionCtx, func() {
		cancelSession()
		cancelAlloc()
	}, nil
}
