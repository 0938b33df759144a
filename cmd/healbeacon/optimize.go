// File: cmd/healbeacon/optimize.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healbeacon/internal/domopt"
	"github.com/xkilldash9x/healbeacon/internal/observability"
)

// newOptimizeCmd creates the `optimize` command, which reduces a DOM
// snapshot file to the form sent to the repair oracle.
func newOptimizeCmd() *cobra.Command {
	var outputPath string

	optimizeCmd := &cobra.Command{
		Use:   "optimize <snapshot.html>",
		Short: "Reduces an HTML snapshot to its locator-relevant skeleton",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading snapshot: %w", err)
			}

			optimizer := domopt.New(appCfg.Optimizer(), logger)
			result, err := optimizer.Optimize(string(raw))
			if err != nil {
				return fmt.Errorf("reducing snapshot: %w", err)
			}

			logger.Info("Snapshot reduced",
				zap.Int("original_elements", result.OriginalElements),
				zap.Int("optimized_elements", result.OptimizedElements),
				zap.Int("original_bytes", result.OriginalBytes),
				zap.Int("optimized_bytes", result.OptimizedBytes),
				zap.Float64("reduction_percent", result.ReductionPercent()),
				zap.Bool("truncated", result.Truncated))

			if outputPath != "" {
				return os.WriteFile(outputPath, []byte(result.HTML), 0o644)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.HTML)
			return nil
		},
	}

	optimizeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write reduced markup to a file instead of stdout")
	return optimizeCmd
}
