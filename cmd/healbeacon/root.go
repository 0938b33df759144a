// File: cmd/healbeacon/root.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healbeacon/internal/config"
	"github.com/xkilldash9x/healbeacon/internal/observability"
)

// Version is set at build time using ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0"
var Version = "0.1"

var (
	cfgFile string
	appCfg  config.Interface
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "healbeacon",
		Short:   "Healbeacon repairs broken selectors in automated browser tests.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Runs before any subcommand, setting up config and logging.
			v, err := initializeViper()
			if err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// Fall back to a minimal logger so the error is still visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "healbeacon"})
				return fmt.Errorf("failed to load config: %w", err)
			}
			appCfg = cfg

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Info("Starting healbeacon", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newOptimizeCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newHealCmd())
	return rootCmd
}

// Execute runs the root command with the signal-aware context, returning a
// process exit code.
func Execute(ctx context.Context) int {
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if observability.Initialized() {
			observability.GetLogger().Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	return 0
}

// initializeViper reads in the config file and environment variables.
func initializeViper() (*viper.Viper, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("HEALBEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}
	return v, nil
}
