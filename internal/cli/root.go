package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pendergraft/veriport/internal/config"
	"github.com/pendergraft/veriport/internal/logger"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// Execute runs the CLI
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:     "veriport",
		Short:   "Copy contract verification between block explorers",
		Long: `Veriport copies verified contract source code between Etherscan-compatible
block explorers: it fetches the verified source metadata from one explorer,
converts it to a standard-json-input verification request, submits it to a
second explorer, and polls until verification finishes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: veriport.toml or vp.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")

	// Add subcommands
	rootCmd.AddCommand(createMigrateCmd())
	rootCmd.AddCommand(createFetchCmd())
	rootCmd.AddCommand(createAuthCmd())
	rootCmd.AddCommand(createConfigCmd())
	rootCmd.AddCommand(createJournalCmd())

	return rootCmd.Execute()
}

// loadConfig loads the effective configuration: defaults, project TOML file,
// VERIPORT_* environment variables, then the global --log-level/--log-format
// flags on top. Per-command flags are applied by each command afterwards.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

// resolveAPIKeys fills in endpoint API keys from the credentials file for
// explorers the user has logged in to. Keys already set by flag, env or
// config file win.
func resolveAPIKeys(cfg *config.Config) {
	if cfg.Source.APIKey == "" {
		cfg.Source.APIKey = getCredential(cfg.Source.URL)
	}
	if cfg.Target.APIKey == "" {
		cfg.Target.APIKey = getCredential(cfg.Target.URL)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Logging.Level, cfg.Logging.Format)
}
