package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var sourceURL string
	var targetURL string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project config file",
		Long: `Create a veriport.toml configuration file in the current directory.

The file stores the source and target explorer endpoints and migration
settings so they do not have to be repeated on every command.

EXAMPLES:
  # Create a config with explorer endpoints filled in
  veriport config init \
    --source-url https://api.etherscan.io/api \
    --target-url https://eth.blockscout.com/api

  # Overwrite an existing config
  veriport config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), sourceURL, targetURL, force)
		},
	}

	cmd.Flags().StringVar(&sourceURL, "source-url", "", "source explorer API URL")
	cmd.Flags().StringVar(&targetURL, "target-url", "", "target explorer API URL")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	return cmd
}

func runConfigInit(out io.Writer, sourceURL, targetURL string, force bool) error {
	configPath := "veriport.toml"

	if !force {
		for _, name := range []string{"veriport.toml", "vp.toml"} {
			if _, err := os.Stat(name); err == nil {
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", name)
			}
		}
	}

	content := fmt.Sprintf(`# Veriport project configuration

[source]
url = "%s"
# api_key = ""  # or use 'veriport auth login'

[target]
url = "%s"
# api_key = ""

[migrate]
# concurrency = 0          # max in-flight migrations, 0 = unlimited
# poll_attempts = 10       # status polls per contract before giving up
# poll_interval_seconds = 10
# qualify_contract_name = true
# skip_migrated = false    # consult the journal and skip finished contracts
# requests_per_second = 5.0

[logging]
# level = "info"           # debug, info, warn, error
# format = "console"       # console or json
`, sourceURL, targetURL)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Edit %s to fill in explorer endpoints\n", configPath)
	fmt.Fprintln(out, "  2. Run 'veriport auth login' to save explorer API keys")
	fmt.Fprintln(out, "  3. Run 'veriport migrate <address>...' to copy verification")

	return nil
}

func runConfigShow(out io.Writer) error {
	fmt.Fprintln(out, "Configuration sources (in order of precedence):")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "   --source-url, --target-url, --config, ...")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "2. Environment variables")
	for _, key := range []string{
		"VERIPORT_SOURCE_URL", "VERIPORT_SOURCE_API_KEY",
		"VERIPORT_TARGET_URL", "VERIPORT_TARGET_API_KEY",
		"VERIPORT_CONCURRENCY", "VERIPORT_JOURNAL_PATH",
	} {
		value := os.Getenv(key)
		switch {
		case value == "":
			fmt.Fprintf(out, "   %s=(not set)\n", key)
		case isAPIKeyEnv(key):
			fmt.Fprintf(out, "   %s=%s\n", key, maskAPIKey(value))
		default:
			fmt.Fprintf(out, "   %s=%s\n", key, value)
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "3. Project config (veriport.toml or vp.toml)")
	if cfgFile != "" {
		fmt.Fprintf(out, "   --config %s\n", cfgFile)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "4. Credentials (%s)\n", credentialsFilePath())
	creds, err := loadCredentials()
	switch {
	case os.IsNotExist(err):
		fmt.Fprintln(out, "   (not found)")
	case err != nil:
		fmt.Fprintf(out, "   Error: %v\n", err)
	case len(creds.Explorers) == 0:
		fmt.Fprintln(out, "   (no keys stored)")
	default:
		for url, cred := range creds.Explorers {
			fmt.Fprintf(out, "   %s: %s\n", url, maskAPIKey(cred.APIKey))
		}
	}
	fmt.Fprintln(out)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	resolveAPIKeys(cfg)

	fmt.Fprintln(out, "Effective configuration:")
	fmt.Fprintf(out, "   Source:       %s\n", orUnset(cfg.Source.URL))
	fmt.Fprintf(out, "   Source key:   %s\n", maskedOrUnset(cfg.Source.APIKey))
	fmt.Fprintf(out, "   Target:       %s\n", orUnset(cfg.Target.URL))
	fmt.Fprintf(out, "   Target key:   %s\n", maskedOrUnset(cfg.Target.APIKey))
	fmt.Fprintf(out, "   Concurrency:  %d\n", cfg.Migrate.Concurrency)
	fmt.Fprintf(out, "   Poll:         %d attempts, %ds apart\n", cfg.Migrate.PollAttempts, cfg.Migrate.PollIntervalSeconds)
	fmt.Fprintf(out, "   Journal:      %s\n", cfg.JournalPath())
	fmt.Fprintf(out, "   Logging:      %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)

	return nil
}

func isAPIKeyEnv(key string) bool {
	return key == "VERIPORT_SOURCE_API_KEY" || key == "VERIPORT_TARGET_API_KEY"
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func maskedOrUnset(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}
