package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/veriport/pkg/explorer"
)

// Credentials stores API keys per explorer URL
type Credentials struct {
	Explorers map[string]ExplorerCredential `yaml:"explorers"`
}

// ExplorerCredential stores the credential for a single explorer
type ExplorerCredential struct {
	APIKey string `yaml:"api_key"`
	Name   string `yaml:"name,omitempty"` // Optional name/description
}

func createAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Explorer API key management",
	}

	cmd.AddCommand(createAuthLoginCmd())
	cmd.AddCommand(createAuthLogoutCmd())
	cmd.AddCommand(createAuthStatusCmd())

	return cmd
}

func createAuthLoginCmd() *cobra.Command {
	var urlFlag string
	var apiKeyFlag string
	var skipValidate bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an explorer API key",
		Long: `Save an API key for a block explorer API endpoint.

The key is stored in ~/.veriport/credentials with secure file permissions
and used whenever that explorer appears as a migration source or target.

EXAMPLES:
  # Interactive login (prompts for the API key)
  veriport auth login --url https://api.etherscan.io/api

  # Non-interactive login (for CI)
  veriport auth login --url https://api.etherscan.io/api --api-key $ETHERSCAN_KEY
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd.OutOrStdout(), urlFlag, apiKeyFlag, skipValidate)
		},
	}

	cmd.Flags().StringVar(&urlFlag, "url", "", "explorer API URL (default: configured target, then source)")
	cmd.Flags().StringVar(&apiKeyFlag, "api-key", "", "API key (prompts if not provided)")
	cmd.Flags().BoolVar(&skipValidate, "skip-validate", false, "save without checking the key against the explorer")

	return cmd
}

func createAuthLogoutCmd() *cobra.Command {
	var urlFlag string
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove saved explorer API keys",
		Long: `Remove the saved API key for an explorer.

EXAMPLES:
  # Forget one explorer's key
  veriport auth logout --url https://api.etherscan.io/api

  # Forget everything
  veriport auth logout --all
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogout(cmd.OutOrStdout(), urlFlag, allFlag)
		},
	}

	cmd.Flags().StringVar(&urlFlag, "url", "", "explorer API URL (default: configured target, then source)")
	cmd.Flags().BoolVar(&allFlag, "all", false, "remove all saved keys")

	return cmd
}

func createAuthStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show saved explorer API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(cmd.OutOrStdout())
		},
	}

	return cmd
}

func runAuthLogin(out io.Writer, explorerURL, apiKeyInput string, skipValidate bool) error {
	explorerURL, err := resolveAuthURL(explorerURL)
	if err != nil {
		return err
	}

	apiKey := apiKeyInput
	if apiKey == "" {
		fmt.Fprintf(out, "Enter API key for %s: ", explorerURL)

		// Read without echo when stdin is a terminal
		stdinFd := int(os.Stdin.Fd())
		if term.IsTerminal(stdinFd) {
			byteKey, err := term.ReadPassword(stdinFd)
			fmt.Fprintln(out)
			if err != nil {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			apiKey = string(byteKey)
		} else {
			reader := bufio.NewReader(os.Stdin)
			key, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			apiKey = strings.TrimSpace(key)
		}
	}

	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if !skipValidate {
		fmt.Fprintf(out, "Validating key with %s...\n", explorerURL)
		valid, err := validateAPIKey(explorerURL, apiKey)
		if err != nil {
			return fmt.Errorf("failed to validate key: %w", err)
		}
		if !valid {
			return fmt.Errorf("explorer rejected the API key")
		}
	}

	if err := saveCredential(explorerURL, apiKey); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintf(out, "Saved key for %s (%s)\n", explorerURL, maskAPIKey(apiKey))
	fmt.Fprintf(out, "Credentials file: %s\n", credentialsFilePath())

	return nil
}

func runAuthLogout(out io.Writer, explorerURL string, all bool) error {
	if all {
		path := credentialsFilePath()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}
		fmt.Fprintln(out, "All saved keys removed")
		return nil
	}

	explorerURL, err := resolveAuthURL(explorerURL)
	if err != nil {
		return err
	}

	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(out, "No key saved for %s\n", explorerURL)
			return nil
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if _, exists := creds.Explorers[explorerURL]; !exists {
		fmt.Fprintf(out, "No key saved for %s\n", explorerURL)
		return nil
	}

	delete(creds.Explorers, explorerURL)

	if err := writeCredentials(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintf(out, "Removed key for %s\n", explorerURL)
	return nil
}

func runAuthStatus(out io.Writer) error {
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "No explorer keys saved")
			fmt.Fprintln(out, "\nRun 'veriport auth login' to save one")
			return nil
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if len(creds.Explorers) == 0 {
		fmt.Fprintln(out, "No explorer keys saved")
		fmt.Fprintln(out, "\nRun 'veriport auth login' to save one")
		return nil
	}

	fmt.Fprintln(out, "Saved explorer keys:")
	for url, cred := range creds.Explorers {
		masked := maskAPIKey(cred.APIKey)
		if cred.Name != "" {
			fmt.Fprintf(out, "  %s (%s, key: %s)\n", url, cred.Name, masked)
		} else {
			fmt.Fprintf(out, "  %s (key: %s)\n", url, masked)
		}
	}

	return nil
}

// resolveAuthURL picks the explorer the auth command operates on: the --url
// flag, then the configured target, then the configured source.
func resolveAuthURL(explorerURL string) (string, error) {
	if explorerURL != "" {
		return explorerURL, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Target.URL != "" {
		return cfg.Target.URL, nil
	}
	if cfg.Source.URL != "" {
		return cfg.Source.URL, nil
	}
	return "", fmt.Errorf("explorer URL is required (--url, VERIPORT_TARGET_URL or veriport.toml)")
}

// validateAPIKey probes the explorer with the key. Etherscan-compatible APIs
// answer any request made with a bad key with an "Invalid API Key" result, so
// a throwaway lookup distinguishes a bad key from everything else.
func validateAPIKey(explorerURL, apiKey string) (bool, error) {
	c := explorer.New(explorerURL, apiKey, explorer.WithRateLimit(0))
	zero := "0x0000000000000000000000000000000000000000"
	_, err := c.GetSourceCode(context.Background(), zero)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "invalid api key") {
		return false, nil
	}
	// Any other answer (including "not verified") means the key was accepted
	return true, nil
}

// Credential file helpers

func credentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".veriport"
	}
	return filepath.Join(home, ".veriport")
}

func credentialsFilePath() string {
	return filepath.Join(credentialsDir(), "credentials")
}

func loadCredentials() (*Credentials, error) {
	path := credentialsFilePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	if creds.Explorers == nil {
		creds.Explorers = make(map[string]ExplorerCredential)
	}

	return &creds, nil
}

func writeCredentials(creds *Credentials) error {
	dir := credentialsDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	path := credentialsFilePath()
	return os.WriteFile(path, data, 0600) // Secure permissions
}

func saveCredential(explorerURL, apiKey string) error {
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			creds = &Credentials{Explorers: make(map[string]ExplorerCredential)}
		} else {
			return err
		}
	}

	creds.Explorers[explorerURL] = ExplorerCredential{APIKey: apiKey}
	return writeCredentials(creds)
}

func getCredential(explorerURL string) string {
	if explorerURL == "" {
		return ""
	}
	creds, err := loadCredentials()
	if err != nil {
		return ""
	}
	if cred, ok := creds.Explorers[explorerURL]; ok {
		return cred.APIKey
	}
	return ""
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
