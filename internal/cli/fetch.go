package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pendergraft/veriport/internal/validation"
	"github.com/pendergraft/veriport/pkg/explorer"
)

func createFetchCmd() *cobra.Command {
	var output string
	var sourceURL string
	var sourceAPIKey string

	cmd := &cobra.Command{
		Use:   "fetch <address>",
		Short: "Download a contract's verified source from an explorer",
		Long: `Download the verified source code of a contract from the source explorer
and write it to disk without submitting it anywhere.

Flattened sources are written as a single .sol file; multi-file sources are
exploded under sources/; standard-json-input verified sources are written as
standard-json-input.json. Compiler settings go to metadata.json alongside.

EXAMPLES:
  # Fetch a contract's verified source
  veriport fetch 0xE592427A0AEce92De3Edee1F18E0157C05861564 \
    --source-url https://api.etherscan.io/api

  # Fetch into a specific directory
  veriport fetch 0xE592427A0AEce92De3Edee1F18E0157C05861564 --output ./contracts
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.OutOrStdout(), args[0], output, sourceURL, sourceAPIKey)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ".", "output directory")
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "source explorer API URL")
	cmd.Flags().StringVar(&sourceAPIKey, "source-api-key", "", "source explorer API key")

	return cmd
}

func runFetch(out io.Writer, address, output, sourceURL, sourceAPIKey string) error {
	if err := validation.ValidateAddress(address); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sourceURL != "" {
		cfg.Source.URL = sourceURL
	}
	if sourceAPIKey != "" {
		cfg.Source.APIKey = sourceAPIKey
	}
	resolveAPIKeys(cfg)

	if cfg.Source.URL == "" {
		return fmt.Errorf("source explorer URL is required (--source-url, VERIPORT_SOURCE_URL or veriport.toml)")
	}

	c := explorer.New(cfg.Source.URL, cfg.Source.APIKey,
		explorer.WithRateLimit(cfg.Migrate.RequestsPerSecond))

	md, err := c.GetSourceCode(context.Background(), address)
	if err != nil {
		return fmt.Errorf("failed to fetch source: %w", err)
	}

	outDir := filepath.Join(output, fmt.Sprintf("%s@%s", md.ContractName, strings.ToLower(address)))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	fmt.Fprintf(out, "Fetching %s (%s)\n", md.ContractName, address)

	switch src := md.Source.(type) {
	case explorer.SingleFile:
		path := filepath.Join(outDir, md.ContractName+".sol")
		if err := os.WriteFile(path, []byte(src.Content), 0644); err != nil {
			return fmt.Errorf("failed to write source: %w", err)
		}
		fmt.Fprintf(out, "  %s.sol\n", md.ContractName)

	case explorer.StandardJSONInput:
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, src.Raw, "", "  "); err != nil {
			// Keep whatever the explorer sent if it does not re-indent
			pretty.Reset()
			pretty.Write(src.Raw)
		}
		path := filepath.Join(outDir, "standard-json-input.json")
		if err := os.WriteFile(path, pretty.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write source: %w", err)
		}
		fmt.Fprintln(out, "  standard-json-input.json")

	case explorer.SourcesMap:
		for name, content := range src.Files {
			rel := sanitizeSourcePath(name)
			if rel == "" {
				continue
			}
			path := filepath.Join(outDir, "sources", rel)
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("failed to create source directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", rel, err)
			}
			fmt.Fprintf(out, "  sources/%s\n", rel)
		}

	default:
		return fmt.Errorf("unrecognized source encoding")
	}

	metadata := map[string]any{
		"contract_name":     md.ContractName,
		"compiler_version":  md.CompilerVersion,
		"evm_version":       md.EVMVersion,
		"optimization_used": md.OptimizationUsed,
		"runs":              md.Runs,
		"license_type":      md.LicenseType,
		"proxy":             md.Proxy,
	}
	if len(md.ConstructorArguments) > 0 {
		metadata["constructor_arguments"] = hex.EncodeToString(md.ConstructorArguments)
	}
	if md.Implementation != "" {
		metadata["implementation"] = md.Implementation
	}
	metadataData, _ := json.MarshalIndent(metadata, "", "  ")
	if err := os.WriteFile(filepath.Join(outDir, "metadata.json"), metadataData, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	fmt.Fprintln(out, "  metadata.json")

	fmt.Fprintf(out, "\nSaved to %s\n", outDir)
	return nil
}

// sanitizeSourcePath confines an explorer-supplied file path to a relative
// path inside the output directory. Explorers report paths verbatim from the
// verification payload, so absolute paths and ".." segments must not escape.
func sanitizeSourcePath(name string) string {
	cleaned := filepath.Clean("/" + filepath.FromSlash(name))
	return strings.TrimPrefix(cleaned, string(filepath.Separator))
}
