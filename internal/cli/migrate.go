package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pendergraft/veriport/internal/config"
	"github.com/pendergraft/veriport/internal/journal"
	"github.com/pendergraft/veriport/internal/migration"
	"github.com/pendergraft/veriport/internal/progress"
	"github.com/pendergraft/veriport/pkg/explorer"
)

type migrateOptions struct {
	sourceURL    string
	sourceAPIKey string
	targetURL    string
	targetAPIKey string
	concurrency  int
	pollAttempts uint
	pollInterval int
	progress     bool
	skipMigrated bool
	qualifyName  bool
	journalPath  string

	// changed reports whether a flag was set on the command line, so that
	// unset flags never clobber config-file values
	changed func(name string) bool
}

func createMigrateCmd() *cobra.Command {
	var opts migrateOptions

	cmd := &cobra.Command{
		Use:   "migrate <address>...",
		Short: "Copy contract verification from one explorer to another",
		Long: `Migrate the verification of one or more contracts from a source explorer
to a target explorer. Every address runs as its own migration; one contract's
failure never stops the others.

EXAMPLES:
  # Migrate one contract
  veriport migrate 0xE592427A0AEce92De3Edee1F18E0157C05861564 \
    --source-url https://api.etherscan.io/api \
    --target-url https://eth.blockscout.com/api

  # Migrate several contracts with a live progress display
  veriport migrate 0xAAA... 0xBBB... 0xCCC... --progress

  # Re-run a batch, skipping contracts that already migrated
  veriport migrate 0xAAA... 0xBBB... --skip-migrated
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.changed = cmd.Flags().Changed
			return runMigrate(cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.sourceURL, "source-url", "", "source explorer API URL")
	cmd.Flags().StringVar(&opts.sourceAPIKey, "source-api-key", "", "source explorer API key")
	cmd.Flags().StringVar(&opts.targetURL, "target-url", "", "target explorer API URL")
	cmd.Flags().StringVar(&opts.targetAPIKey, "target-api-key", "", "target explorer API key")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "max in-flight migrations (0 = unlimited)")
	cmd.Flags().UintVar(&opts.pollAttempts, "poll-attempts", 10, "status polls per contract before giving up")
	cmd.Flags().IntVar(&opts.pollInterval, "poll-interval", 10, "seconds between status polls")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show per-address progress")
	cmd.Flags().BoolVar(&opts.skipMigrated, "skip-migrated", false, "skip addresses the journal records as already migrated")
	cmd.Flags().BoolVar(&opts.qualifyName, "qualify-name", true, "submit contract names as <Name>.sol:<Name>")
	cmd.Flags().StringVar(&opts.journalPath, "journal", "", "journal database path (default: ~/.veriport/journal.db)")

	return cmd
}

func runMigrate(out io.Writer, addresses []string, opts migrateOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyMigrateFlags(cfg, opts)
	resolveAPIKeys(cfg)

	if cfg.Source.URL == "" {
		return fmt.Errorf("source explorer URL is required (--source-url, VERIPORT_SOURCE_URL or veriport.toml)")
	}
	if cfg.Target.URL == "" {
		return fmt.Errorf("target explorer URL is required (--target-url, VERIPORT_TARGET_URL or veriport.toml)")
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	source := explorer.New(cfg.Source.URL, cfg.Source.APIKey,
		explorer.WithRateLimit(cfg.Migrate.RequestsPerSecond))
	target := explorer.New(cfg.Target.URL, cfg.Target.APIKey,
		explorer.WithRateLimit(cfg.Migrate.RequestsPerSecond))

	pipeline := &migration.Pipeline{
		Source: source,
		Target: target,
		Convert: migration.ConvertOptions{
			QualifyContractName: cfg.Migrate.QualifyContractName,
		},
		Poll: migration.PollPolicy{
			Attempts: cfg.Migrate.PollAttempts,
			Interval: time.Duration(cfg.Migrate.PollIntervalSeconds) * time.Second,
		},
		Logger: log,
	}

	ctx := context.Background()

	// The journal is best effort: a broken journal degrades skip/resume but
	// never blocks the migration itself.
	var jnl *journal.Journal
	if j, err := journal.Open(cfg.JournalPath(), log); err != nil {
		log.Warn("journal unavailable", zap.Error(err))
	} else {
		jnl = j
		defer jnl.Close()
	}

	results := make([]migration.AddressResult, len(addresses))
	skipped := make([]bool, len(addresses))
	var pending []string
	var pendingIdx []int
	for i, addr := range addresses {
		if cfg.Migrate.SkipMigrated && jnl != nil {
			prev, err := jnl.LastOutcome(ctx, addr, cfg.Target.URL)
			switch {
			case err == nil:
				if o := migration.ParseOutcome(prev); o == migration.OutcomeSuccess || o == migration.OutcomeAlreadyVerified {
					results[i] = migration.AddressResult{Address: addr, Outcome: o}
					skipped[i] = true
					continue
				}
			case !errors.Is(err, journal.ErrNotFound):
				log.Warn("journal lookup failed", zap.String("address", addr), zap.Error(err))
			}
		}
		pending = append(pending, addr)
		pendingIdx = append(pendingIdx, i)
	}

	var reporter migration.Reporter
	if opts.progress {
		reporter = progress.For(os.Stdout, true)
	}

	batch := &migration.Batch{
		Pipeline:    pipeline,
		Concurrency: cfg.Migrate.Concurrency,
		Reporter:    reporter,
	}
	for k, res := range batch.MigrateAll(ctx, pending) {
		results[pendingIdx[k]] = res
	}
	if spinner, ok := reporter.(*progress.Spinner); ok {
		spinner.Stop()
	}

	if jnl != nil {
		for i, res := range results {
			if skipped[i] {
				continue
			}
			reason := ""
			if res.Err != nil {
				reason = res.Err.Error()
			}
			err := jnl.Record(ctx, journal.Entry{
				RunID:     runID,
				Address:   res.Address,
				SourceURL: cfg.Source.URL,
				TargetURL: cfg.Target.URL,
				Outcome:   res.Outcome.String(),
				Reason:    reason,
			})
			if err != nil {
				log.Warn("journal write failed", zap.String("address", res.Address), zap.Error(err))
			}
		}
	}

	printSummary(out, results, skipped)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d contracts failed to migrate", failed, len(results))
	}
	return nil
}

// applyMigrateFlags layers command line flags over the loaded config. String
// flags apply when non-empty; other flags only when explicitly set, so a
// config file value survives an unset flag's default.
func applyMigrateFlags(cfg *config.Config, opts migrateOptions) {
	if opts.sourceURL != "" {
		cfg.Source.URL = opts.sourceURL
	}
	if opts.sourceAPIKey != "" {
		cfg.Source.APIKey = opts.sourceAPIKey
	}
	if opts.targetURL != "" {
		cfg.Target.URL = opts.targetURL
	}
	if opts.targetAPIKey != "" {
		cfg.Target.APIKey = opts.targetAPIKey
	}
	if opts.journalPath != "" {
		cfg.Journal.Path = opts.journalPath
	}

	changed := opts.changed
	if changed == nil {
		changed = func(string) bool { return false }
	}
	if changed("concurrency") {
		cfg.Migrate.Concurrency = opts.concurrency
	}
	if changed("poll-attempts") {
		cfg.Migrate.PollAttempts = opts.pollAttempts
	}
	if changed("poll-interval") {
		cfg.Migrate.PollIntervalSeconds = opts.pollInterval
	}
	if changed("skip-migrated") {
		cfg.Migrate.SkipMigrated = opts.skipMigrated
	}
	if changed("qualify-name") {
		cfg.Migrate.QualifyContractName = opts.qualifyName
	}
}

func printSummary(out io.Writer, results []migration.AddressResult, skipped []bool) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tOUTCOME\tDETAIL")
	for i, res := range results {
		detail := ""
		switch {
		case res.Err != nil:
			detail = res.Err.Error()
		case skipped[i]:
			detail = "skipped (recorded by a previous run)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.Address, res.Outcome, detail)
	}
	w.Flush()
}
