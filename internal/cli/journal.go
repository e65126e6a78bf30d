package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/veriport/internal/journal"
)

func createJournalCmd() *cobra.Command {
	var journalPath string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the migration journal",
	}

	cmd.PersistentFlags().StringVar(&journalPath, "journal", "", "journal database path (default: ~/.veriport/journal.db)")

	cmd.AddCommand(createJournalListCmd(&journalPath))
	cmd.AddCommand(createJournalClearCmd(&journalPath))

	return cmd
}

func createJournalListCmd(journalPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded migration attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalList(cmd.OutOrStdout(), *journalPath, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to show")

	return cmd
}

func createJournalClearCmd(journalPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every journal entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalClear(cmd.OutOrStdout(), *journalPath)
		},
	}

	return cmd
}

func openJournal(path string) (*journal.Journal, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if path != "" {
		cfg.Journal.Path = path
	}
	return journal.Open(cfg.JournalPath(), nil)
}

func runJournalList(out io.Writer, path string, limit int) error {
	jnl, err := openJournal(path)
	if err != nil {
		return err
	}
	defer jnl.Close()

	entries, err := jnl.List(context.Background(), limit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "Journal is empty")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tADDRESS\tOUTCOME\tTARGET\tREASON")
	for _, e := range entries {
		ts := ""
		if !e.CreatedAt.IsZero() {
			ts = e.CreatedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ts, e.Address, e.Outcome, e.TargetURL, e.Reason)
	}
	return w.Flush()
}

func runJournalClear(out io.Writer, path string) error {
	jnl, err := openJournal(path)
	if err != nil {
		return err
	}
	defer jnl.Close()

	n, err := jnl.Clear(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Removed %d journal entries\n", n)
	return nil
}
