package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/beancount"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/config"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/db"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pathutil"
)

var statsYear int

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display posting statistics",
	Long: `Display statistics about reconciled periods and posted entries.

Shows:
- Total number of posted entries
- Number of reconciled periods and runs
- Last posting timestamp
- Beancount month files written for the year

Example:
  settle-books stats
  settle-books stats --year 2024`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsYear, "year", time.Now().Year(), "Year whose Beancount files are listed")
}

func runStats(cmd *cobra.Command, args []string) error {
	slog.Info("Loading configuration")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate([]string{"books", "root"}); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	paths := pathutil.New(pathutil.Config{
		BooksRoot:    cfg.Books.Root,
		DatabasePath: cfg.Books.DBPath,
		ExtractDir:   cfg.Books.ExtractDir,
	})

	slog.Debug("Opening database", "path", paths.DatabasePath())
	conn, err := db.Open(paths.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	stats, err := db.NewHistory(conn).GetStats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	months, err := beancount.NewFileSystemRepository(paths).MonthFiles(statsYear)
	if err != nil {
		return fmt.Errorf("failed to list Beancount files: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "\n=== Posting Statistics ===")
	fmt.Fprintf(w, "Posted entries:      %d\n", stats.Postings)
	fmt.Fprintf(w, "Reconciled periods:  %d\n", stats.Periods)
	fmt.Fprintf(w, "Reconciliation runs: %d\n", stats.Runs)
	if stats.LastPostedAt != nil {
		fmt.Fprintf(w, "Last posting:        %s\n", stats.LastPostedAt.Format(time.RFC3339))
	} else {
		fmt.Fprintf(w, "Last posting:        (never)\n")
	}
	fmt.Fprintf(w, "Beancount files %d:  %d\n", statsYear, len(months))
	for _, m := range months {
		fmt.Fprintf(w, "  %s  %s\n", m, paths.MonthFile(m))
	}
	fmt.Fprintln(w)

	slog.Info("Statistics displayed successfully")
	return nil
}
