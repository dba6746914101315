package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/accountmap"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/beancount"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/config"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/db"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/extract"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/ledger"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pathutil"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pipeline"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/report"
)

var (
	period          string
	ordersPath      string
	poolsPath       string
	settlementPaths []string
	post            bool
	sinkName        string
	showEntries     bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile one period and generate its journal entries",
	Long: `Reconcile one accounting period.

This command:
1. Loads the period's orders, cost pools and settlement reports
2. Builds the per-order project P&L and checks pool conservation
3. Reconciles every settlement run against the project P&L
4. Generates balanced journal entries and the COGS entry
5. Posts them to the chosen sink when --post is given

Extracts default to {extracts}/YYYY-MM/orders.*, pools.* and settlement*.*

Example:
  settle-books reconcile --period 2024-01
  settle-books reconcile --period 2024-01 --entries
  settle-books reconcile --period 2024-01 --post --sink http`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&period, "period", "", "Accounting period (YYYY-MM) (required)")
	reconcileCmd.Flags().StringVar(&ordersPath, "orders", "", "Order-line extract (csv, tsv or xlsx); disables the default extract lookup")
	reconcileCmd.Flags().StringVar(&poolsPath, "pools", "", "Cost-pool extract (csv, tsv or xlsx)")
	reconcileCmd.Flags().StringSliceVar(&settlementPaths, "settlement", nil, "Settlement report, repeatable")
	reconcileCmd.Flags().BoolVar(&post, "post", false, "Post the generated entries")
	reconcileCmd.Flags().StringVar(&sinkName, "sink", "beancount", "Posting sink: beancount or http")
	reconcileCmd.Flags().BoolVar(&showEntries, "entries", false, "Print the generated entries")

	reconcileCmd.MarkFlagRequired("period")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	p, err := pnl.ParsePeriod(period)
	if err != nil {
		return fmt.Errorf("invalid period: %w", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate([]string{"books", "root"}, []string{"books", "accountMapPath"}); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	paths := pathutil.New(pathutil.Config{
		BooksRoot:    cfg.Books.Root,
		DatabasePath: cfg.Books.DBPath,
		ExtractDir:   cfg.Books.ExtractDir,
	})

	accounts, err := accountmap.Load(cfg.Books.AccountMapPath)
	if err != nil {
		return fmt.Errorf("failed to load account map: %w", err)
	}
	rates, err := config.LoadRates(cfg.Books.RatesPath)
	if err != nil {
		return fmt.Errorf("failed to load rates: %w", err)
	}
	currency := cfg.Currency
	if rates.Currency != "" {
		currency = rates.Currency
	}

	slog.Debug("Opening database", "path", paths.DatabasePath())
	conn, err := db.Open(paths.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()
	history := db.NewHistory(conn)

	in, err := loadInput(paths, p)
	if err != nil {
		return fmt.Errorf("failed to load extracts: %w", err)
	}
	in.Post = post
	slog.Info("Loaded extracts", "period", p.String(),
		"orders", len(in.Orders), "pools", len(in.Pools), "transactions", len(in.Transactions))

	pcfg := pipeline.Config{
		Rates:    rates.Rates,
		Accounts: accounts,
		History:  history,
		Logger:   slog.Default(),
	}
	if post {
		sink, err := newSink(cfg, paths, currency)
		if err != nil {
			return fmt.Errorf("failed to configure ledger sink: %w", err)
		}
		pcfg.Poster = ledger.NewPoster(sink, history, slog.Default())
	}
	pl, err := pipeline.New(pcfg)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w := cmd.OutOrStdout()
	res, err := pl.Run(ctx, in)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	if res.NoData {
		fmt.Fprintf(w, "No data to reconcile for %s\n", p)
		return nil
	}

	out := report.New(w, currency)
	if err := out.Reconciliation(res.Reconciliation); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if showEntries {
		if err := out.Entries(res.Entries); err != nil {
			return fmt.Errorf("failed to write entries: %w", err)
		}
	}

	if res.Posting != nil {
		fmt.Fprintf(w, "\nPosted %d entries, skipped %d already posted\n", len(res.Posting.Posted), len(res.Posting.Skipped))
	}
	slog.Info("Reconciliation completed", "period", p.String(),
		"entries", len(res.Entries), "warnings", len(res.Warnings))
	return nil
}

// loadInput reads the default extracts, then applies any explicit paths.
func loadInput(paths *pathutil.PathResolver, p pnl.Period) (pipeline.Input, error) {
	var in pipeline.Input
	var err error
	if ordersPath == "" {
		in, err = pipeline.LoadInput(paths, p)
		if err != nil {
			return in, err
		}
	}
	in.Period = p

	if ordersPath != "" {
		if in.Orders, err = extract.LoadOrders(ordersPath); err != nil {
			return in, err
		}
	}
	if poolsPath != "" {
		pools, err := extract.LoadPools(poolsPath)
		if err != nil {
			return in, err
		}
		in.Pools, in.History = pools, pools
	}
	if len(settlementPaths) > 0 {
		in.Transactions = nil
		for _, path := range settlementPaths {
			txs, err := extract.LoadTransactions(path)
			if err != nil {
				return in, err
			}
			in.Transactions = append(in.Transactions, txs...)
		}
	}
	return in, nil
}

func newSink(cfg *config.Config, paths *pathutil.PathResolver, currency string) (ledger.Sink, error) {
	switch sinkName {
	case "beancount":
		return ledger.NewBeancountSink(beancount.NewFileSystemRepository(paths), currency), nil
	case "http":
		if err := cfg.Validate([]string{"ledger", "apiUrl"}, []string{"ledger", "companyId"}); err != nil {
			return nil, err
		}
		if !cfg.HasLedgerCredentials() {
			return nil, fmt.Errorf("ledger credentials missing: set LEDGER_ACCESS_TOKEN or LEDGER_CLIENT_ID and LEDGER_CLIENT_SECRET")
		}
		return ledger.NewHTTPSink(ledger.HTTPConfig{
			APIURL:       cfg.Ledger.APIURL,
			ClientID:     cfg.Ledger.ClientID,
			ClientSecret: cfg.Ledger.ClientSecret,
			AccessToken:  cfg.Ledger.AccessToken,
			CompanyID:    cfg.Ledger.CompanyID,
			Timeout:      30 * time.Second,
		})
	}
	return nil, fmt.Errorf("unknown sink %q (want beancount or http)", sinkName)
}
