// Package pipeline runs one period end to end: project P&L, statement
// decomposition, reconciliation, journal generation and optional posting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/accountmap"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/allocation"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/db"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/journal"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/ledger"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/reconcile"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/statement"
)

// Config wires a Pipeline. Accounts is required; the rest is optional.
type Config struct {
	Rates    allocation.Rates
	Accounts *accountmap.Map
	// Poster receives the entries when Input.Post is set.
	Poster *ledger.Poster
	// History records the runs computed for each period.
	History *db.History
	Logger  *slog.Logger
}

// Pipeline runs periods. It keeps no state between runs.
type Pipeline struct {
	builder  *allocation.Builder
	engine   *reconcile.Engine
	accounts *accountmap.Map
	poster   *ledger.Poster
	history  *db.History
	logger   *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Accounts == nil {
		return nil, errors.New("pipeline: account map is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		builder:  allocation.NewBuilder(cfg.Rates),
		engine:   reconcile.NewEngine(),
		accounts: cfg.Accounts,
		poster:   cfg.Poster,
		history:  cfg.History,
		logger:   logger,
	}, nil
}

// Input is everything a period run reads. Orders, Pools and Transactions
// may hold rows of other periods; History carries earlier inbound transport
// pools.
type Input struct {
	Period       pnl.Period
	Orders       []allocation.OrderLine
	Pools        []allocation.CostPool
	History      []allocation.CostPool
	Transactions []statement.Transaction

	// Post sends the generated entries to the configured poster.
	Post bool
}

// Result is what a period run produced.
type Result struct {
	Period         pnl.Period
	Project        *allocation.Result
	Statement      *statement.Decomposition
	Reconciliation *reconcile.Reconciliation
	Entries        []*journal.Entry
	Warnings       []journal.Warning
	Posting        *ledger.PostResult

	// NoData is set when the period has nothing to reconcile. It is not an error.
	NoData bool
}

// Run processes one period. A conservation violation in the project P&L
// stops the run before any entry is generated; the returned Result still
// carries the project for inspection.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	log := p.logger.With("period", in.Period.String())
	res := &Result{Period: in.Period}

	project, err := p.builder.Build(in.Period, in.Orders, in.Pools, in.History)
	if err != nil {
		return nil, fmt.Errorf("failed to build project P&L: %w", err)
	}
	res.Project = project
	if err := project.Verify(); err != nil {
		log.Error("cost pools not conserved, journals halted", "error", err)
		return res, fmt.Errorf("project P&L for %s: %w", in.Period, err)
	}
	log.Debug("project P&L built", "lines", len(project.Lines), "pools", len(project.Pools))

	stmt, err := statement.Decompose(in.Period, in.Transactions, in.Orders)
	if err != nil {
		return res, fmt.Errorf("failed to decompose statement: %w", err)
	}
	res.Statement = stmt
	for _, tx := range stmt.Unknown {
		log.Warn("unknown statement description excluded",
			"settlement_id", tx.SettlementID, "amount_type", tx.AmountType,
			"amount_description", tx.AmountDescription, "amount", tx.Amount.String())
	}

	rec, err := p.engine.Reconcile(project, stmt)
	if errors.Is(err, reconcile.ErrNoData) {
		log.Warn("nothing to reconcile", "reason", err)
		res.NoData = true
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("failed to reconcile: %w", err)
	}
	res.Reconciliation = rec
	log.Info("period reconciled", "runs", len(rec.Runs), "late_settlements", len(rec.LateRuns()))

	if p.history != nil {
		if err := p.history.RecordRuns(ctx, in.Period.String(), runRecords(rec)); err != nil {
			return res, err
		}
	}

	gen := journal.NewGenerator(p.accounts)
	entries, err := gen.Generate(rec, project.Totals().Get(pnl.COGS))
	res.Entries, res.Warnings = entries, gen.Warnings
	for _, w := range gen.Warnings {
		attrs := []any{"run", w.Run, "error", w.Err}
		var me *accountmap.MappingError
		if errors.As(w.Err, &me) {
			attrs = append(attrs, "section", me.Section.String(), "category", me.Category.String())
		}
		log.Warn("line skipped", attrs...)
	}
	if err != nil {
		return res, fmt.Errorf("invalid journal entries: %w", err)
	}
	log.Info("journal entries generated", "entries", len(entries))

	if !in.Post {
		return res, nil
	}
	if p.poster == nil {
		return res, errors.New("posting requested but no ledger sink is configured")
	}
	posting, err := p.poster.Post(ctx, entries)
	res.Posting = posting
	if err != nil {
		return res, err
	}
	log.Info("journal entries posted", "posted", len(posting.Posted), "skipped", len(posting.Skipped))
	return res, nil
}

func runRecords(rec *reconcile.Reconciliation) []db.RunRecord {
	out := make([]db.RunRecord, 0, len(rec.Runs))
	for i, r := range rec.Runs {
		out = append(out, db.RunRecord{
			Period:        rec.Period.String(),
			Run:           i,
			Kind:          r.Kind.String(),
			SettlementIDs: r.Settlements,
			Date:          r.Date,
			Lines:         len(r.Lines),
		})
	}
	return out
}
