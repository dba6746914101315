package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/journal"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/reconcile"
)

// Writer renders reports in one currency.
type Writer struct {
	w        io.Writer
	currency string
}

// New creates a Writer.
func New(w io.Writer, currency string) *Writer {
	return &Writer{w: w, currency: currency}
}

// Reconciliation prints every run's lines, then the period's P&L by category.
func (r *Writer) Reconciliation(rec *reconcile.Reconciliation) error {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintf(r.w, "Reconciliation %s\n", rec.Period)

	for i, run := range rec.Runs {
		fmt.Fprintf(r.w, "\nRun %d  %s  %s  settlements: %s\n",
			i+1, run.Kind, run.Date.Format("2006-01-02"), strings.Join(run.Settlements, ", "))
		fmt.Fprintln(tw, "section\tcategory\tstate\tstatement\tpaid\tunpaid\tmissing\tadjustment\tredirect\treturn\taccrued\t")
		for _, l := range run.Lines {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				l.Section, l.Category, l.State,
				blank(l.StatementValue, r.currency),
				blank(l.ProjectPaid, r.currency),
				blank(l.ProjectUnpaid, r.currency),
				blank(l.Missing, r.currency),
				blank(l.Adjustment, r.currency),
				blank(l.AssetRedirect, r.currency),
				blank(l.Return, r.currency),
				blank(l.AccruedAdjusted, r.currency),
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(r.w, "\nP&L %s\n", rec.Period)
	totals := rec.PnLTotal()
	sum := decimal.Zero
	for _, c := range totals.Categories() {
		fmt.Fprintf(tw, "%s\t%s\t\n", c, Money(totals.Get(c), r.currency))
		sum = sum.Add(totals.Get(c))
	}
	fmt.Fprintf(tw, "total\t%s\t\n", Money(sum, r.currency))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(rec.Unknown) > 0 {
		fmt.Fprintf(r.w, "\n%d statement rows with unknown descriptions were excluded:\n", len(rec.Unknown))
		for _, tx := range rec.Unknown {
			fmt.Fprintf(r.w, "  %s %s/%s %s\n", tx.SettlementID, tx.AmountType, tx.AmountDescription, Money(tx.Amount, r.currency))
		}
	}
	return nil
}

// Entries prints journal entries with their postings.
func (r *Writer) Entries(entries []*journal.Entry) error {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(r.w, "\n%s  %s  run %d  %s\n", e.Date.Format("2006-01-02"), e.Phase, e.Run+1, e.Description)
		for _, p := range e.Postings {
			debit, credit := "", ""
			if p.Side == journal.Debit {
				debit = Money(p.Amount, r.currency)
			} else {
				credit = Money(p.Amount, r.currency)
			}
			account := p.Account.ID + " " + p.Account.Name
			if p.EntityName != "" {
				account += " [" + p.EntityName + "]"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", account, debit, credit, p.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
