package reconcile

import (
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

// InOrderMonthRun returns the first run.
func (r *Reconciliation) InOrderMonthRun() *Run {
	if len(r.Runs) == 0 {
		return nil
	}
	return &r.Runs[0]
}

// LateRuns returns the out-of-order-month runs in booking order.
func (r *Reconciliation) LateRuns() []Run {
	if len(r.Runs) < 2 {
		return nil
	}
	return r.Runs[1:]
}

// Accrued returns the period's accrued-adjusted value per category after
// every run. Later runs contribute only what they newly book; the estimates
// they close were already accrued by the first run.
func (r *Reconciliation) Accrued() pnl.Amounts {
	out := pnl.Amounts{}
	for i, run := range r.Runs {
		for _, l := range run.Lines {
			if i == 0 {
				out.Add(l.Category, l.AccruedAdjusted)
				continue
			}
			out.Add(l.Category, l.Adjustment.Add(l.Missing).Add(l.Return).Add(l.AssetRedirect))
			if l.Category.FullyPaid() && l.Section == pnl.OtherSection {
				out.Add(l.Category, l.ProjectPaid)
			}
		}
	}
	return out
}

// PnLTotal is the period's P&L: every accrued category except the
// balance-sheet redirect.
func (r *Reconciliation) PnLTotal() pnl.Amounts {
	out := pnl.Amounts{}
	for c, v := range r.Accrued() {
		if c.InPnL() {
			out.Add(c, v)
		}
	}
	return out
}
