// Package reconcile matches the project P&L against the statement P&L and
// tracks each category's payment state across the in-order-month run and any
// number of out-of-order-month runs.
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

// RoundingFloor is the smallest adjustment that is ever booked.
var RoundingFloor = decimal.RequireFromString("0.005")

// State is where a category line stands after a run.
type State int

const (
	// Paid: the estimate was settled at (or within the floor of) the statement value.
	Paid State = iota
	// Unpaid: the estimate is still open and carried as AR/AP.
	Unpaid
	// Adjusted: the estimate was settled and the difference booked.
	Adjusted
	// Closed: an estimate left open by an earlier run was settled without a difference.
	Closed
	// Missing: the statement carries a category the project never estimated.
	Missing
	// Returned: return amounts, booked at statement value.
	Returned
	// Redirected: inbound transport delta booked to the balance sheet.
	Redirected
	// Deferred: a fully-paid category still waiting for its statement.
	Deferred
)

var stateNames = [...]string{"paid", "unpaid", "adjusted", "closed", "missing", "returned", "redirected", "deferred"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// RunKind distinguishes the in-order-month run from the later ones.
type RunKind int

const (
	InOrderMonth RunKind = iota
	OutOfOrderMonth
)

func (k RunKind) String() string {
	if k == InOrderMonth {
		return "in_order_month"
	}
	return "out_of_order_month"
}

// Line is the reconciliation of one (section, category) in one run.
// All values are signed P&L amounts.
type Line struct {
	Section  pnl.Section
	Category pnl.Category
	State    State

	StatementValue decimal.Decimal

	// ProjectPaid is the estimate settled by this run. In an out-of-order
	// month run it is the open balance being closed. For fully-paid
	// categories it is the statement value.
	ProjectPaid decimal.Decimal
	// ProjectUnpaid is the estimate still open after this run.
	ProjectUnpaid decimal.Decimal

	Missing       decimal.Decimal
	Adjustment    decimal.Decimal
	AssetRedirect decimal.Decimal
	Return        decimal.Decimal

	AccruedAdjusted decimal.Decimal
}

// Run is one pass of the engine over a set of settlements.
type Run struct {
	Kind        RunKind
	Settlements []string
	// Date is the period end for the in-order-month run and the deposit
	// date for an out-of-order-month run.
	Date  time.Time
	Lines []Line
}

// Line returns the run's line for (section, category), if any.
func (r *Run) Line(section pnl.Section, c pnl.Category) (Line, bool) {
	for _, l := range r.Lines {
		if l.Section == section && l.Category == c {
			return l, true
		}
	}
	return Line{}, false
}

func (l *Line) isZero() bool {
	for _, v := range []decimal.Decimal{l.StatementValue, l.ProjectPaid, l.ProjectUnpaid, l.Missing, l.Adjustment, l.AssetRedirect, l.Return} {
		if !v.IsZero() {
			return false
		}
	}
	return true
}

// settle derives State and AccruedAdjusted from the amounts.
func (l *Line) settle(kind RunKind, deferred bool) {
	switch {
	case !l.Return.IsZero():
		l.State = Returned
		l.AccruedAdjusted = l.Return
		return
	case !l.AssetRedirect.IsZero():
		l.State = Redirected
		l.AccruedAdjusted = l.AssetRedirect
		return
	case !l.Missing.IsZero() && l.ProjectPaid.IsZero() && l.ProjectUnpaid.IsZero() && l.Adjustment.IsZero():
		l.State = Missing
		l.AccruedAdjusted = l.Missing
		return
	case deferred:
		l.State = Deferred
		return
	}

	l.AccruedAdjusted = l.ProjectPaid.Add(l.ProjectUnpaid).Add(l.Adjustment).Add(l.Missing)
	switch {
	case !l.ProjectUnpaid.IsZero() && l.ProjectPaid.IsZero() && l.Adjustment.IsZero():
		l.State = Unpaid
	case !l.Adjustment.IsZero():
		l.State = Adjusted
	case kind == OutOfOrderMonth && !l.Category.FullyPaid():
		l.State = Closed
	default:
		l.State = Paid
	}
}

// Settled is the amount a run moves from AR/AP (or the estimate) into cash:
// the estimate it settles plus the booked adjustment.
func (l Line) Settled() decimal.Decimal { return l.ProjectPaid.Add(l.Adjustment) }
