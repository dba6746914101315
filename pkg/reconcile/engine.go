package reconcile

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/allocation"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/statement"
)

// ErrNoData is returned when a period has no settlement rows or no project
// lines to reconcile.
var ErrNoData = errors.New("no data for period")

// Reconciliation is the full result for one period.
type Reconciliation struct {
	Period pnl.Period
	Runs   []Run

	// Unknown lists statement rows excluded because their description did
	// not parse.
	Unknown []statement.Transaction
}

// Engine reconciles project against statement P&L. It holds no state
// between calls.
type Engine struct{}

// NewEngine creates an Engine.
func NewEngine() *Engine { return &Engine{} }

// Reconcile runs the in-order-month pass over every settlement deposited
// inside the period, then one out-of-order-month pass per later settlement in
// (deposit date, settlement id) order. Each later pass tests the estimates
// still open after the previous one.
func (e *Engine) Reconcile(project *allocation.Result, stmt *statement.Decomposition) (*Reconciliation, error) {
	if project == nil || stmt == nil {
		return nil, ErrNoData
	}
	if project.Period != stmt.Period {
		return nil, fmt.Errorf("project period %s does not match statement period %s", project.Period, stmt.Period)
	}
	if stmt.Empty() {
		return nil, fmt.Errorf("%w: no settlement transactions for %s", ErrNoData, stmt.Period)
	}
	if project.Empty() {
		return nil, fmt.Errorf("%w: no order lines or cost pools for %s", ErrNoData, project.Period)
	}

	st := newCarry(project)
	rec := &Reconciliation{Period: project.Period, Unknown: stmt.Unknown}

	var inMonth []string
	for _, s := range stmt.Settlements {
		if s.Timing == statement.InOrderMonth {
			inMonth = append(inMonth, s.ID)
		}
	}
	first := st.run(InOrderMonth, stmt.InOrderMonth())
	first.Settlements = inMonth
	first.Date = project.Period.End()
	rec.Runs = append(rec.Runs, first)

	for _, s := range stmt.Late() {
		r := st.run(OutOfOrderMonth, stmt.Select(s.ID))
		r.Settlements = []string{s.ID}
		r.Date = s.DepositDate
		rec.Runs = append(rec.Runs, r)
	}
	return rec, nil
}

// carry is the open-estimate state threaded through the runs of one period.
type carry struct {
	projected  pnl.Amounts // original project totals, never mutated
	openLines  map[allocation.Key]pnl.Amounts
	openPeriod pnl.Amounts
	// openStray holds the line-scoped estimates of Non-Sales placeholders.
	// No order row can settle them, so they match the non-order rows of
	// their category on the period total.
	openStray pnl.Amounts
	adWeights map[allocation.Key]decimal.Decimal
}

func newCarry(project *allocation.Result) *carry {
	c := &carry{
		projected:  pnl.Amounts{},
		openLines:  make(map[allocation.Key]pnl.Amounts),
		openPeriod: pnl.Amounts{},
		openStray:  pnl.Amounts{},
		adWeights:  project.AdSpend(),
	}
	for k, amounts := range project.ByKey() {
		for cat, v := range amounts {
			switch cat.Scope() {
			case pnl.ProjectOnly:
				continue
			case pnl.LineScope:
				if k.OrderID == "" {
					c.openStray.Add(cat, v)
					break
				}
				if c.openLines[k] == nil {
					c.openLines[k] = pnl.Amounts{}
				}
				c.openLines[k].Add(cat, v)
			default:
				c.openPeriod.Add(cat, v)
			}
			c.projected.Add(cat, v)
		}
	}
	return c
}

// runInput is a run's statement side, pivoted for matching.
type runInput struct {
	lines   map[allocation.Key]pnl.Amounts
	period  pnl.Amounts
	stray   pnl.Amounts // line-scoped categories without an order
	returns pnl.Amounts
}

func (c *carry) pivot(buckets []statement.Bucket) runInput {
	in := runInput{
		lines:   make(map[allocation.Key]pnl.Amounts),
		period:  pnl.Amounts{},
		stray:   pnl.Amounts{},
		returns: pnl.Amounts{},
	}
	for _, b := range buckets {
		if b.Group == statement.ReturnGroup {
			in.returns.Merge(b.Amounts)
			continue
		}
		if b.Group == statement.OrderGroup && in.lines[b.Key] == nil {
			in.lines[b.Key] = pnl.Amounts{}
		}
		for cat, v := range b.Amounts {
			switch {
			case cat.Scope() != pnl.LineScope:
				in.period.Add(cat, v)
			case b.Group == statement.OrderGroup:
				in.lines[b.Key].Add(cat, v)
			default:
				in.stray.Add(cat, v)
			}
		}
	}

	charge := in.period.Get(pnl.SponsoredProductsCharge)
	delete(in.period, pnl.SponsoredProductsCharge)
	if !charge.IsZero() {
		shares := statement.ApportionAdSpend(charge, c.adWeights)
		if shares == nil {
			in.period.Add(pnl.SponsoredProductsNonSales, charge)
		}
		for k, v := range shares {
			if k.OrderID == "" {
				in.period.Add(pnl.SponsoredProductsNonSales, v)
			} else {
				in.period.Add(pnl.SponsoredProductsSales, v)
			}
		}
	}
	return in
}

func (c *carry) run(kind RunKind, buckets []statement.Bucket) Run {
	in := c.pivot(buckets)
	lines := make(map[lineKey]*Line)
	line := func(s pnl.Section, cat pnl.Category) *Line {
		k := lineKey{s, cat}
		if lines[k] == nil {
			lines[k] = &Line{Section: s, Category: cat}
		}
		return lines[k]
	}
	deferred := make(map[pnl.Category]bool)
	redirect := func(delta decimal.Decimal) {
		if v := floor(delta); !v.IsZero() {
			line(pnl.OtherSection, pnl.FBAInboundTransportationFeeDiff).AssetRedirect = v
		}
	}

	keys := sortedKeys(in.lines)
	for _, cat := range pnl.Categories() {
		if cat.Scope() != pnl.LineScope {
			continue
		}
		l := line(pnl.OrderSection, cat)
		if !c.projected.Has(cat) {
			for _, k := range keys {
				l.Missing = l.Missing.Add(in.lines[k].Get(cat))
			}
			l.Missing = l.Missing.Add(in.stray.Get(cat))
			l.StatementValue = l.Missing
			continue
		}
		delta := decimal.Zero
		for _, k := range keys {
			s := in.lines[k].Get(cat)
			l.StatementValue = l.StatementValue.Add(s)
			if !cat.AlwaysAdjust() && s.IsZero() {
				continue
			}
			est := c.openLines[k].Get(cat)
			l.ProjectPaid = l.ProjectPaid.Add(est)
			delta = delta.Add(s.Sub(est))
			if c.openLines[k] != nil {
				delete(c.openLines[k], cat)
			}
		}
		stray := in.stray.Get(cat)
		l.StatementValue = l.StatementValue.Add(stray)
		if est := c.openStray.Get(cat); !est.IsZero() && !stray.IsZero() {
			l.ProjectPaid = l.ProjectPaid.Add(est)
			delta = delta.Add(stray.Sub(est))
			delete(c.openStray, cat)
		} else {
			l.Missing = stray
		}
		l.Adjustment = floor(delta)
		l.ProjectUnpaid = c.openStray.Get(cat)
		for _, open := range c.openLines {
			l.ProjectUnpaid = l.ProjectUnpaid.Add(open.Get(cat))
		}
	}

	for _, cat := range pnl.Categories() {
		if cat.Scope() != pnl.PeriodScope || cat == pnl.SponsoredProductsCharge || cat == pnl.FBAInboundTransportationFeeDiff {
			continue
		}
		l := line(pnl.OtherSection, cat)
		s := in.period.Get(cat)
		est := c.openPeriod.Get(cat)
		l.StatementValue = s

		switch {
		case !c.projected.Has(cat) && cat.RedirectsToAsset():
			redirect(s)
		case !c.projected.Has(cat):
			l.Missing = s
		case cat.FullyPaid():
			if s.IsZero() {
				l.ProjectUnpaid = est
				deferred[cat] = !est.IsZero()
				break
			}
			l.ProjectPaid = s
			delete(c.openPeriod, cat)
		case s.IsZero():
			l.ProjectUnpaid = est
		default:
			l.ProjectPaid = est
			delete(c.openPeriod, cat)
			if cat.RedirectsToAsset() {
				redirect(s.Sub(est))
				break
			}
			l.Adjustment = floor(s.Sub(est))
		}
	}

	for cat, v := range in.returns {
		l := line(pnl.ReturnSection, cat)
		l.Return = v
		l.StatementValue = v
	}

	out := Run{Kind: kind}
	for _, l := range lines {
		if l.isZero() {
			continue
		}
		l.settle(kind, deferred[l.Category] && l.Section == pnl.OtherSection)
		out.Lines = append(out.Lines, *l)
	}
	slices.SortFunc(out.Lines, func(a, b Line) int {
		return cmp.Or(cmp.Compare(a.Section, b.Section), cmp.Compare(a.Category, b.Category))
	})
	return out
}

type lineKey struct {
	section  pnl.Section
	category pnl.Category
}

func floor(v decimal.Decimal) decimal.Decimal {
	if v.Abs().LessThan(RoundingFloor) {
		return decimal.Zero
	}
	return v
}

func sortedKeys(m map[allocation.Key]pnl.Amounts) []allocation.Key {
	keys := make([]allocation.Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b allocation.Key) int {
		return cmp.Or(strings.Compare(a.SKU, b.SKU), strings.Compare(a.OrderID, b.OrderID))
	})
	return keys
}
