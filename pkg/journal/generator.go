package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/accountmap"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/reconcile"
)

// Warning is a recoverable problem met while generating entries.
type Warning struct {
	Run int
	Err error
}

func (w Warning) String() string { return fmt.Sprintf("run %d: %v", w.Run, w.Err) }

// Generator converts reconciliation runs into entries.
type Generator struct {
	accounts *accountmap.Map
	newID    func() string

	// Warnings collects mapping misses. Lines with no mapping are skipped.
	Warnings []Warning
}

// NewGenerator creates a generator that books to the given accounts.
func NewGenerator(accounts *accountmap.Map) *Generator {
	return &Generator{accounts: accounts, newID: uuid.NewString}
}

// Generate produces every entry of a reconciliation plus the COGS entry.
// Entries that fail validation are left out and their errors returned joined.
func (g *Generator) Generate(rec *reconcile.Reconciliation, cogs decimal.Decimal) ([]*Entry, error) {
	var out []*Entry
	for i := range rec.Runs {
		run := &rec.Runs[i]
		if run.Kind == reconcile.InOrderMonth {
			out = append(out, g.InOrderMonth(rec.Period, i, run))
			continue
		}
		accrual, closing := g.OutOfOrderMonth(rec.Period, i, run)
		out = append(out, accrual, closing)
	}

	entry, err := g.COGS(rec.Period, cogs)
	if err != nil {
		g.Warnings = append(g.Warnings, Warning{Err: err})
	}
	out = append(out, entry)

	var valid []*Entry
	var errs []error
	for _, e := range out {
		if e == nil {
			continue
		}
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		valid = append(valid, e)
	}
	return valid, errors.Join(errs...)
}

// InOrderMonth books the first run as a single entry dated at period end.
// Settled amounts post to P&L against one Bank Deposit posting; open
// estimates post to P&L against AR/AP. It returns nil when nothing is booked.
func (g *Generator) InOrderMonth(period pnl.Period, idx int, run *reconcile.Run) *Entry {
	e := g.newEntry(period, PhaseSettlement, idx, period.End(), run.Settlements)
	bank := decimal.Zero
	for _, l := range run.Lines {
		if l.State == reconcile.Deferred {
			continue
		}
		mp, ok := g.lookup(idx, l)
		if !ok {
			continue
		}
		cash := l.Settled().Add(l.Missing).Add(l.Return).Add(l.AssetRedirect)
		if !cash.IsZero() {
			e.add(pnlPosting(label(l, "settled"), l.Category, cash, mp.PnL))
			bank = bank.Add(cash)
		}
		if !l.ProjectUnpaid.IsZero() {
			e.add(pnlPosting(label(l, "unpaid"), l.Category, l.ProjectUnpaid, mp.PnL))
			e.add(g.open(label(l, "unpaid"), l.Category, l.ProjectUnpaid, mp))
		}
	}
	g.addBank(e, bank)
	return e.orNil()
}

// OutOfOrderMonth books a later run as two entries: the accrual entry at
// period end opens AR/AP for everything the settlement newly books, and the
// closing entry at the deposit date settles those balances plus the
// estimates left open by earlier runs against one Bank Deposit posting.
// Either entry is nil when it would be empty.
func (g *Generator) OutOfOrderMonth(period pnl.Period, idx int, run *reconcile.Run) (accrual, closing *Entry) {
	accrual = g.newEntry(period, PhaseAccrual, idx, period.End(), run.Settlements)
	closing = g.newEntry(period, PhaseClosing, idx, run.Date, run.Settlements)
	bank := decimal.Zero

	for _, l := range run.Lines {
		if l.State == reconcile.Deferred {
			continue
		}
		mp, ok := g.lookup(idx, l)
		if !ok {
			continue
		}

		fullyPaid := l.Category.FullyPaid() && l.Section == pnl.OtherSection
		if !fullyPaid && !l.ProjectPaid.IsZero() {
			closing.add(g.close(label(l, "close unpaid"), l.Category, l.ProjectPaid, mp))
			bank = bank.Add(l.ProjectPaid)
		}

		components := []component{
			{"adjustment", l.Adjustment},
			{"missing", l.Missing},
			{"return", l.Return},
			{"asset redirect", l.AssetRedirect},
		}
		if fullyPaid {
			components = append(components, component{"paid", l.ProjectPaid})
		}
		for _, c := range components {
			if c.value.IsZero() {
				continue
			}
			accrual.add(pnlPosting(label(l, c.name), l.Category, c.value, mp.PnL))
			accrual.add(g.open(label(l, c.name), l.Category, c.value, mp))
			closing.add(g.close(label(l, "close "+c.name), l.Category, c.value, mp))
			bank = bank.Add(c.value)
		}
	}
	g.addBank(closing, bank)
	return accrual.orNil(), closing.orNil()
}

type component struct {
	name  string
	value decimal.Decimal
}

// COGS books the period's cost of goods sold (a negative amount) as
// Debit COGS / Credit Outbound Inventory. It returns nil for a zero amount.
func (g *Generator) COGS(period pnl.Period, amount decimal.Decimal) (*Entry, error) {
	if amount.IsZero() {
		return nil, nil
	}
	cogs, inventory := g.accounts.COGS(), g.accounts.OutboundInventory()
	if cogs.IsZero() || inventory.IsZero() {
		return nil, fmt.Errorf("%w: cogs and outbound_inventory accounts are required to book COGS", accountmap.ErrMappingNotFound)
	}
	e := g.newEntry(period, PhaseCOGS, 0, period.End(), nil)
	e.add(pnlPosting("COGS", pnl.COGS, amount, cogs))
	e.add(pnlPosting("Outbound Inventory", pnl.COGS, amount.Neg(), inventory))
	return e, nil
}

func (g *Generator) newEntry(period pnl.Period, phase Phase, run int, date time.Time, settlements []string) *Entry {
	e := &Entry{
		ID:          g.newID(),
		Date:        date,
		Period:      period,
		Phase:       phase,
		Run:         run,
		Description: fmt.Sprintf("Marketplace settlement %s %s", period, phase),
	}
	if len(settlements) == 1 {
		e.SettlementID = settlements[0]
		e.Description += " " + settlements[0]
	}
	return e
}

func (g *Generator) lookup(run int, l reconcile.Line) (accountmap.Mapping, bool) {
	mp, err := g.accounts.Lookup(l.Section, l.Category)
	if err != nil {
		g.Warnings = append(g.Warnings, Warning{Run: run, Err: err})
		return accountmap.Mapping{}, false
	}
	return mp, true
}

// open books a signed amount to AR (positive) or AP (negative).
func (g *Generator) open(desc string, c pnl.Category, v decimal.Decimal, mp accountmap.Mapping) Posting {
	if v.IsPositive() {
		return Posting{Description: desc, Amount: v, Side: Debit, Account: g.accounts.Receivable(mp), Entity: Customer, EntityName: g.accounts.Customer(), Category: c}
	}
	return Posting{Description: desc, Amount: v.Neg(), Side: Credit, Account: g.accounts.Payable(mp), Entity: Vendor, EntityName: g.accounts.Vendor(), Category: c}
}

// close reverses what open booked for the same signed amount.
func (g *Generator) close(desc string, c pnl.Category, v decimal.Decimal, mp accountmap.Mapping) Posting {
	p := g.open(desc, c, v, mp)
	p.Side = p.Side.Opposite()
	return p
}

func (g *Generator) addBank(e *Entry, net decimal.Decimal) {
	if net.IsZero() {
		return
	}
	p := Posting{Description: "Bank Deposit", Account: g.accounts.BankDeposit()}
	if net.IsPositive() {
		p.Amount, p.Side = net, Debit
	} else {
		p.Amount, p.Side = net.Neg(), Credit
	}
	e.add(p)
}

// pnlPosting books a signed P&L amount: revenue credits, expense debits.
func pnlPosting(desc string, c pnl.Category, v decimal.Decimal, account accountmap.Account) Posting {
	if v.IsPositive() {
		return Posting{Description: desc, Amount: v, Side: Credit, Account: account, Category: c}
	}
	return Posting{Description: desc, Amount: v.Neg(), Side: Debit, Account: account, Category: c}
}

func label(l reconcile.Line, what string) string {
	if l.Section == pnl.ReturnSection {
		return fmt.Sprintf("%s (return) %s", l.Category, what)
	}
	return fmt.Sprintf("%s %s", l.Category, what)
}

func (e *Entry) add(p Posting) { e.Postings = append(e.Postings, p) }

func (e *Entry) orNil() *Entry {
	if len(e.Postings) == 0 {
		return nil
	}
	return e
}
