// Package journal turns reconciliation runs into balanced double-entry
// journal entries.
package journal

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/accountmap"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

// Side is the debit/credit side of a posting.
type Side int

const (
	Debit Side = iota
	Credit
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Debit {
		return Credit
	}
	return Debit
}

func (s Side) String() string {
	if s == Debit {
		return "debit"
	}
	return "credit"
}

// EntityType is the partner kind attached to AR/AP postings.
type EntityType int

const (
	NoEntity EntityType = iota
	Customer
	Vendor
)

func (e EntityType) String() string {
	switch e {
	case Customer:
		return "customer"
	case Vendor:
		return "vendor"
	}
	return ""
}

// Phase tells which step of the booking cycle produced an entry.
type Phase string

const (
	PhaseSettlement Phase = "settlement" // in-order-month
	PhaseAccrual    Phase = "accrual"    // out-of-order-month, period end
	PhaseClosing    Phase = "closing"    // out-of-order-month, deposit date
	PhaseCOGS       Phase = "cogs"
)

// Posting is one line of an entry. Amount is always positive; Side carries
// the direction.
type Posting struct {
	Description string
	Amount      decimal.Decimal
	Side        Side
	Account     accountmap.Account
	Entity      EntityType
	EntityName  string

	// Category is the P&L category the posting books or settles.
	Category pnl.Category
}

// Entry is a dated, ordered set of postings.
type Entry struct {
	ID          string
	Date        time.Time
	Description string
	Period      pnl.Period
	Phase       Phase
	// Run is the index of the reconciliation run (0 for the in-order-month run).
	Run          int
	SettlementID string
	Postings     []Posting
}

// BalanceError reports an entry whose debits and credits differ.
type BalanceError struct {
	EntryID     string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("entry %s (%s) is unbalanced: debit %s, credit %s", e.EntryID, e.Description, e.Debit, e.Credit)
}

// Totals returns the debit and credit sums.
func (e *Entry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, p := range e.Postings {
		if p.Side == Debit {
			debit = debit.Add(p.Amount)
		} else {
			credit = credit.Add(p.Amount)
		}
	}
	return debit, credit
}

// Fingerprint identifies what an entry books: its date and the account,
// side, amount and counterparty of each posting, regardless of order. Ids and
// descriptions are left out, so re-generating an unchanged entry yields the
// same fingerprint.
func (e *Entry) Fingerprint() string {
	lines := make([]string, 0, len(e.Postings))
	for _, p := range e.Postings {
		lines = append(lines, fmt.Sprintf("%s|%d|%s|%d|%s", p.Account.ID, p.Side, p.Amount.String(), p.Entity, p.EntityName))
	}
	slices.Sort(lines)
	data := e.Date.Format("2006-01-02") + "\n" + strings.Join(lines, "\n")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(data)).String()
}

// Validate checks that every posting is well formed and that the entry balances.
func (e *Entry) Validate() error {
	if len(e.Postings) == 0 {
		return errors.New("entry has no postings")
	}
	for i, p := range e.Postings {
		if !p.Amount.IsPositive() {
			return fmt.Errorf("entry %s posting %d: amount must be positive, got %s", e.ID, i, p.Amount)
		}
		if p.Account.IsZero() {
			return fmt.Errorf("entry %s posting %d: missing account", e.ID, i)
		}
	}
	debit, credit := e.Totals()
	if !debit.Equal(credit) {
		return &BalanceError{EntryID: e.ID, Description: e.Description, Debit: debit, Credit: credit}
	}
	return nil
}

// Net returns the signed sum of postings to account (debits positive).
func (e *Entry) Net(account string) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range e.Postings {
		if p.Account.ID != account {
			continue
		}
		if p.Side == Debit {
			sum = sum.Add(p.Amount)
		} else {
			sum = sum.Sub(p.Amount)
		}
	}
	return sum
}
