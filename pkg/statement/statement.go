// Package statement turns marketplace settlement rows into the cash-basis
// ("statement") P&L: buckets per order line and per settlement, tagged by
// whether the settlement was deposited inside the accrual period.
package statement

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/allocation"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

// Transaction is one row of a settlement statement.
type Transaction struct {
	SettlementID      string
	Type              string // transaction type: Order, Refund, other-transaction, ...
	OrderID           string
	SKU               string
	AmountType        string
	AmountDescription string
	Amount            decimal.Decimal
	Quantity          int
	PostedDate        time.Time
	DepositDate       time.Time
	Marketplace       string
}

// Group is the disjoint class a transaction falls into.
type Group int

const (
	OrderGroup Group = iota
	ReturnGroup
	NonOrderGroup
)

func (g Group) String() string {
	switch g {
	case OrderGroup:
		return "order"
	case ReturnGroup:
		return "return"
	case NonOrderGroup:
		return "non-order"
	}
	return "unknown"
}

// Section returns the account-map section the group books under.
func (g Group) Section() pnl.Section {
	switch g {
	case ReturnGroup:
		return pnl.ReturnSection
	case NonOrderGroup:
		return pnl.OtherSection
	}
	return pnl.OrderSection
}

var returnTypes = map[string]bool{
	"refund":                  true,
	"chargeback refund":       true,
	"a-to-z guarantee refund": true,
}

// Classify assigns tx to its group.
func Classify(tx Transaction) Group {
	t := strings.ToLower(strings.TrimSpace(tx.Type))
	switch {
	case returnTypes[t]:
		return ReturnGroup
	case t == "order", strings.TrimSpace(tx.OrderID) != "":
		return OrderGroup
	}
	return NonOrderGroup
}

// Timing tells which reconciliation run consumes a bucket.
type Timing int

const (
	InOrderMonth Timing = iota
	OutOfOrderMonth
)

func (t Timing) String() string {
	if t == InOrderMonth {
		return "in_order_month"
	}
	return "out_of_order_month"
}

// Bucket is the pivot of a settlement's rows for one order line, or for all
// of the settlement's non-order rows (empty Key).
type Bucket struct {
	SettlementID string
	DepositDate  time.Time
	Timing       Timing
	Group        Group
	Key          allocation.Key

	// Per-order fields, taken from the first row of the key only.
	Quantity    int
	PostedDate  time.Time
	Marketplace string

	Amounts pnl.Amounts
}

// Settlement summarizes one settlement that carries rows of the period.
type Settlement struct {
	ID          string
	DepositDate time.Time
	Timing      Timing
}
