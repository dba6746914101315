package statement

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/allocation"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

// Decomposition is the statement P&L of one accrual period.
type Decomposition struct {
	Period      pnl.Period
	Settlements []Settlement // sorted by (deposit date, id)
	Buckets     []Bucket

	// Unknown holds rows whose description did not parse. They are excluded
	// from every bucket.
	Unknown []Transaction
}

type bucketKey struct {
	settlement string
	group      Group
	key        allocation.Key
}

// Decompose pivots the rows of txs that belong to period. A row of an order
// listed in orders belongs to that order's purchase period, wherever it was
// posted; every other row belongs to the month it was posted in. orders may
// span several periods.
func Decompose(period pnl.Period, txs []Transaction, orders []allocation.OrderLine) (*Decomposition, error) {
	out := &Decomposition{Period: period}
	index := make(map[bucketKey]int)
	deposits := make(map[string]Settlement)
	attr := attribute(orders)

	for _, tx := range txs {
		if attr.periodOf(tx) != period {
			continue
		}
		if tx.SettlementID == "" {
			return nil, fmt.Errorf("row for order %q posted %s: empty settlement id", tx.OrderID, tx.PostedDate.Format("2006-01-02"))
		}
		if tx.DepositDate.IsZero() {
			return nil, fmt.Errorf("settlement %s: missing deposit date", tx.SettlementID)
		}

		s, seen := deposits[tx.SettlementID]
		if !seen {
			s = Settlement{ID: tx.SettlementID, DepositDate: tx.DepositDate, Timing: timing(period, tx)}
			deposits[tx.SettlementID] = s
		} else if !sameDay(s.DepositDate, tx.DepositDate) {
			return nil, fmt.Errorf("settlement %s: conflicting deposit dates %s and %s",
				tx.SettlementID, s.DepositDate.Format("2006-01-02"), tx.DepositDate.Format("2006-01-02"))
		}

		cat, ok := pnl.ParseStatement(tx.AmountType, tx.AmountDescription)
		if !ok {
			out.Unknown = append(out.Unknown, tx)
			continue
		}

		g := Classify(tx)
		k := bucketKey{settlement: tx.SettlementID, group: g}
		if g != NonOrderGroup {
			k.key = allocation.Key{OrderID: strings.TrimSpace(tx.OrderID), SKU: strings.TrimSpace(tx.SKU)}
		}

		i, exists := index[k]
		if !exists {
			i = len(out.Buckets)
			index[k] = i
			b := Bucket{
				SettlementID: s.ID,
				DepositDate:  s.DepositDate,
				Timing:       s.Timing,
				Group:        g,
				Key:          k.key,
				Amounts:      pnl.Amounts{},
			}
			if g != NonOrderGroup {
				b.Quantity = tx.Quantity
				b.PostedDate = tx.PostedDate
				b.Marketplace = tx.Marketplace
			}
			out.Buckets = append(out.Buckets, b)
		}
		out.Buckets[i].Amounts.Add(cat, tx.Amount)
	}

	for _, s := range deposits {
		out.Settlements = append(out.Settlements, s)
	}
	slices.SortFunc(out.Settlements, func(a, b Settlement) int {
		if c := a.DepositDate.Compare(b.DepositDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	slices.SortStableFunc(out.Buckets, func(a, b Bucket) int {
		return cmp.Or(
			strings.Compare(a.SettlementID, b.SettlementID),
			cmp.Compare(a.Group, b.Group),
			strings.Compare(a.Key.OrderID, b.Key.OrderID),
			strings.Compare(a.Key.SKU, b.Key.SKU),
		)
	})
	return out, nil
}

// attribution maps order ids to their purchase period.
type attribution map[string]pnl.Period

func attribute(orders []allocation.OrderLine) attribution {
	a := make(attribution, len(orders))
	for _, o := range orders {
		p := o.Period
		if p.IsZero() {
			p = pnl.PeriodOf(o.PurchaseDate)
		}
		a[strings.TrimSpace(o.OrderID)] = p
	}
	return a
}

// periodOf returns the accrual period of a row. Returns stay with the month
// they were posted in: the sale they reverse may sit in a period already
// closed.
func (a attribution) periodOf(tx Transaction) pnl.Period {
	if Classify(tx) == OrderGroup {
		if p, ok := a[strings.TrimSpace(tx.OrderID)]; ok {
			return p
		}
	}
	return pnl.PeriodOf(tx.PostedDate)
}

func timing(period pnl.Period, tx Transaction) Timing {
	if period.Covers(tx.DepositDate) {
		return InOrderMonth
	}
	return OutOfOrderMonth
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Empty reports whether the period has no settlement rows at all.
func (d *Decomposition) Empty() bool {
	return d == nil || (len(d.Buckets) == 0 && len(d.Unknown) == 0)
}

// Select returns the buckets of one settlement, optionally restricted to groups.
func (d *Decomposition) Select(settlementID string, groups ...Group) []Bucket {
	var out []Bucket
	for _, b := range d.Buckets {
		if b.SettlementID != settlementID {
			continue
		}
		if len(groups) > 0 && !slices.Contains(groups, b.Group) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// InOrderMonth returns the buckets of every settlement deposited inside the period.
func (d *Decomposition) InOrderMonth() []Bucket {
	var out []Bucket
	for _, b := range d.Buckets {
		if b.Timing == InOrderMonth {
			out = append(out, b)
		}
	}
	return out
}

// Late returns the settlements deposited after the period, in run order.
func (d *Decomposition) Late() []Settlement {
	var out []Settlement
	for _, s := range d.Settlements {
		if s.Timing == OutOfOrderMonth {
			out = append(out, s)
		}
	}
	return out
}
