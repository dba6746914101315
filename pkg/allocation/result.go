package allocation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

// Tolerance is the largest difference between a pool total and the sum of
// its allocations that still counts as conserved.
var Tolerance = decimal.New(1, -6)

// ConservationError reports a pool whose allocations do not sum to its total.
type ConservationError struct {
	Period pnl.Period
	SKU    string
	Kind   pnl.PoolKind
	Want   decimal.Decimal
	Got    decimal.Decimal
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("allocation not conserved for %s/%s/%s: pool total %s, allocated %s",
		e.Period, e.SKU, e.Kind, e.Want, e.Got)
}

// Verify checks that every non-cumulative pool of the period is fully
// distributed over the result's lines. All violations are returned joined.
func (r *Result) Verify() error {
	got := make(map[poolKey]decimal.Decimal)
	for _, l := range r.Lines {
		for kind, v := range l.Allocated {
			k := poolKey{l.SKU, kind}
			got[k] = got[k].Add(v)
		}
	}

	var errs []error
	for _, p := range r.Pools {
		if p.Kind.Cumulative() {
			continue
		}
		sum := got[poolKey{p.SKU, p.Kind}]
		if sum.Sub(p.Total).Abs().GreaterThan(Tolerance) {
			errs = append(errs, &ConservationError{
				Period: r.Period,
				SKU:    p.SKU,
				Kind:   p.Kind,
				Want:   p.Total,
				Got:    sum,
			})
		}
	}
	return errors.Join(errs...)
}

// Totals sums every line's amounts.
func (r *Result) Totals() pnl.Amounts {
	out := pnl.Amounts{}
	for _, l := range r.Lines {
		out.Merge(l.Amounts)
	}
	return out
}

// ByKey sums line amounts per (order, SKU). Placeholders share the key
// {"", sku}.
func (r *Result) ByKey() map[Key]pnl.Amounts {
	out := make(map[Key]pnl.Amounts)
	for _, l := range r.Lines {
		k := l.Key()
		if out[k] == nil {
			out[k] = pnl.Amounts{}
		}
		out[k].Merge(l.Amounts)
	}
	return out
}

// AdSpend returns the positive project ad spend per line key. Placeholder
// keys carry the Non-Sales share.
func (r *Result) AdSpend() map[Key]decimal.Decimal {
	out := make(map[Key]decimal.Decimal)
	for _, l := range r.Lines {
		v, ok := l.Allocated[pnl.AdSpendPool]
		if !ok || v.IsZero() {
			continue
		}
		k := l.Key()
		out[k] = out[k].Add(v)
	}
	return out
}

// Empty reports whether the period produced no lines.
func (r *Result) Empty() bool { return r == nil || len(r.Lines) == 0 }
