package pnl

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts holds one signed value per category. Revenue and contra-expense
// amounts are positive, expenses negative.
type Amounts map[Category]decimal.Decimal

// Add accumulates v into c.
func (a Amounts) Add(c Category, v decimal.Decimal) {
	if v.IsZero() {
		return
	}
	a[c] = a[c].Add(v)
}

// Get returns the value for c (zero when absent).
func (a Amounts) Get(c Category) decimal.Decimal { return a[c] }

// Has reports whether c carries a non-zero value.
func (a Amounts) Has(c Category) bool { return !a[c].IsZero() }

// Merge accumulates every value of b into a.
func (a Amounts) Merge(b Amounts) {
	for c, v := range b {
		a.Add(c, v)
	}
}

// Clone returns a copy of a.
func (a Amounts) Clone() Amounts {
	out := make(Amounts, len(a))
	for c, v := range a {
		out[c] = v
	}
	return out
}

// Sum returns the total over the categories accepted by keep (all when nil).
func (a Amounts) Sum(keep func(Category) bool) decimal.Decimal {
	total := decimal.Zero
	for _, c := range a.Categories() {
		if keep == nil || keep(c) {
			total = total.Add(a[c])
		}
	}
	return total
}

// IsZero reports whether every value is zero.
func (a Amounts) IsZero() bool {
	for _, v := range a {
		if !v.IsZero() {
			return false
		}
	}
	return true
}

// Categories returns the categories present in a in declaration order, so
// that iteration (and therefore summation order) is deterministic.
func (a Amounts) Categories() []Category {
	out := make([]Category, 0, len(a))
	for c := range a {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// String renders the non-zero values, mostly for test failure messages.
func (a Amounts) String() string {
	var parts []string
	for _, c := range a.Categories() {
		if a[c].IsZero() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", c, a[c]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
