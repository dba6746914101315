package statement

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/allocation"
)

// ApportionAdSpend spreads a statement-level ad charge over the project's
// lines in proportion to each line's share of project ad spend:
//
//	share = line_project / total_project * statementTotal
//
// The statement total is authoritative, so the shares always sum to it
// exactly; the last key in (sku, order) order absorbs the rounding
// remainder. It returns nil when the project has no ad spend to weigh by.
func ApportionAdSpend(statementTotal decimal.Decimal, project map[allocation.Key]decimal.Decimal) map[allocation.Key]decimal.Decimal {
	keys := make([]allocation.Key, 0, len(project))
	total := decimal.Zero
	for k, v := range project {
		if v.IsZero() {
			continue
		}
		keys = append(keys, k)
		total = total.Add(v)
	}
	if total.IsZero() {
		return nil
	}
	slices.SortFunc(keys, func(a, b allocation.Key) int {
		if c := strings.Compare(a.SKU, b.SKU); c != 0 {
			return c
		}
		return strings.Compare(a.OrderID, b.OrderID)
	})

	out := make(map[allocation.Key]decimal.Decimal, len(keys))
	assigned := decimal.Zero
	for i, k := range keys {
		if i == len(keys)-1 {
			out[k] = statementTotal.Sub(assigned)
			break
		}
		share := project[k].Div(total).Mul(statementTotal)
		out[k] = share
		assigned = assigned.Add(share)
	}
	return out
}
