package pipeline

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/extract"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pathutil"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

var extractExts = []string{".csv", ".tsv", ".txt", ".xlsx"}

// LoadInput reads a period's extracts from {extracts}/{period}/:
// orders.*, pools.* and every settlement*.* file. The pools file also
// serves as inbound transport history, so it may carry earlier periods.
// The previous period's orders are read too when present, so settlement
// rows of its month-end orders stay with that period.
func LoadInput(paths *pathutil.PathResolver, period pnl.Period) (Input, error) {
	in := Input{Period: period}

	path, ok := paths.FindExtract(period, "orders", extractExts...)
	if !ok {
		return in, fmt.Errorf("no orders extract for %s in %s", period, filepath.Dir(paths.Extract(period, "")))
	}
	orders, err := extract.LoadOrders(path)
	if err != nil {
		return in, err
	}
	in.Orders = orders
	if path, ok := paths.FindExtract(period.Prev(), "orders", extractExts...); ok {
		prev, err := extract.LoadOrders(path)
		if err != nil {
			return in, err
		}
		in.Orders = append(in.Orders, prev...)
	}

	if path, ok := paths.FindExtract(period, "pools", extractExts...); ok {
		pools, err := extract.LoadPools(path)
		if err != nil {
			return in, err
		}
		in.Pools, in.History = pools, pools
	}

	matches, err := filepath.Glob(paths.Extract(period, "settlement*"))
	if err != nil {
		return in, err
	}
	slices.Sort(matches)
	for _, m := range matches {
		if !slices.Contains(extractExts, filepath.Ext(m)) {
			continue
		}
		txs, err := extract.LoadTransactions(m)
		if err != nil {
			return in, err
		}
		in.Transactions = append(in.Transactions, txs...)
	}
	return in, nil
}
