package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/accountmap"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/journal"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/reconcile"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		v        string
		currency string
		want     string
	}{
		{"1200", "JPY", "¥1,200"},
		{"-15", "jpy", "-¥15"},
		{"12.5", "USD", "$12.50"},
		{"0.012", "JPY", "0.012 JPY"},
		{"3", "XXX1", "3 XXX1"},
	}
	for _, tt := range tests {
		t.Run(tt.v+tt.currency, func(t *testing.T) {
			if got := Money(decimal.RequireFromString(tt.v), tt.currency); got != tt.want {
				t.Errorf("Money(%s, %s) = %q, want %q", tt.v, tt.currency, got, tt.want)
			}
		})
	}
}

func TestReconciliation(t *testing.T) {
	rec := &reconcile.Reconciliation{
		Period: pnl.Period{Year: 2024, Month: 1},
		Runs: []reconcile.Run{{
			Kind:        reconcile.InOrderMonth,
			Settlements: []string{"S1"},
			Date:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			Lines: []reconcile.Line{{
				Section:         pnl.OrderSection,
				Category:        pnl.Commission,
				State:           reconcile.Adjusted,
				StatementValue:  decimal.NewFromInt(-12),
				ProjectPaid:     decimal.NewFromInt(-10),
				Adjustment:      decimal.NewFromInt(-2),
				AccruedAdjusted: decimal.NewFromInt(-12),
			}},
		}},
	}

	var buf bytes.Buffer
	if err := New(&buf, "JPY").Reconciliation(rec); err != nil {
		t.Fatalf("Reconciliation() failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Reconciliation 2024-01", "Run 1", "in_order_month", "adjusted", "-¥2", "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEntries(t *testing.T) {
	v := decimal.NewFromInt(500)
	e := &journal.Entry{
		Date:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Phase:       journal.PhaseCOGS,
		Description: "COGS 2024-01",
		Postings: []journal.Posting{
			{Description: "COGS", Amount: v, Side: journal.Debit, Account: accountmap.Account{ID: "5100", Name: "Cost of Goods Sold"}},
			{Description: "Outbound Inventory", Amount: v, Side: journal.Credit, Account: accountmap.Account{ID: "1310", Name: "Outbound Inventory"}},
		},
	}

	var buf bytes.Buffer
	if err := New(&buf, "JPY").Entries([]*journal.Entry{e}); err != nil {
		t.Fatalf("Entries() failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "5100 Cost of Goods Sold") || !strings.Contains(out, "¥500") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
