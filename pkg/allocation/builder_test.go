package allocation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var march = pnl.Period{Year: 2024, Month: time.March}

func order(id, sku string, qty int) OrderLine {
	return OrderLine{
		OrderID:      id,
		SKU:          sku,
		PurchaseDate: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
		Quantity:     qty,
		Principal:    d("20").Mul(decimal.NewFromInt(int64(qty))),
	}
}

func findLine(t *testing.T, res *Result, k Key) AllocatedLine {
	t.Helper()
	for _, l := range res.Lines {
		if l.Key() == k {
			return l
		}
	}
	t.Fatalf("line %+v not found", k)
	return AllocatedLine{}
}

func TestBuildQuantityProportional(t *testing.T) {
	b := NewBuilder(DefaultRates())
	orders := []OrderLine{order("O1", "A", 2), order("O2", "A", 8)}
	pools := []CostPool{{Period: march, SKU: "A", Kind: pnl.FulfillmentFeePool, Total: d("15.00")}}

	res, err := b.Build(march, orders, pools, nil)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if err := res.Verify(); err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}

	tests := []struct {
		id   string
		want string
	}{
		{"O1", "3.00"},
		{"O2", "12.00"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			l := findLine(t, res, Key{OrderID: tt.id, SKU: "A"})
			if got := l.Allocated[pnl.FulfillmentFeePool]; !got.Equal(d(tt.want)) {
				t.Errorf("allocated fee = %s, want %s", got, tt.want)
			}
			if got := l.Amounts.Get(pnl.FBAFulfillmentFee); !got.Equal(d(tt.want).Neg()) {
				t.Errorf("P&L fee = %s, want -%s", got, tt.want)
			}
		})
	}
}

func TestBuildRemainderConserved(t *testing.T) {
	b := NewBuilder(DefaultRates())
	orders := []OrderLine{order("O1", "A", 1), order("O2", "A", 1), order("O3", "A", 1)}
	pools := []CostPool{{Period: march, SKU: "A", Kind: pnl.StorageFeePool, Total: d("10")}}

	res, err := b.Build(march, orders, pools, nil)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	sum := decimal.Zero
	for _, l := range res.Lines {
		sum = sum.Add(l.Allocated[pnl.StorageFeePool])
	}
	if !sum.Equal(d("10")) {
		t.Errorf("allocations sum to %s, want exactly 10", sum)
	}
}

func TestBuildNonSalesPlaceholder(t *testing.T) {
	b := NewBuilder(DefaultRates())
	orders := []OrderLine{order("O1", "A", 1)}
	pools := []CostPool{
		{Period: march, SKU: "B", Kind: pnl.StorageFeePool, Total: d("7.50")},
		{Period: march, SKU: "B", Kind: pnl.AdSpendPool, Total: d("20")},
		{Period: march, SKU: "A", Kind: pnl.AdSpendPool, Total: d("5")},
	}

	res, err := b.Build(march, orders, pools, nil)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if err := res.Verify(); err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}

	ph := findLine(t, res, Key{SKU: "B"})
	if !ph.NonSales || ph.Quantity != 0 {
		t.Errorf("placeholder = %+v, want NonSales with zero quantity", ph)
	}
	if got := ph.Amounts.Get(pnl.FBAStorageFee); !got.Equal(d("-7.50")) {
		t.Errorf("placeholder storage = %s, want -7.50", got)
	}
	if got := ph.Amounts.Get(pnl.SponsoredProductsNonSales); !got.Equal(d("-20")) {
		t.Errorf("placeholder ad spend = %s, want -20 as Non-Sales", got)
	}

	sold := findLine(t, res, Key{OrderID: "O1", SKU: "A"})
	if got := sold.Amounts.Get(pnl.SponsoredProductsSales); !got.Equal(d("-5")) {
		t.Errorf("sales ad spend = %s, want -5", got)
	}
}

func TestBuildRateFees(t *testing.T) {
	rates := Rates{
		Commission:         d("0.1172"),
		ShippingCommission: d("0.1"),
		FacilitatorTax:     d("1"),
	}
	b := NewBuilder(rates)
	o := OrderLine{
		OrderID:           "O1",
		SKU:               "A",
		Period:            march,
		Quantity:          1,
		Principal:         d("40.00"),
		PrincipalTax:      d("3.20"),
		Shipping:          d("5.00"),
		PromotionDiscount: d("2.00"),
		UnitCost:          d("11"),
	}

	res, err := b.Build(march, []OrderLine{o}, nil, nil)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	l := findLine(t, res, o.Key())

	tests := []struct {
		cat  pnl.Category
		want string
	}{
		{pnl.ProductSales, "40"},
		{pnl.Commission, "-4.688"},
		{pnl.ShippingCommission, "-0.5"},
		{pnl.MarketplaceFacilitatorTax, "-3.20"},
		{pnl.PromotionalRebates, "-2"},
		{pnl.COGS, "-11"},
	}
	for _, tt := range tests {
		t.Run(tt.cat.String(), func(t *testing.T) {
			if got := l.Amounts.Get(tt.cat); !got.Equal(d(tt.want)) {
				t.Errorf("%s = %s, want %s", tt.cat, got, tt.want)
			}
		})
	}
}

func TestBuildCumulativeInbound(t *testing.T) {
	b := NewBuilder(DefaultRates())
	feb := pnl.Period{Year: 2024, Month: time.February}
	history := []CostPool{{Period: feb, SKU: "A", Kind: pnl.InboundTransportPool, Total: d("30"), UnitsExpected: 100}}
	pools := []CostPool{
		{Period: march, SKU: "A", Kind: pnl.InboundTransportPool, Total: d("20"), UnitsExpected: 100},
		{Period: pnl.Period{Year: 2024, Month: time.April}, SKU: "A", Kind: pnl.InboundTransportPool, Total: d("999"), UnitsExpected: 1},
	}

	res, err := b.Build(march, []OrderLine{order("O1", "A", 4)}, pools, history)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	l := findLine(t, res, Key{OrderID: "O1", SKU: "A"})
	// (30+20)/(100+100) per unit, four units.
	if got := l.Amounts.Get(pnl.FBAInboundTransportationFee); !got.Equal(d("-1")) {
		t.Errorf("inbound fee = %s, want -1", got)
	}
	if err := res.Verify(); err != nil {
		t.Errorf("Verify() must skip cumulative pools, got %v", err)
	}
}

func TestBuildInboundOnlySKUKeepsPlaceholder(t *testing.T) {
	b := NewBuilder(DefaultRates())
	pools := []CostPool{{Period: march, SKU: "B", Kind: pnl.InboundTransportPool, Total: d("30"), UnitsExpected: 60}}

	res, err := b.Build(march, []OrderLine{order("O1", "A", 1)}, pools, nil)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	ph := findLine(t, res, Key{SKU: "B"})
	if !ph.NonSales {
		t.Errorf("placeholder = %+v, want NonSales", ph)
	}
	v, ok := ph.Allocated[pnl.InboundTransportPool]
	if !ok || !v.IsZero() {
		t.Errorf("inbound allocation = %s (present %v), want zero", v, ok)
	}
	if !ph.Amounts.IsZero() {
		t.Errorf("placeholder amounts = %v, want none", ph.Amounts)
	}
	if err := res.Verify(); err != nil {
		t.Errorf("Verify() failed: %v", err)
	}
}

func TestBuildDropsZeroLines(t *testing.T) {
	b := NewBuilder(DefaultRates())
	orders := []OrderLine{
		{OrderID: "O1", SKU: "A", Period: march},
		order("O2", "B", 1),
	}
	res, err := b.Build(march, orders, nil, nil)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if len(res.Lines) != 1 || res.Lines[0].OrderID != "O2" {
		t.Errorf("Lines = %+v, want only O2", res.Lines)
	}
}

func TestBuildRejectsDuplicatePool(t *testing.T) {
	b := NewBuilder(DefaultRates())
	pools := []CostPool{
		{Period: march, SKU: "A", Kind: pnl.StorageFeePool, Total: d("1")},
		{Period: march, SKU: "A", Kind: pnl.StorageFeePool, Total: d("2")},
	}
	if _, err := b.Build(march, nil, pools, nil); err == nil {
		t.Error("Build() expected an error for duplicate pools")
	}
}

func TestBuildRejectsNegativePool(t *testing.T) {
	b := NewBuilder(DefaultRates())
	pools := []CostPool{{Period: march, SKU: "A", Kind: pnl.AdSpendPool, Total: d("-5")}}
	if _, err := b.Build(march, []OrderLine{order("O1", "A", 1)}, pools, nil); err == nil {
		t.Error("Build() expected an error for a negative pool total")
	}
}

func TestVerifyReportsViolation(t *testing.T) {
	res := &Result{
		Period: march,
		Pools:  []CostPool{{Period: march, SKU: "A", Kind: pnl.FulfillmentFeePool, Total: d("15")}},
		Lines: []AllocatedLine{{
			OrderLine: order("O1", "A", 1),
			Allocated: map[pnl.PoolKind]decimal.Decimal{pnl.FulfillmentFeePool: d("14")},
		}},
	}
	err := res.Verify()
	var ce *ConservationError
	if !errors.As(err, &ce) {
		t.Fatalf("Verify() = %v, want ConservationError", err)
	}
	if ce.SKU != "A" || ce.Kind != pnl.FulfillmentFeePool || !ce.Got.Equal(d("14")) {
		t.Errorf("ConservationError = %+v", ce)
	}
}
