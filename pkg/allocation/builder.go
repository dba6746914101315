package allocation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

// Result is the project P&L of one period.
type Result struct {
	Period pnl.Period
	Lines  []AllocatedLine

	// Pools are the period's own pools, used by Verify.
	Pools []CostPool
}

// Builder joins order lines with cost pools.
type Builder struct {
	rates Rates
}

// NewBuilder creates a builder using the given fee rates.
func NewBuilder(rates Rates) *Builder {
	return &Builder{rates: rates}
}

type poolKey struct {
	sku  string
	kind pnl.PoolKind
}

// Build produces the allocated lines for period.
//
// orders and pools may contain rows of other periods; only the period's rows
// are used. history carries the inbound transport pools of earlier periods
// for cumulative amortization (it may overlap pools).
func (b *Builder) Build(period pnl.Period, orders []OrderLine, pools []CostPool, history []CostPool) (*Result, error) {
	current, err := periodPools(period, pools)
	if err != nil {
		return nil, err
	}

	bySKU := make(map[string][]OrderLine)
	var skus []string
	for _, o := range orders {
		if o.Period.IsZero() {
			o.Period = pnl.PeriodOf(o.PurchaseDate)
		}
		if o.Period != period {
			continue
		}
		if o.SKU == "" {
			return nil, fmt.Errorf("order %s: empty sku", o.OrderID)
		}
		if o.Quantity < 0 {
			return nil, fmt.Errorf("order %s sku %s: negative quantity %d", o.OrderID, o.SKU, o.Quantity)
		}
		if _, ok := bySKU[o.SKU]; !ok {
			skus = append(skus, o.SKU)
		}
		bySKU[o.SKU] = append(bySKU[o.SKU], o)
	}
	for k := range current {
		if _, ok := bySKU[k.sku]; !ok {
			bySKU[k.sku] = nil
			skus = append(skus, k.sku)
		}
	}
	slices.Sort(skus)

	inbound := cumulativeInbound(period, pools, history)

	res := &Result{Period: period}
	for _, p := range current {
		res.Pools = append(res.Pools, p)
	}
	sortPools(res.Pools)

	for _, sku := range skus {
		lines := b.buildSKU(period, sku, bySKU[sku], current, inbound[sku])
		for _, l := range lines {
			if l.Amounts.IsZero() && !l.NonSales {
				continue
			}
			res.Lines = append(res.Lines, l)
		}
	}
	return res, nil
}

func (b *Builder) buildSKU(period pnl.Period, sku string, orders []OrderLine, pools map[poolKey]CostPool, inbound unitCost) []AllocatedLine {
	totalQty := 0
	for _, o := range orders {
		totalQty += o.Quantity
	}

	lines := make([]AllocatedLine, 0, len(orders)+1)
	for _, o := range orders {
		lines = append(lines, AllocatedLine{
			OrderLine: o,
			Allocated: make(map[pnl.PoolKind]decimal.Decimal),
			Amounts:   b.orderAmounts(o),
		})
	}

	if totalQty == 0 {
		placeholder := AllocatedLine{
			OrderLine: OrderLine{SKU: sku, Period: period},
			NonSales:  true,
			Allocated: make(map[pnl.PoolKind]decimal.Decimal),
			Amounts:   pnl.Amounts{},
		}
		for _, kind := range pnl.PoolKinds() {
			p, ok := pools[poolKey{sku, kind}]
			if !ok {
				continue
			}
			if kind.Cumulative() {
				// Amortized over units as they sell; nothing lands this period.
				placeholder.Allocated[kind] = decimal.Zero
				continue
			}
			placeholder.Allocated[kind] = p.Total
			placeholder.Amounts.Add(kind.NonSalesCategory(), p.Total.Neg())
		}
		return append(lines, placeholder)
	}

	for _, kind := range pnl.PoolKinds() {
		if kind.Cumulative() {
			continue
		}
		p, ok := pools[poolKey{sku, kind}]
		if !ok {
			continue
		}
		shares := distribute(p.Total, lines, totalQty)
		for i, s := range shares {
			lines[i].Allocated[kind] = s
			lines[i].Amounts.Add(kind.Category(), s.Neg())
		}
	}

	if inbound.ok() {
		rate := inbound.perUnit()
		for i := range lines {
			fee := rate.Mul(decimal.NewFromInt(int64(lines[i].Quantity)))
			lines[i].Allocated[pnl.InboundTransportPool] = fee
			lines[i].Amounts.Add(pnl.FBAInboundTransportationFee, fee.Neg())
		}
	}
	return lines
}

// orderAmounts computes the line's own revenue and rate-based fees.
func (b *Builder) orderAmounts(o OrderLine) pnl.Amounts {
	a := pnl.Amounts{}
	a.Add(pnl.ProductSales, o.Principal)
	a.Add(pnl.ProductSalesTax, o.PrincipalTax)
	a.Add(pnl.ShippingCredits, o.Shipping)
	a.Add(pnl.ShippingCreditsTax, o.ShippingTax)
	a.Add(pnl.GiftWrapCredits, o.GiftWrap)
	a.Add(pnl.GiftWrapCreditsTax, o.GiftWrapTax)
	a.Add(pnl.PromotionalRebates, o.PromotionDiscount.Neg())
	a.Add(pnl.ShippingPromotion, o.ShipPromotionDiscount.Neg())

	a.Add(pnl.Commission, o.Principal.Mul(b.rates.Commission).Neg())
	a.Add(pnl.ShippingCommission, o.Shipping.Mul(b.rates.ShippingCommission).Neg())
	a.Add(pnl.MarketplaceFacilitatorTax, o.PrincipalTax.Mul(b.rates.FacilitatorTax).Neg())
	a.Add(pnl.MarketplaceFacilitatorTaxShipping, o.ShippingTax.Mul(b.rates.FacilitatorTax).Neg())

	a.Add(pnl.COGS, o.UnitCost.Mul(decimal.NewFromInt(int64(o.Quantity))).Neg())
	return a
}

// distribute splits total over lines by quantity. The last line with a
// non-zero quantity absorbs the division remainder so the shares sum exactly.
func distribute(total decimal.Decimal, lines []AllocatedLine, totalQty int) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(lines))
	last := -1
	for i := range lines {
		if lines[i].Quantity > 0 {
			last = i
		}
	}
	denom := decimal.NewFromInt(int64(totalQty))
	sum := decimal.Zero
	for i := range lines {
		if lines[i].Quantity == 0 || i == last {
			continue
		}
		shares[i] = total.Mul(decimal.NewFromInt(int64(lines[i].Quantity))).Div(denom)
		sum = sum.Add(shares[i])
	}
	if last >= 0 {
		shares[last] = total.Sub(sum)
	}
	return shares
}

func periodPools(period pnl.Period, pools []CostPool) (map[poolKey]CostPool, error) {
	out := make(map[poolKey]CostPool)
	for _, p := range pools {
		if p.Period != period {
			continue
		}
		if p.SKU == "" {
			return nil, fmt.Errorf("%s pool for %s: empty sku", p.Kind, period)
		}
		if !slices.Contains(pnl.PoolKinds(), p.Kind) {
			return nil, fmt.Errorf("pool for sku %s: unknown kind %d", p.SKU, int(p.Kind))
		}
		if p.Total.IsNegative() {
			return nil, fmt.Errorf("%s pool for sku %s in %s: negative total %s", p.Kind, p.SKU, period, p.Total)
		}
		k := poolKey{p.SKU, p.Kind}
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("duplicate %s pool for sku %s in %s", p.Kind, p.SKU, period)
		}
		out[k] = p
	}
	return out, nil
}

// unitCost is the running inbound transport cost and unit count of a SKU.
type unitCost struct {
	cost  decimal.Decimal
	units int
}

func (u unitCost) ok() bool { return u.units > 0 && !u.cost.IsZero() }

func (u unitCost) perUnit() decimal.Decimal {
	return u.cost.Div(decimal.NewFromInt(int64(u.units)))
}

// cumulativeInbound totals every inbound transport pool up to and including
// period, per SKU. Pools present in both slices count once.
func cumulativeInbound(period pnl.Period, pools, history []CostPool) map[string]unitCost {
	seen := make(map[string]bool)
	out := make(map[string]unitCost)
	for _, p := range slices.Concat(history, pools) {
		if p.Kind != pnl.InboundTransportPool || period.Before(p.Period) {
			continue
		}
		id := p.Period.String() + "\x00" + p.SKU
		if seen[id] {
			continue
		}
		seen[id] = true
		u := out[p.SKU]
		u.cost = u.cost.Add(p.Total)
		u.units += p.UnitsExpected
		out[p.SKU] = u
	}
	return out
}

func sortPools(pools []CostPool) {
	slices.SortFunc(pools, func(a, b CostPool) int {
		if c := strings.Compare(a.SKU, b.SKU); c != 0 {
			return c
		}
		return int(a.Kind) - int(b.Kind)
	})
}
