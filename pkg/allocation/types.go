// Package allocation builds the accrual ("project") P&L: order lines joined
// with the period's shared cost pools and the rate-based per-order fees.
package allocation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

// OrderLine is one (order, SKU) row of the order extract.
type OrderLine struct {
	OrderID      string
	SKU          string
	PurchaseDate time.Time
	Period       pnl.Period // derived from PurchaseDate when zero
	Quantity     int

	Principal             decimal.Decimal
	PrincipalTax          decimal.Decimal
	Shipping              decimal.Decimal
	ShippingTax           decimal.Decimal
	GiftWrap              decimal.Decimal
	GiftWrapTax           decimal.Decimal
	PromotionDiscount     decimal.Decimal // positive discount granted on the item
	ShipPromotionDiscount decimal.Decimal // positive discount granted on shipping

	UnitCost           decimal.Decimal
	FulfillmentChannel string
	Currency           string
}

// Key identifies an order line across the project and the statement.
// A Non-Sales placeholder has an empty OrderID.
type Key struct {
	OrderID string
	SKU     string
}

// Key returns the (order, SKU) key of the line.
func (o OrderLine) Key() Key { return Key{OrderID: o.OrderID, SKU: o.SKU} }

// CostPool is a period-level charge shared by a SKU's order lines.
// Total is the charge as a positive number.
type CostPool struct {
	Period pnl.Period
	SKU    string
	Kind   pnl.PoolKind
	Total  decimal.Decimal

	// UnitsExpected is the number of units the charge covers. Only the
	// inbound transport pool uses it.
	UnitsExpected int
}

// Rates are the configured percentages for per-order fees.
type Rates struct {
	Commission         decimal.Decimal `yaml:"commission"`
	ShippingCommission decimal.Decimal `yaml:"shipping_commission"`
	// FacilitatorTax is the fraction of collected tax the marketplace withholds.
	FacilitatorTax decimal.Decimal `yaml:"facilitator_tax"`
}

// DefaultRates returns the rates used when none are configured.
func DefaultRates() Rates {
	return Rates{
		Commission:         decimal.RequireFromString("0.10"),
		ShippingCommission: decimal.RequireFromString("0.10"),
		FacilitatorTax:     decimal.NewFromInt(1),
	}
}

// AllocatedLine is an order line (or a Non-Sales placeholder) with its
// accrual P&L amounts.
type AllocatedLine struct {
	OrderLine

	// NonSales marks the synthetic line that carries a SKU's pooled charges
	// when the SKU sold nothing in the period.
	NonSales bool

	// Allocated holds the positive share of every pool the line received.
	Allocated map[pnl.PoolKind]decimal.Decimal

	// Amounts is the signed P&L of the line.
	Amounts pnl.Amounts
}
