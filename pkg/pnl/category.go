// Package pnl defines the profit-and-loss vocabulary shared by the allocation,
// statement, reconciliation and journal packages: the closed set of P&L
// categories, the accrual period, and category-keyed amount maps.
package pnl

import (
	"fmt"
	"strings"
)

// Category is one line of the seller's P&L. The set is closed: statement
// descriptions and account-map keys are parsed into it, and anything that
// does not parse is reported instead of being silently carried around.
type Category int

const (
	CategoryUnknown Category = iota
	ProductSales
	ProductSalesTax
	ShippingCredits
	ShippingCreditsTax
	GiftWrapCredits
	GiftWrapCreditsTax
	PromotionalRebates
	ShippingPromotion
	MarketplaceFacilitatorTax
	MarketplaceFacilitatorTaxShipping
	Commission
	ShippingCommission
	RefundCommission
	FBAFulfillmentFee
	FBAStorageFee
	SubscriptionFee
	SponsoredProductsCharge
	SponsoredProductsSales
	SponsoredProductsNonSales
	FBAInboundTransportationFee
	FBAInboundTransportationFeeDiff
	PromotionFees
	ReversalReimbursement
	COGS

	categoryCount
)

// Scope tells how a category is matched between the accrual and the cash side.
type Scope int

const (
	// LineScope categories are matched per (order_id, sku).
	LineScope Scope = iota
	// PeriodScope categories are period-level charges matched on their total.
	PeriodScope
	// ProjectOnly categories never appear on a settlement statement.
	ProjectOnly
)

type categoryInfo struct {
	name      string
	scope     Scope
	adjust    bool // always tested against the statement in out-of-order-month runs
	fullyPaid bool // booked as paid at statement value, never carried as AR/AP
}

var categoryTable = [categoryCount]categoryInfo{
	CategoryUnknown:                   {name: "Unknown", scope: PeriodScope},
	ProductSales:                      {name: "Product Sales", scope: LineScope},
	ProductSalesTax:                   {name: "Product Sales Tax", scope: LineScope, adjust: true},
	ShippingCredits:                   {name: "Shipping Credits", scope: LineScope},
	ShippingCreditsTax:                {name: "Shipping Credits Tax", scope: LineScope, adjust: true},
	GiftWrapCredits:                   {name: "Gift Wrap Credits", scope: LineScope},
	GiftWrapCreditsTax:                {name: "Gift Wrap Credits Tax", scope: LineScope, adjust: true},
	PromotionalRebates:                {name: "Promotional Rebates", scope: LineScope, adjust: true},
	ShippingPromotion:                 {name: "Shipping Promotion", scope: LineScope, adjust: true},
	MarketplaceFacilitatorTax:         {name: "Marketplace Facilitator Tax", scope: LineScope, adjust: true},
	MarketplaceFacilitatorTaxShipping: {name: "Marketplace Facilitator Tax Shipping", scope: LineScope, adjust: true},
	Commission:                        {name: "Commission", scope: LineScope, adjust: true},
	ShippingCommission:                {name: "Shipping Commission", scope: LineScope, adjust: true},
	RefundCommission:                  {name: "Refund Commission", scope: LineScope},
	FBAFulfillmentFee:                 {name: "FBA Fulfillment Fee", scope: LineScope, adjust: true},
	FBAStorageFee:                     {name: "Storage Fee", scope: PeriodScope, fullyPaid: true},
	SubscriptionFee:                   {name: "Subscription Fee", scope: PeriodScope, fullyPaid: true},
	SponsoredProductsCharge:           {name: "Sponsored Products Charge", scope: PeriodScope, adjust: true},
	SponsoredProductsSales:            {name: "Sponsored Products Charge Sales", scope: PeriodScope, adjust: true},
	SponsoredProductsNonSales:         {name: "Sponsored Products Charge Non-Sales", scope: PeriodScope, adjust: true},
	FBAInboundTransportationFee:       {name: "FBA Inbound Transportation Fee", scope: PeriodScope},
	FBAInboundTransportationFeeDiff:   {name: "FBA Inbound Transportation Fee Diff", scope: PeriodScope},
	PromotionFees:                     {name: "Promotion/LightningDeal/CouponRedemption Fees", scope: PeriodScope},
	ReversalReimbursement:             {name: "Reversal Reimbursement", scope: PeriodScope},
	COGS:                              {name: "COGS", scope: ProjectOnly},
}

// String returns the display name used in reports and account maps.
func (c Category) String() string {
	if c < 0 || c >= categoryCount {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryTable[c].name
}

// Valid reports whether c is a known, non-Unknown category.
func (c Category) Valid() bool { return c > CategoryUnknown && c < categoryCount }

// Scope returns how the category is matched against the statement.
func (c Category) Scope() Scope {
	if !c.Valid() {
		return PeriodScope
	}
	return categoryTable[c].scope
}

// AlwaysAdjust reports whether the category is on the fixed list of
// categories whose estimate is tested against the statement even when the
// statement carries no value for it.
func (c Category) AlwaysAdjust() bool { return c.Valid() && categoryTable[c].adjust }

// FullyPaid reports whether the category is always booked as paid.
func (c Category) FullyPaid() bool { return c.Valid() && categoryTable[c].fullyPaid }

// RedirectsToAsset reports whether the category's statement delta is booked
// to a balance-sheet asset instead of the P&L.
func (c Category) RedirectsToAsset() bool { return c == FBAInboundTransportationFee }

// InPnL reports whether the category counts towards the P&L total.
func (c Category) InPnL() bool {
	return c.Valid() && c != FBAInboundTransportationFeeDiff && c != SponsoredProductsCharge
}

// Categories returns every valid category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, categoryCount-1)
	for c := CategoryUnknown + 1; c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

// ParseCategory parses a display name (case and surrounding space insensitive).
func ParseCategory(name string) (Category, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for c := CategoryUnknown + 1; c < categoryCount; c++ {
		if strings.ToLower(categoryTable[c].name) == n {
			return c, nil
		}
	}
	return CategoryUnknown, fmt.Errorf("unknown P&L category %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// statementKey identifies a settlement amount by its amount type and description.
type statementKey struct {
	amountType  string
	description string
}

// byTypeAndDescription resolves descriptions that are ambiguous on their own
// ("Principal" is a sale under ItemPrice but a rebate under Promotion).
var byTypeAndDescription = map[statementKey]Category{
	{"promotion", "principal"}:                       PromotionalRebates,
	{"promotion", "shipping"}:                        ShippingPromotion,
	{"cost of advertising", "transactiontotalamount"}: SponsoredProductsCharge,
}

var byDescription = map[string]Category{
	"principal":                           ProductSales,
	"tax":                                 ProductSalesTax,
	"shipping":                            ShippingCredits,
	"shippingtax":                         ShippingCreditsTax,
	"giftwrap":                            GiftWrapCredits,
	"giftwraptax":                         GiftWrapCreditsTax,
	"marketplacefacilitatortax-principal": MarketplaceFacilitatorTax,
	"marketplacefacilitatortax-shipping":  MarketplaceFacilitatorTaxShipping,
	"commission":                          Commission,
	"shippinghb":                          ShippingCommission,
	"refundcommission":                    RefundCommission,
	"fbaperunitfulfillmentfee":            FBAFulfillmentFee,
	"storage fee":                         FBAStorageFee,
	"subscription fee":                    SubscriptionFee,
	"sponsored products charge":           SponsoredProductsCharge,
	"fba inbound transportation fee":      FBAInboundTransportationFee,
	"reversal_reimbursement":              ReversalReimbursement,

	"promotion/lightningdeal/couponredemption fees": PromotionFees,
}

// ParseStatement maps a settlement row's amount type and amount description
// to a category. ok is false for descriptions outside the known set.
func ParseStatement(amountType, description string) (c Category, ok bool) {
	t := strings.ToLower(strings.TrimSpace(amountType))
	d := strings.ToLower(strings.TrimSpace(description))
	if c, ok := byTypeAndDescription[statementKey{t, d}]; ok {
		return c, true
	}
	c, ok = byDescription[d]
	return c, ok
}
