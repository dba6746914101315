package extract

import (
	"fmt"
	"time"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/allocation"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/statement"
)

// LoadOrders reads the order-line extract.
//
// Required columns: order_id, sku, purchase_date, quantity. Optional:
// principal, principal_tax, shipping, shipping_tax, gift_wrap,
// gift_wrap_tax, promotion_discount, ship_promotion_discount, unit_cost,
// fulfillment_channel, currency.
func LoadOrders(path string) ([]allocation.OrderLine, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require("order_id", "sku", "purchase_date", "quantity"); err != nil {
		return nil, err
	}

	var out []allocation.OrderLine
	err = t.each(func(r *row) error {
		o := allocation.OrderLine{
			OrderID:               r.str("order_id"),
			SKU:                   r.str("sku"),
			PurchaseDate:          r.date("purchase_date"),
			Quantity:              r.int("quantity"),
			Principal:             r.decimal("principal"),
			PrincipalTax:          r.decimal("principal_tax"),
			Shipping:              r.decimal("shipping"),
			ShippingTax:           r.decimal("shipping_tax"),
			GiftWrap:              r.decimal("gift_wrap"),
			GiftWrapTax:           r.decimal("gift_wrap_tax"),
			PromotionDiscount:     r.decimal("promotion_discount").Abs(),
			ShipPromotionDiscount: r.decimal("ship_promotion_discount").Abs(),
			UnitCost:              r.decimal("unit_cost"),
			FulfillmentChannel:    r.str("fulfillment_channel"),
			Currency:              r.str("currency"),
		}
		if r.err == nil && o.PurchaseDate.IsZero() {
			return fmt.Errorf("%s line %d: purchase_date is empty", t.source, r.line)
		}
		o.Period = pnl.PeriodOf(o.PurchaseDate)
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadPools reads the cost-pool extract.
//
// Required columns: period (YYYY-MM), sku, kind, total. Optional:
// units_expected. Totals are read as positive charges whatever their sign.
func LoadPools(path string) ([]allocation.CostPool, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require("period", "sku", "kind", "total"); err != nil {
		return nil, err
	}

	var out []allocation.CostPool
	err = t.each(func(r *row) error {
		period, err := pnl.ParsePeriod(r.str("period"))
		if err != nil {
			return fmt.Errorf("%s line %d: %w", t.source, r.line, err)
		}
		kind, err := pnl.ParsePoolKind(r.str("kind"))
		if err != nil {
			return fmt.Errorf("%s line %d: %w", t.source, r.line, err)
		}
		out = append(out, allocation.CostPool{
			Period:        period,
			SKU:           r.str("sku"),
			Kind:          kind,
			Total:         r.decimal("total").Abs(),
			UnitsExpected: r.int("units_expected"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadTransactions reads a settlement report. Both the flat-file spelling
// (settlement-id, posted-date, ...) and snake_case headers are accepted.
//
// Required columns: settlement_id, transaction_type, amount_type,
// amount_description, amount, posted_date, deposit_date. Optional:
// order_id, sku, quantity_purchased, marketplace_name.
func LoadTransactions(path string) ([]statement.Transaction, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require("settlement_id", "transaction_type", "amount_type", "amount_description", "amount", "posted_date", "deposit_date"); err != nil {
		return nil, err
	}

	var out []statement.Transaction
	deposits := make(map[string]time.Time)
	err = t.each(func(r *row) error {
		id := r.str("settlement_id")
		// The flat file carries the deposit date on the summary row only.
		if d := r.date("deposit_date"); !d.IsZero() {
			deposits[id] = d
		}
		if r.str("amount_type") == "" && r.str("amount_description") == "" {
			return nil
		}
		out = append(out, statement.Transaction{
			SettlementID:      id,
			Type:              r.str("transaction_type"),
			OrderID:           r.str("order_id"),
			SKU:               r.str("sku"),
			AmountType:        r.str("amount_type"),
			AmountDescription: r.str("amount_description"),
			Amount:            r.decimal("amount"),
			Quantity:          r.int("quantity_purchased"),
			PostedDate:        r.date("posted_date"),
			DepositDate:       r.date("deposit_date"),
			Marketplace:       r.str("marketplace_name"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].DepositDate.IsZero() {
			out[i].DepositDate = deposits[out[i].SettlementID]
		}
	}
	return out, nil
}
