package pnl

import (
	"fmt"
	"strings"
)

// PoolKind identifies a period-level shared charge distributed over a SKU's
// order lines.
type PoolKind int

const (
	FulfillmentFeePool PoolKind = iota + 1
	StorageFeePool
	AdSpendPool
	InboundTransportPool
	SubscriptionFeePool
)

var poolNames = map[PoolKind]string{
	FulfillmentFeePool:   "fulfillment_fee",
	StorageFeePool:       "storage_fee",
	AdSpendPool:          "ad_spend",
	InboundTransportPool: "inbound_transport",
	SubscriptionFeePool:  "subscription_fee",
}

func (k PoolKind) String() string {
	if n, ok := poolNames[k]; ok {
		return n
	}
	return fmt.Sprintf("PoolKind(%d)", int(k))
}

// ParsePoolKind parses the extract spelling of a pool kind.
func ParsePoolKind(s string) (PoolKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range poolNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown pool kind %q", s)
}

// PoolKinds returns every pool kind in a fixed order.
func PoolKinds() []PoolKind {
	return []PoolKind{FulfillmentFeePool, StorageFeePool, AdSpendPool, InboundTransportPool, SubscriptionFeePool}
}

// Category is the P&L category a pool lands in on lines with sales.
func (k PoolKind) Category() Category {
	switch k {
	case FulfillmentFeePool:
		return FBAFulfillmentFee
	case StorageFeePool:
		return FBAStorageFee
	case AdSpendPool:
		return SponsoredProductsSales
	case InboundTransportPool:
		return FBAInboundTransportationFee
	case SubscriptionFeePool:
		return SubscriptionFee
	}
	return CategoryUnknown
}

// NonSalesCategory is the category a pool lands in on a Non-Sales placeholder.
func (k PoolKind) NonSalesCategory() Category {
	if k == AdSpendPool {
		return SponsoredProductsNonSales
	}
	return k.Category()
}

// Cumulative reports whether the pool is amortized over cumulative units
// rather than distributed within its own period.
func (k PoolKind) Cumulative() bool { return k == InboundTransportPool }

// Section groups statement amounts the way the account map keys them.
type Section int

const (
	OrderSection Section = iota
	ReturnSection
	OtherSection
)

var sectionNames = [...]string{"order", "return", "other"}

func (s Section) String() string {
	if s < 0 || int(s) >= len(sectionNames) {
		return fmt.Sprintf("Section(%d)", int(s))
	}
	return sectionNames[s]
}

// ParseSection parses "order", "return" or "other".
func ParseSection(s string) (Section, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range sectionNames {
		if n == s {
			return Section(i), nil
		}
	}
	return 0, fmt.Errorf("unknown section %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Section) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Section) UnmarshalText(text []byte) error {
	parsed, err := ParseSection(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PoolKind) UnmarshalText(text []byte) error {
	parsed, err := ParsePoolKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
