// Package beancount renders journal entries as Beancount transactions and
// keeps them in monthly files.
package beancount

import "github.com/shopspring/decimal"

// Transaction represents a Beancount transaction.
type Transaction struct {
	Date      string // YYYY-MM-DD
	Payee     string
	Narration string
	Tags      []string
	Links     []string
	Metadata  []Meta
	Postings  []Posting
}

// Meta is one key: "value" line under the transaction header.
type Meta struct {
	Key   string
	Value string
}

// Posting represents a posting in a Beancount transaction.
type Posting struct {
	Account  string          // e.g. "Income:Sales"
	Amount   decimal.Decimal // positive for debit, negative for credit
	Currency string
	Comment  string
}
