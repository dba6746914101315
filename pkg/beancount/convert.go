package beancount

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/accountmap"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/journal"
)

// FromEntry converts a journal entry. Debits become positive amounts and
// credits negative, so the postings of a balanced entry sum to zero.
func FromEntry(e *journal.Entry, currency string) Transaction {
	txn := Transaction{
		Date:      e.Date.Format("2006-01-02"),
		Payee:     payee(e),
		Narration: e.Description,
		Tags:      []string{"settlement-" + e.Period.String()},
		Metadata: []Meta{
			{"entry_id", e.ID},
			{"period", e.Period.String()},
			{"phase", string(e.Phase)},
			{"run", fmt.Sprintf("%d", e.Run)},
		},
	}
	if e.SettlementID != "" {
		txn.Links = []string{"settlement-" + sanitizeLink(e.SettlementID)}
	}

	for _, p := range e.Postings {
		amount := p.Amount
		if p.Side == journal.Credit {
			amount = amount.Neg()
		}
		txn.Postings = append(txn.Postings, Posting{
			Account:  AccountName(p.Account),
			Amount:   amount,
			Currency: currency,
			Comment:  p.Description,
		})
	}
	return txn
}

func payee(e *journal.Entry) string {
	for _, p := range e.Postings {
		if p.EntityName != "" {
			return p.EntityName
		}
	}
	return ""
}

// AccountName derives a Beancount account from a ledger account. The root
// follows the leading digit of the account code (1 assets, 2 liabilities,
// 3 equity, 4 income, anything else expenses) and the leaf is the account
// name in CamelCase, e.g. {4010 Sales} -> "Income:Sales".
func AccountName(a accountmap.Account) string {
	root := "Expenses"
	if a.ID != "" {
		switch a.ID[0] {
		case '1':
			root = "Assets"
		case '2':
			root = "Liabilities"
		case '3':
			root = "Equity"
		case '4':
			root = "Income"
		}
	}

	leaf := sanitizeAccountName(a.Name)
	if leaf == "" {
		leaf = "A" + sanitizeAccountName(a.ID)
	}
	return root + ":" + leaf
}

// sanitizeAccountName keeps letters, digits and dashes, capitalizing each word.
func sanitizeAccountName(name string) string {
	var sb strings.Builder
	upper := true
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			sb.WriteRune(r)
		case r == '-':
			sb.WriteRune(r)
			upper = true
		default:
			upper = true
		}
	}
	s := strings.Trim(sb.String(), "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	if s != "" && !unicode.IsUpper(rune(s[0])) && !unicode.IsDigit(rune(s[0])) {
		s = "X" + s
	}
	return s
}

func sanitizeLink(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '-'
	}, s)
}
