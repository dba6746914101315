package beancount

import (
	"fmt"
	"strings"
)

// amountColumn is where posting amounts are right-aligned.
const amountColumn = 60

// Format formats a Beancount transaction as a string.
func Format(txn Transaction) string {
	var sb strings.Builder

	sb.WriteString(txn.Date)
	sb.WriteString(" *")
	if txn.Payee != "" {
		fmt.Fprintf(&sb, " %q", txn.Payee)
	}
	fmt.Fprintf(&sb, " %q", txn.Narration)
	for _, tag := range txn.Tags {
		sb.WriteString(" #" + tag)
	}
	for _, link := range txn.Links {
		sb.WriteString(" ^" + link)
	}
	sb.WriteString("\n")

	for _, m := range txn.Metadata {
		fmt.Fprintf(&sb, "  %s: %q\n", m.Key, m.Value)
	}

	for _, p := range txn.Postings {
		sb.WriteString("  ")
		sb.WriteString(p.Account)

		amount := p.Amount.String()
		spaces := amountColumn - len(p.Account) - len(amount)
		if spaces < 2 {
			spaces = 2
		}
		sb.WriteString(strings.Repeat(" ", spaces))
		sb.WriteString(amount)
		sb.WriteString(" ")
		sb.WriteString(p.Currency)

		if p.Comment != "" {
			fmt.Fprintf(&sb, " ; %s", p.Comment)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
