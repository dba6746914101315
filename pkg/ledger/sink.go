package ledger

import (
	"context"
	"fmt"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/beancount"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/journal"
)

// Sink accepts one journal entry and returns the backend's reference for it.
type Sink interface {
	Name() string
	Post(ctx context.Context, e *journal.Entry) (string, error)
}

// BeancountSink appends entries to monthly Beancount files.
type BeancountSink struct {
	repo     beancount.Repository
	currency string
}

// NewBeancountSink creates a sink writing through repo.
func NewBeancountSink(repo beancount.Repository, currency string) *BeancountSink {
	if currency == "" {
		currency = "JPY"
	}
	return &BeancountSink{repo: repo, currency: currency}
}

func (s *BeancountSink) Name() string { return "beancount" }

// Post writes the entry to the file of its accrual period, so closing
// entries dated in a later month stay with the period they settle.
func (s *BeancountSink) Post(ctx context.Context, e *journal.Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	txn := beancount.FromEntry(e, s.currency)
	path, err := s.repo.AppendTransaction(e.Period, beancount.Format(txn))
	if err != nil {
		return "", fmt.Errorf("failed to write entry %s: %w", e.ID, err)
	}
	return path, nil
}
