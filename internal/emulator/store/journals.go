package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/ledger"
)

// CreateJournal stores a journal and returns it with its id.
func (s *Store) CreateJournal(req *ledger.CreateJournalRequest) (*ledger.Journal, error) {
	journal := &ledger.Journal{
		CompanyID:      req.CompanyID,
		IssueDate:      req.IssueDate,
		DocumentNumber: req.DocumentNumber,
		Description:    req.Description,
		Details:        req.Details,
		CreatedAt:      time.Now().UTC(),
	}
	err := s.insert(BucketJournals, func(id int64) any {
		journal.ID = id
		return journal
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save journal: %w", err)
	}
	return journal, nil
}

// GetJournal retrieves a journal by id.
func (s *Store) GetJournal(id int64) (*ledger.Journal, error) {
	var journal ledger.Journal
	if err := s.get(BucketJournals, id, &journal); err != nil {
		return nil, err
	}
	return &journal, nil
}

// JournalFilter narrows ListJournals. Zero fields match everything; dates
// are inclusive YYYY-MM-DD bounds on the issue date.
type JournalFilter struct {
	CompanyID int64
	DateFrom  string
	DateTo    string
}

func (f JournalFilter) match(j *ledger.Journal) bool {
	if f.CompanyID != 0 && j.CompanyID != f.CompanyID {
		return false
	}
	if f.DateFrom != "" && j.IssueDate < f.DateFrom {
		return false
	}
	if f.DateTo != "" && j.IssueDate > f.DateTo {
		return false
	}
	return true
}

// ListJournals returns the journals matching f in id order.
func (s *Store) ListJournals(f JournalFilter) ([]*ledger.Journal, error) {
	results, err := s.list(BucketJournals, nil)
	if err != nil {
		return nil, err
	}

	journals := make([]*ledger.Journal, 0, len(results))
	for _, data := range results {
		var journal ledger.Journal
		if err := json.Unmarshal(data, &journal); err != nil {
			return nil, fmt.Errorf("failed to unmarshal journal: %w", err)
		}
		if f.match(&journal) {
			journals = append(journals, &journal)
		}
	}
	return journals, nil
}
