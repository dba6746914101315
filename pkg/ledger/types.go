// Package ledger delivers journal entries to a books backend: the HTTP
// accounting API, or monthly Beancount files.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/journal"
)

// Entry types of a journal detail.
const (
	EntryDebit  = "debit"
	EntryCredit = "credit"
)

// CreateJournalRequest is the body of POST /api/1/journals.
type CreateJournalRequest struct {
	CompanyID      int64           `json:"company_id"`
	IssueDate      string          `json:"issue_date"` // YYYY-MM-DD
	DocumentNumber string          `json:"document_number"`
	Description    string          `json:"description,omitempty"`
	Details        []JournalDetail `json:"details"`
}

// JournalDetail is one line of a journal.
type JournalDetail struct {
	EntryType   string          `json:"entry_type"` // debit or credit
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PartnerType string          `json:"partner_type,omitempty"` // customer or vendor
	PartnerName string          `json:"partner_name,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Journal is a journal stored by the ledger.
type Journal struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	IssueDate      string          `json:"issue_date"`
	DocumentNumber string          `json:"document_number"`
	Description    string          `json:"description,omitempty"`
	Details        []JournalDetail `json:"details"`
	CreatedAt      time.Time       `json:"created_at"`
}

// JournalResponse wraps a single journal.
type JournalResponse struct {
	Journal Journal `json:"journal"`
}

// JournalsResponse wraps a journal list.
type JournalsResponse struct {
	Journals []Journal `json:"journals"`
}

// ErrorResponse represents an error response from the ledger API.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// NewCreateJournalRequest converts an entry to the API request body.
func NewCreateJournalRequest(companyID int64, e *journal.Entry) CreateJournalRequest {
	req := CreateJournalRequest{
		CompanyID:      companyID,
		IssueDate:      e.Date.Format("2006-01-02"),
		DocumentNumber: e.ID,
		Description:    e.Description,
		Details:        make([]JournalDetail, 0, len(e.Postings)),
	}
	for _, p := range e.Postings {
		d := JournalDetail{
			EntryType:   EntryDebit,
			AccountCode: p.Account.ID,
			AccountName: p.Account.Name,
			Amount:      p.Amount,
			PartnerType: p.Entity.String(),
			PartnerName: p.EntityName,
			Description: p.Description,
		}
		if p.Side == journal.Credit {
			d.EntryType = EntryCredit
		}
		req.Details = append(req.Details, d)
	}
	return req
}

// Totals returns the debit and credit sums of the request.
func (r CreateJournalRequest) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, d := range r.Details {
		switch d.EntryType {
		case EntryDebit:
			debit = debit.Add(d.Amount)
		case EntryCredit:
			credit = credit.Add(d.Amount)
		}
	}
	return debit, credit
}
