package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shunichi-ikebuchi/settlement-books/internal/emulator/store"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/ledger"
)

// JournalsHandler handles journal endpoints.
type JournalsHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewJournalsHandler creates a new JournalsHandler.
func NewJournalsHandler(s *store.Store, logger *slog.Logger) *JournalsHandler {
	return &JournalsHandler{store: s, logger: logger}
}

// List handles GET /api/1/journals?company_id=&issue_date_from=&issue_date_to=.
func (h *JournalsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.JournalFilter{DateFrom: q.Get("issue_date_from"), DateTo: q.Get("issue_date_to")}
	if s := q.Get("company_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid company_id")
			return
		}
		f.CompanyID = id
	}

	journals, err := h.store.ListJournals(f)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to list journals")
		return
	}
	resp := ledger.JournalsResponse{Journals: make([]ledger.Journal, 0, len(journals))}
	for _, j := range journals {
		resp.Journals = append(resp.Journals, *j)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/1/journals/{id}.
func (h *JournalsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid journal ID")
		return
	}

	journal, err := h.store.GetJournal(id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "not_found", "Journal not found")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to get journal")
		return
	}
	writeJSON(w, http.StatusOK, ledger.JournalResponse{Journal: *journal})
}

// Create handles POST /api/1/journals. Unbalanced journals are rejected.
func (h *JournalsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateJournalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}
	if err := validate(&req); err != nil {
		h.logger.Warn("journal rejected", "document_number", req.DocumentNumber, "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	if debit, credit := req.Totals(); !debit.Equal(credit) {
		h.logger.Warn("unbalanced journal rejected", "document_number", req.DocumentNumber, "debit", debit.String(), "credit", credit.String())
		writeJSONError(w, http.StatusBadRequest, "unbalanced", fmt.Sprintf("debit %s does not equal credit %s", debit, credit))
		return
	}

	journal, err := h.store.CreateJournal(&req)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to create journal")
		return
	}
	h.logger.Info("journal created", "id", journal.ID, "document_number", journal.DocumentNumber, "issue_date", journal.IssueDate)
	writeJSON(w, http.StatusCreated, ledger.JournalResponse{Journal: *journal})
}

func validate(req *ledger.CreateJournalRequest) error {
	if req.CompanyID == 0 {
		return errors.New("missing company_id")
	}
	if _, err := time.Parse("2006-01-02", req.IssueDate); err != nil {
		return errors.New("issue_date must be YYYY-MM-DD")
	}
	if len(req.Details) == 0 {
		return errors.New("missing details")
	}
	for i, d := range req.Details {
		if d.EntryType != ledger.EntryDebit && d.EntryType != ledger.EntryCredit {
			return fmt.Errorf("details[%d]: entry_type must be debit or credit", i)
		}
		if d.AccountCode == "" {
			return fmt.Errorf("details[%d]: missing account_code", i)
		}
		if !d.Amount.IsPositive() {
			return fmt.Errorf("details[%d]: amount must be positive", i)
		}
	}
	return nil
}
