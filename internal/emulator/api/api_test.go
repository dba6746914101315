package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/internal/emulator/store"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/accountmap"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/journal"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/ledger"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

func newServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("store.New() failed: %v", err)
	}
	server := httptest.NewServer(NewRouter(st, nil))
	t.Cleanup(func() {
		server.Close()
		st.Close()
	})
	return server, st
}

func token(t *testing.T, st *store.Store) string {
	t.Helper()
	if err := st.PutToken("test-token", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("PutToken() failed: %v", err)
	}
	return "test-token"
}

func post(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSinkRoundTrip(t *testing.T) {
	server, st := newServer(t)

	sink, err := ledger.NewHTTPSink(ledger.HTTPConfig{
		APIURL:       server.URL,
		ClientID:     "settle-books",
		ClientSecret: "secret",
		CompanyID:    3,
	})
	if err != nil {
		t.Fatalf("NewHTTPSink() failed: %v", err)
	}

	v := decimal.RequireFromString("15.00")
	e := &journal.Entry{
		ID:          "doc-1",
		Date:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Description: "settlement",
		Period:      pnl.Period{Year: 2024, Month: 1},
		Phase:       journal.PhaseSettlement,
		Postings: []journal.Posting{
			{Description: "Bank Deposit", Amount: v, Side: journal.Debit, Account: accountmap.Account{ID: "1110"}},
			{Description: "Product Sales settled", Amount: v, Side: journal.Credit, Account: accountmap.Account{ID: "4010"}},
		},
	}
	ref, err := sink.Post(context.Background(), e)
	if err != nil {
		t.Fatalf("Post() failed: %v", err)
	}
	if ref != "1" {
		t.Errorf("ref = %q, want 1", ref)
	}

	journals, err := st.ListJournals(store.JournalFilter{CompanyID: 3})
	if err != nil {
		t.Fatalf("ListJournals() failed: %v", err)
	}
	if len(journals) != 1 || journals[0].DocumentNumber != "doc-1" || len(journals[0].Details) != 2 {
		t.Fatalf("stored journals = %+v", journals)
	}
	if !journals[0].Details[0].Amount.Equal(v) {
		t.Errorf("stored amount = %s, want 15", journals[0].Details[0].Amount)
	}
}

func TestCreateRejectsUnbalanced(t *testing.T) {
	server, st := newServer(t)
	tok := token(t, st)

	req := ledger.CreateJournalRequest{
		CompanyID: 1,
		IssueDate: "2024-01-31",
		Details: []ledger.JournalDetail{
			{EntryType: ledger.EntryDebit, AccountCode: "6110", Amount: decimal.RequireFromString("10")},
			{EntryType: ledger.EntryCredit, AccountCode: "1110", Amount: decimal.RequireFromString("9.99")},
		},
	}
	resp := post(t, server.URL+"/api/1/journals", tok, req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Error != "unbalanced" {
		t.Errorf("error = %q, want unbalanced", errResp.Error)
	}

	if journals, _ := st.ListJournals(store.JournalFilter{}); len(journals) != 0 {
		t.Errorf("unbalanced journal was stored: %+v", journals)
	}
}

func TestCreateValidation(t *testing.T) {
	server, st := newServer(t)
	tok := token(t, st)

	good := ledger.JournalDetail{EntryType: ledger.EntryDebit, AccountCode: "1", Amount: decimal.NewFromInt(1)}
	tests := []struct {
		name string
		req  ledger.CreateJournalRequest
	}{
		{"no company", ledger.CreateJournalRequest{IssueDate: "2024-01-31", Details: []ledger.JournalDetail{good}}},
		{"bad date", ledger.CreateJournalRequest{CompanyID: 1, IssueDate: "31/01/2024", Details: []ledger.JournalDetail{good}}},
		{"no details", ledger.CreateJournalRequest{CompanyID: 1, IssueDate: "2024-01-31"}},
		{"bad side", ledger.CreateJournalRequest{CompanyID: 1, IssueDate: "2024-01-31", Details: []ledger.JournalDetail{{EntryType: "left", AccountCode: "1", Amount: decimal.NewFromInt(1)}}}},
		{"zero amount", ledger.CreateJournalRequest{CompanyID: 1, IssueDate: "2024-01-31", Details: []ledger.JournalDetail{{EntryType: ledger.EntryDebit, AccountCode: "1"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, server.URL+"/api/1/journals", tok, tt.req)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	server, st := newServer(t)

	resp := post(t, server.URL+"/api/1/journals", "", ledger.CreateJournalRequest{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", resp.StatusCode)
	}

	if err := st.PutToken("old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	resp = post(t, server.URL+"/api/1/journals", "old", ledger.CreateJournalRequest{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status with expired token = %d, want 401", resp.StatusCode)
	}
	if _, err := st.TokenExpiry("old"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired token not deleted: %v", err)
	}
}

func TestGetAndList(t *testing.T) {
	server, st := newServer(t)
	tok := token(t, st)

	req := ledger.CreateJournalRequest{
		CompanyID: 1,
		IssueDate: "2024-02-14",
		Details: []ledger.JournalDetail{
			{EntryType: ledger.EntryDebit, AccountCode: "2110", Amount: decimal.RequireFromString("9.7")},
			{EntryType: ledger.EntryCredit, AccountCode: "1110", Amount: decimal.RequireFromString("9.7")},
		},
	}
	if resp := post(t, server.URL+"/api/1/journals", tok, req); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	get := func(path string) *http.Response {
		r, _ := http.NewRequest(http.MethodGet, server.URL+path, nil)
		r.Header.Set("Authorization", "Bearer "+tok)
		resp, err := http.DefaultClient.Do(r)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := get("/api/1/journals/1")
	var jr ledger.JournalResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil || jr.Journal.IssueDate != "2024-02-14" {
		t.Errorf("GET journal = %+v, %v", jr, err)
	}
	if resp := get("/api/1/journals/7"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing journal status = %d, want 404", resp.StatusCode)
	}

	resp = get("/api/1/journals?issue_date_from=2024-02-01&issue_date_to=2024-02-29")
	var list ledger.JournalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil || len(list.Journals) != 1 {
		t.Errorf("list = %+v, %v", list, err)
	}
	if resp := get("/api/1/journals?company_id=x"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad company_id status = %d, want 400", resp.StatusCode)
	}
}
