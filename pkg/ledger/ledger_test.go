package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/accountmap"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/beancount"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/db"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/journal"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pathutil"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

var (
	bank       = accountmap.Account{ID: "1110", Name: "Deposit"}
	commission = accountmap.Account{ID: "6110", Name: "Commission"}
)

func entry(id string, run int, phase journal.Phase, amount string) *journal.Entry {
	v := decimal.RequireFromString(amount)
	return &journal.Entry{
		ID:          id,
		Date:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Description: "test " + id,
		Period:      pnl.Period{Year: 2024, Month: 1},
		Phase:       phase,
		Run:         run,
		Postings: []journal.Posting{
			{Description: "fee", Amount: v, Side: journal.Debit, Account: commission},
			{Description: "Bank Deposit", Amount: v, Side: journal.Credit, Account: bank},
		},
	}
}

func TestNewCreateJournalRequest(t *testing.T) {
	e := entry("e-1", 0, journal.PhaseSettlement, "12.5")
	e.Postings[0].Entity, e.Postings[0].EntityName = journal.Vendor, "Marketplace"

	req := NewCreateJournalRequest(9, e)
	if req.CompanyID != 9 || req.IssueDate != "2024-01-31" || req.DocumentNumber != "e-1" {
		t.Errorf("request header = %+v", req)
	}
	if len(req.Details) != 2 {
		t.Fatalf("details = %d, want 2", len(req.Details))
	}
	if d := req.Details[0]; d.EntryType != EntryDebit || d.AccountCode != "6110" || d.PartnerType != "vendor" {
		t.Errorf("detail 0 = %+v", d)
	}
	if d := req.Details[1]; d.EntryType != EntryCredit || d.PartnerType != "" {
		t.Errorf("detail 1 = %+v", d)
	}
	debit, credit := req.Totals()
	if !debit.Equal(credit) || !debit.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Totals() = %s, %s", debit, credit)
	}
}

func TestHTTPSinkStaticToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/1/journals" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer static-token" {
			t.Errorf("Authorization = %q", got)
		}
		var req CreateJournalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Details) != 2 || !req.Details[0].Amount.Equal(decimal.RequireFromString("3.25")) {
			t.Errorf("request details = %+v", req.Details)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(JournalResponse{Journal: Journal{ID: 12}})
	}))
	defer server.Close()

	sink, err := NewHTTPSink(HTTPConfig{APIURL: server.URL + "/", AccessToken: "static-token", CompanyID: 1})
	if err != nil {
		t.Fatalf("NewHTTPSink() failed: %v", err)
	}
	ref, err := sink.Post(context.Background(), entry("e-1", 0, journal.PhaseSettlement, "3.25"))
	if err != nil {
		t.Fatalf("Post() failed: %v", err)
	}
	if ref != "12" {
		t.Errorf("ref = %q, want 12", ref)
	}
}

func TestHTTPSinkClientCredentials(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"cc-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/1/journals", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer cc-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(JournalResponse{Journal: Journal{ID: 1}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	sink, err := NewHTTPSink(HTTPConfig{APIURL: server.URL, ClientID: "id", ClientSecret: "secret", CompanyID: 1})
	if err != nil {
		t.Fatalf("NewHTTPSink() failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := sink.Post(context.Background(), entry("e", 0, journal.PhaseSettlement, "1")); err != nil {
			t.Fatalf("Post() failed: %v", err)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("token endpoint called %d times, want 1", tokenCalls)
	}
}

func TestHTTPSinkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "unbalanced", ErrorDescription: "debits differ from credits"})
	}))
	defer server.Close()

	sink, err := NewHTTPSink(HTTPConfig{APIURL: server.URL, AccessToken: "t", CompanyID: 1})
	if err != nil {
		t.Fatalf("NewHTTPSink() failed: %v", err)
	}
	_, err = sink.Post(context.Background(), entry("e", 0, journal.PhaseSettlement, "1"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Post() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "unbalanced" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestNewHTTPSinkValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  HTTPConfig
	}{
		{"no url", HTTPConfig{AccessToken: "t", CompanyID: 1}},
		{"no company", HTTPConfig{APIURL: "http://x", AccessToken: "t"}},
		{"no credentials", HTTPConfig{APIURL: "http://x", CompanyID: 1}},
		{"secret only", HTTPConfig{APIURL: "http://x", CompanyID: 1, ClientSecret: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewHTTPSink(tt.cfg); err == nil {
				t.Error("NewHTTPSink() expected an error")
			}
		})
	}
}

type recordingSink struct {
	posted []string
	fail   bool
}

func (s *recordingSink) Name() string { return "memory" }

func (s *recordingSink) Post(_ context.Context, e *journal.Entry) (string, error) {
	if s.fail {
		return "", errors.New("ledger down")
	}
	s.posted = append(s.posted, e.ID)
	return "ref-" + e.ID, nil
}

func openHistory(t *testing.T) *db.History {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatalf("db.Open() failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return db.NewHistory(conn)
}

func TestPosterSkipsPostedSteps(t *testing.T) {
	ctx := context.Background()
	history := openHistory(t)
	sink := &recordingSink{}
	poster := NewPoster(sink, history, nil)

	first := []*journal.Entry{
		entry("a", 0, journal.PhaseSettlement, "10"),
		entry("b", 1, journal.PhaseAccrual, "2"),
	}
	res, err := poster.Post(ctx, first)
	if err != nil {
		t.Fatalf("Post() failed: %v", err)
	}
	if len(res.Posted) != 2 || res.Posted[1].Ref != "ref-b" {
		t.Errorf("Posted = %+v", res.Posted)
	}

	// A re-run regenerates entries with new ids for the same booking steps.
	rerun := []*journal.Entry{
		entry("a2", 0, journal.PhaseSettlement, "10"),
		entry("b2", 1, journal.PhaseAccrual, "2"),
		entry("c2", 1, journal.PhaseClosing, "2"),
	}
	res, err = poster.Post(ctx, rerun)
	if err != nil {
		t.Fatalf("Post() failed: %v", err)
	}
	if len(res.Skipped) != 2 || len(res.Posted) != 1 || res.Posted[0].EntryID != "c2" {
		t.Errorf("re-run result = %+v", res)
	}
	if strings.Join(sink.posted, ",") != "a,b,c2" {
		t.Errorf("sink received %v", sink.posted)
	}

	stats, err := history.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if stats.Postings != 3 {
		t.Errorf("history has %d postings, want 3", stats.Postings)
	}
}

func TestPosterRefusesChangedEntry(t *testing.T) {
	ctx := context.Background()
	history := openHistory(t)
	sink := &recordingSink{}
	poster := NewPoster(sink, history, nil)

	if _, err := poster.Post(ctx, []*journal.Entry{entry("a", 0, journal.PhaseSettlement, "10")}); err != nil {
		t.Fatalf("Post() failed: %v", err)
	}

	// A settlement joined the in-order-month run after it was posted.
	rerun := []*journal.Entry{
		entry("a2", 0, journal.PhaseSettlement, "14"),
		entry("c2", 0, journal.PhaseCOGS, "3"),
	}
	res, err := poster.Post(ctx, rerun)
	var ce *ChangedError
	if !errors.As(err, &ce) {
		t.Fatalf("Post() error = %v, want *ChangedError", err)
	}
	if ce.Key != KeyOf(rerun[0]) || ce.Posted != "a" || ce.EntryID != "a2" {
		t.Errorf("ChangedError = %+v", ce)
	}
	if len(res.Posted) != 0 {
		t.Errorf("Posted = %+v, want nothing", res.Posted)
	}
	if strings.Join(sink.posted, ",") != "a" {
		t.Errorf("sink received %v", sink.posted)
	}
}

func TestKeyOf(t *testing.T) {
	tests := []struct {
		phase journal.Phase
		run   int
		want  db.PostingKey
	}{
		{journal.PhaseSettlement, 0, db.PostingKey{Period: "2024-01", Phase: "settlement"}},
		{journal.PhaseCOGS, 0, db.PostingKey{Period: "2024-01", Phase: "cogs"}},
		{journal.PhaseAccrual, 2, db.PostingKey{Period: "2024-01", Phase: "accrual", SettlementID: "S1"}},
		{journal.PhaseClosing, 1, db.PostingKey{Period: "2024-01", Phase: "closing", SettlementID: "S1"}},
	}
	for _, tt := range tests {
		e := entry("e", tt.run, tt.phase, "1")
		e.SettlementID = "S1"
		if got := KeyOf(e); got != tt.want {
			t.Errorf("KeyOf(%s) = %+v, want %+v", tt.phase, got, tt.want)
		}
	}
}

func TestPosterRefusesUnbalanced(t *testing.T) {
	sink := &recordingSink{}
	poster := NewPoster(sink, nil, nil)

	bad := entry("bad", 0, journal.PhaseSettlement, "5")
	bad.Postings[1].Amount = decimal.RequireFromString("4.99")

	_, err := poster.Post(context.Background(), []*journal.Entry{entry("ok", 0, journal.PhaseCOGS, "1"), bad})
	var be *journal.BalanceError
	if !errors.As(err, &be) {
		t.Fatalf("Post() error = %v, want *journal.BalanceError", err)
	}
	if len(sink.posted) != 0 {
		t.Errorf("sink received %v, want nothing", sink.posted)
	}
}

func TestPosterStopsOnSinkFailure(t *testing.T) {
	ctx := context.Background()
	history := openHistory(t)
	poster := NewPoster(&recordingSink{fail: true}, history, nil)

	if _, err := poster.Post(ctx, []*journal.Entry{entry("a", 0, journal.PhaseSettlement, "1")}); err == nil {
		t.Fatal("Post() expected an error")
	}
	posted, err := history.IsPosted(ctx, KeyOf(entry("a", 0, journal.PhaseSettlement, "1")))
	if err != nil || posted {
		t.Errorf("failed post recorded in history: %v, %v", posted, err)
	}
}

func TestBeancountSink(t *testing.T) {
	paths := pathutil.New(pathutil.Config{BooksRoot: t.TempDir()})
	repo := beancount.NewFileSystemRepository(paths)
	sink := NewBeancountSink(repo, "")

	e := entry("e-9", 1, journal.PhaseClosing, "7")
	e.Date = time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	ref, err := sink.Post(context.Background(), e)
	if err != nil {
		t.Fatalf("Post() failed: %v", err)
	}
	if ref != paths.MonthFile(e.Period) {
		t.Errorf("ref = %q, want the January file", ref)
	}
	content, err := repo.ReadMonthFile(e.Period)
	if err != nil {
		t.Fatalf("ReadMonthFile() failed: %v", err)
	}
	if !strings.Contains(content, `2024-02-10 * "test e-9"`) || !strings.Contains(content, "-7 JPY") {
		t.Errorf("unexpected file content:\n%s", content)
	}
}
