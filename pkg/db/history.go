package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PostingKey identifies one booking step. A key is posted at most once.
// SettlementID is empty for steps that cover the whole period.
type PostingKey struct {
	Period       string // YYYY-MM
	Phase        string
	SettlementID string
}

func (k PostingKey) String() string {
	s := k.Period + "/" + k.Phase
	if k.SettlementID != "" {
		s += "/" + k.SettlementID
	}
	return s
}

// PostingRecord is a journal entry accepted by a ledger sink.
type PostingRecord struct {
	Key PostingKey
	// Run is the reconciliation run the entry came from when it was posted.
	Run int
	// Fingerprint identifies the entry's content, see journal.Entry.Fingerprint.
	Fingerprint string
	EntryID     string
	EntryDate time.Time
	Amount    decimal.Decimal
	Sink      string
	LedgerRef string
	PostedAt  time.Time
}

// RunRecord summarizes one reconciliation run.
type RunRecord struct {
	Period        string
	Run           int
	Kind          string
	SettlementIDs []string
	Date          time.Time
	Lines         int
}

// History records what has been posted and computed.
type History struct {
	conn *Connection
}

// NewHistory creates a History backed by conn.
func NewHistory(conn *Connection) *History {
	return &History{conn: conn}
}

// RecordPosting stores a posting. Re-recording the same key overwrites the
// entry id and ledger reference.
func (h *History) RecordPosting(ctx context.Context, r PostingRecord) error {
	query := `
		INSERT INTO posting_history
			(period, phase, settlement_id, run_index, fingerprint, entry_id, entry_date, amount, sink, ledger_ref, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(period, phase, settlement_id) DO UPDATE SET
			run_index = excluded.run_index,
			fingerprint = excluded.fingerprint,
			entry_id = excluded.entry_id,
			entry_date = excluded.entry_date,
			amount = excluded.amount,
			sink = excluded.sink,
			ledger_ref = excluded.ledger_ref,
			posted_at = CURRENT_TIMESTAMP
	`
	_, err := h.conn.db.ExecContext(ctx, query,
		r.Key.Period, r.Key.Phase, r.Key.SettlementID, r.Run, r.Fingerprint,
		r.EntryID, r.EntryDate.Format("2006-01-02"), r.Amount, r.Sink, r.LedgerRef,
	)
	if err != nil {
		return fmt.Errorf("failed to record posting %s: %w", r.Key, err)
	}
	return nil
}

// IsPosted reports whether the key has already been posted.
func (h *History) IsPosted(ctx context.Context, k PostingKey) (bool, error) {
	var count int
	err := h.conn.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM posting_history
		WHERE period = ? AND phase = ? AND settlement_id = ?
	`, k.Period, k.Phase, k.SettlementID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check posting %s: %w", k, err)
	}
	return count > 0, nil
}

// Posting returns the record stored under k, or nil if k was never posted.
func (h *History) Posting(ctx context.Context, k PostingKey) (*PostingRecord, error) {
	rows, err := h.query(ctx, `WHERE period = ? AND phase = ? AND settlement_id = ?`, k.Period, k.Phase, k.SettlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up posting %s: %w", k, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Postings lists the postings of a period in run order.
func (h *History) Postings(ctx context.Context, period string) ([]PostingRecord, error) {
	out, err := h.query(ctx, `WHERE period = ? ORDER BY run_index, id`, period)
	if err != nil {
		return nil, fmt.Errorf("failed to list postings: %w", err)
	}
	return out, nil
}

func (h *History) query(ctx context.Context, where string, args ...any) ([]PostingRecord, error) {
	rows, err := h.conn.db.QueryContext(ctx, `
		SELECT period, phase, settlement_id, run_index, fingerprint,
			entry_id, entry_date, amount, sink, ledger_ref, posted_at
		FROM posting_history `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PostingRecord
	for rows.Next() {
		var r PostingRecord
		var date string
		if err := rows.Scan(&r.Key.Period, &r.Key.Phase, &r.Key.SettlementID, &r.Run, &r.Fingerprint,
			&r.EntryID, &date, &r.Amount, &r.Sink, &r.LedgerRef, &r.PostedAt); err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		if r.EntryDate, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("bad entry date %q: %w", date, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordRuns replaces the run log of a period.
func (h *History) RecordRuns(ctx context.Context, period string, runs []RunRecord) error {
	return h.conn.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reconciliation_runs WHERE period = ?`, period); err != nil {
			return fmt.Errorf("failed to clear runs: %w", err)
		}
		for _, r := range runs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO reconciliation_runs (period, run_index, kind, settlement_ids, run_date, line_count)
				VALUES (?, ?, ?, ?, ?, ?)
			`, period, r.Run, r.Kind, strings.Join(r.SettlementIDs, ","), r.Date.Format("2006-01-02"), r.Lines)
			if err != nil {
				return fmt.Errorf("failed to record run %d: %w", r.Run, err)
			}
		}
		return nil
	})
}

// Runs returns the run log of a period.
func (h *History) Runs(ctx context.Context, period string) ([]RunRecord, error) {
	rows, err := h.conn.db.QueryContext(ctx, `
		SELECT run_index, kind, settlement_ids, run_date, line_count
		FROM reconciliation_runs WHERE period = ? ORDER BY run_index
	`, period)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r := RunRecord{Period: period}
		var ids, date string
		if err := rows.Scan(&r.Run, &r.Kind, &ids, &date, &r.Lines); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if ids != "" {
			r.SettlementIDs = strings.Split(ids, ",")
		}
		if r.Date, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("bad run date %q: %w", date, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarizes the posting history.
type Stats struct {
	Postings     int
	Periods      int
	Runs         int
	LastPostedAt *time.Time
}

// GetStats returns statistics about postings and runs.
func (h *History) GetStats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := h.conn.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT period) FROM posting_history`,
	).Scan(&s.Postings, &s.Periods); err != nil {
		return nil, fmt.Errorf("failed to count postings: %w", err)
	}
	if err := h.conn.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reconciliation_runs`,
	).Scan(&s.Runs); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	var last time.Time
	err := h.conn.db.QueryRowContext(ctx,
		`SELECT posted_at FROM posting_history ORDER BY posted_at DESC, id DESC LIMIT 1`,
	).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get last posting: %w", err)
	default:
		s.LastPostedAt = &last
	}
	return &s, nil
}
