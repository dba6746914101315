// Package db keeps the SQLite posting history: which journal entries were
// handed to a ledger sink, and a log of reconciliation runs.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- One row per journal entry accepted by a ledger sink.
-- The ledger is not idempotent, so a (period, phase, settlement) is posted once.
-- settlement_id is only set for the per-settlement accrual and closing steps.
CREATE TABLE IF NOT EXISTS posting_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    period TEXT NOT NULL,              -- YYYY-MM
    phase TEXT NOT NULL,               -- settlement / accrual / closing / cogs
    settlement_id TEXT NOT NULL DEFAULT '',
    run_index INTEGER NOT NULL,        -- run the entry came from, 0 = in-order-month run
    fingerprint TEXT NOT NULL DEFAULT '',
    entry_id TEXT NOT NULL,            -- document number of the entry
    entry_date TEXT NOT NULL,          -- YYYY-MM-DD
    amount TEXT NOT NULL,              -- debit total, decimal string
    sink TEXT NOT NULL,                -- http / beancount
    ledger_ref TEXT NOT NULL DEFAULT '',
    posted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(period, phase, settlement_id)
);

CREATE INDEX IF NOT EXISTS idx_posting_history_period
    ON posting_history(period);

-- One row per reconciliation run computed for a period.
CREATE TABLE IF NOT EXISTS reconciliation_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    period TEXT NOT NULL,
    run_index INTEGER NOT NULL,
    kind TEXT NOT NULL,                -- in_order_month / out_of_order_month
    settlement_ids TEXT NOT NULL DEFAULT '',
    run_date TEXT NOT NULL,
    line_count INTEGER NOT NULL,
    computed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(period, run_index)
);
`

// InitializeSchema creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.db.Exec(Schema); err != nil {
		return err
	}
	return nil
}
