package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/db"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/journal"
)

// Poster sends entries to a sink once each. Entries whose booking step is
// already in the history with the same content are skipped, so a period can
// be re-run safely. A step whose content has changed since it was posted is
// refused: the ledger already holds the old entry and needs a manual fix.
type Poster struct {
	sink    Sink
	history *db.History
	logger  *slog.Logger
}

// NewPoster creates a Poster. A nil history posts everything; a nil logger
// discards.
func NewPoster(sink Sink, history *db.History, logger *slog.Logger) *Poster {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poster{sink: sink, history: history, logger: logger}
}

// PostResult lists what a Post call did.
type PostResult struct {
	Posted  []Posted
	Skipped []string // entry ids already in the history
}

// Posted is an entry accepted by the sink.
type Posted struct {
	EntryID string
	Ref     string
}

// KeyOf returns the history key of an entry's booking step. The
// in-order-month and COGS steps cover the whole period, so their key holds no
// settlement: a settlement joining the in-order-month run later changes the
// entry, not the step.
func KeyOf(e *journal.Entry) db.PostingKey {
	k := db.PostingKey{Period: e.Period.String(), Phase: string(e.Phase)}
	if e.Phase == journal.PhaseAccrual || e.Phase == journal.PhaseClosing {
		k.SettlementID = e.SettlementID
	}
	return k
}

// ChangedError reports a booking step whose regenerated entry differs from
// the one already posted.
type ChangedError struct {
	Key     db.PostingKey
	EntryID string // the regenerated entry
	Posted  string // id of the entry in the ledger
}

func (e *ChangedError) Error() string {
	return fmt.Sprintf("%s was posted as %s and has changed since (now %s)", e.Key, e.Posted, e.EntryID)
}

// Post validates every entry first and posts nothing if any is malformed,
// unbalanced or changed since it was posted. Otherwise it posts in order and
// stops at the first sink failure, returning what was posted so far.
func (p *Poster) Post(ctx context.Context, entries []*journal.Entry) (*PostResult, error) {
	var errs []error
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("refusing to post: %w", err)
	}

	res := &PostResult{}
	skip, err := p.posted(ctx, entries)
	if err != nil {
		return res, err
	}
	for _, e := range entries {
		key := KeyOf(e)
		if skip[e] {
			p.logger.Info("entry already posted", "key", key.String(), "entry_id", e.ID)
			res.Skipped = append(res.Skipped, e.ID)
			continue
		}

		ref, err := p.sink.Post(ctx, e)
		if err != nil {
			return res, fmt.Errorf("failed to post %s to %s: %w", key, p.sink.Name(), err)
		}
		res.Posted = append(res.Posted, Posted{EntryID: e.ID, Ref: ref})
		p.logger.Info("entry posted", "key", key.String(), "entry_id", e.ID, "sink", p.sink.Name(), "ref", ref)

		if p.history == nil {
			continue
		}
		debit, _ := e.Totals()
		if err := p.history.RecordPosting(ctx, db.PostingRecord{
			Key:         key,
			Run:         e.Run,
			Fingerprint: e.Fingerprint(),
			EntryID:     e.ID,
			EntryDate:   e.Date,
			Amount:      debit,
			Sink:        p.sink.Name(),
			LedgerRef:   ref,
		}); err != nil {
			return res, err
		}
	}
	return res, nil
}

// posted returns the entries already in the history unchanged. It fails with
// a *ChangedError per entry whose step was posted with other content.
func (p *Poster) posted(ctx context.Context, entries []*journal.Entry) (map[*journal.Entry]bool, error) {
	skip := make(map[*journal.Entry]bool)
	if p.history == nil {
		return skip, nil
	}
	var errs []error
	for _, e := range entries {
		rec, err := p.history.Posting(ctx, KeyOf(e))
		if err != nil {
			return nil, err
		}
		switch {
		case rec == nil:
		case rec.Fingerprint == e.Fingerprint():
			skip[e] = true
		default:
			errs = append(errs, &ChangedError{Key: rec.Key, EntryID: e.ID, Posted: rec.EntryID})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("refusing to post: %w", err)
	}
	return skip, nil
}
