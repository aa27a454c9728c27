package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// EventRow is one row of the events table.
type EventRow struct {
	RunID     string `db:"run_id"`
	Seq       int64  `db:"seq"`
	Day       int64  `db:"day"`
	EventType string `db:"event_type"`
	Payload   string `db:"payload"` // one encoded log line
}

// JournalRow is one row of the journals table.
type JournalRow struct {
	JournalID     string `db:"journal_id"`
	RunID         string `db:"run_id"`
	Seq           int64  `db:"seq"`
	Day           int64  `db:"day"`
	DebitAccount  string `db:"debit_account"`
	CreditAccount string `db:"credit_account"`
	Amount        int64  `db:"amount"`
	JournalType   string `db:"journal_type"`
}

// EventLogWriter writes events and journals with multi-row INSERTs of at
// most batchSize rows. Rows already present are skipped, so rewriting a run
// is a no-op.
type EventLogWriter struct {
	batchSize int
}

func NewEventLogWriter(batchSize int) *EventLogWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &EventLogWriter{batchSize: batchSize}
}

// DefaultBatchSize keeps a journals batch well under the bind-variable limit
// of both dialects.
const DefaultBatchSize = 500

// WriteEventBatch writes events in chunks inside tx.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sqlx.Tx, events []EventRow) error {
	for start := 0; start < len(events); start += w.batchSize {
		chunk := events[start:min(start+w.batchSize, len(events))]

		args := make([]any, 0, len(chunk)*5)
		for _, e := range chunk {
			args = append(args, e.RunID, e.Seq, e.Day, e.EventType, e.Payload)
		}
		query := `INSERT INTO events (run_id, seq, day, event_type, payload) VALUES ` +
			placeholders(len(chunk), 5) +
			` ON CONFLICT (run_id, seq) DO NOTHING`

		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("insert events [%d, %d): %w", start, start+len(chunk), err)
		}
	}
	return nil
}

// WriteJournalBatch writes journals in chunks inside tx.
func (w *EventLogWriter) WriteJournalBatch(ctx context.Context, tx *sqlx.Tx, journals []JournalRow) error {
	for start := 0; start < len(journals); start += w.batchSize {
		chunk := journals[start:min(start+w.batchSize, len(journals))]

		args := make([]any, 0, len(chunk)*8)
		for _, j := range chunk {
			args = append(args,
				j.JournalID, j.RunID, j.Seq, j.Day,
				j.DebitAccount, j.CreditAccount, j.Amount, j.JournalType,
			)
		}
		query := `INSERT INTO journals
			(journal_id, run_id, seq, day, debit_account, credit_account, amount, journal_type)
			VALUES ` + placeholders(len(chunk), 8) +
			` ON CONFLICT (run_id, journal_id) DO NOTHING`

		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("insert journals [%d, %d): %w", start, start+len(chunk), err)
		}
	}
	return nil
}

// placeholders renders rows groups of cols bindvars: (?, ?), (?, ?).
func placeholders(rows, cols int) string {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	var b strings.Builder
	for i := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(group)
	}
	return b.String()
}
