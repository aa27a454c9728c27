// Package persistence stores finished runs: the event log as NDJSON files,
// and runs with their events and ledger journals in SQLite or Postgres.
package persistence

import (
	"InsMarket/internal/config"
	"InsMarket/internal/core"
	"InsMarket/internal/event"
	"InsMarket/internal/ledger"
	"InsMarket/internal/observability"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrRunNotFound is returned when no stored run matches.
var ErrRunNotFound = errors.New("run not found")

// RunRow is one row of the runs table.
type RunRow struct {
	RunID       string `db:"run_id"`
	Seed        string `db:"seed"`
	Years       int    `db:"years"`
	Events      int64  `db:"events"`
	Fingerprint string `db:"fingerprint"`
	Config      string `db:"config"`
	SavedAt     int64  `db:"saved_at"`
}

// Store is a SQL-backed archive of finished runs.
type Store struct {
	db      *sqlx.DB
	driver  string
	writer  *EventLogWriter
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// Open connects to dsn and applies pending migrations. For sqlite, dsn is a
// file path or ":memory:". metrics may be nil.
func Open(ctx context.Context, driver, dsn string, metrics *observability.Metrics, logger zerolog.Logger) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = sqlx.Open(DriverSQLite, sqliteDSN(dsn))
		if err == nil {
			// one writer; also keeps ":memory:" a single database
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sqlx.Open(DriverPostgres, dsn)
		if err == nil {
			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	migrator, err := NewMigrator(db, driver, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{
		db:      db,
		driver:  driver,
		writer:  NewEventLogWriter(DefaultBatchSize),
		metrics: metrics,
		logger:  logger.With().Str("store", driver).Logger(),
	}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection for migrations and tests.
func (s *Store) DB() *sqlx.DB { return s.db }

// SaveRun stores cfg, the log and the journals derived from it in one
// transaction and returns the run ID. The ID is derived from cfg, so saving
// the same run twice keeps the first copy.
func (s *Store) SaveRun(ctx context.Context, cfg config.Config, records []event.Record) (uuid.UUID, error) {
	start := time.Now()

	runID, err := config.RunID(cfg)
	if err != nil {
		return uuid.Nil, err
	}
	cfgYAML, err := config.Marshal(cfg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal config: %w", err)
	}
	fp, err := core.FingerprintRecords(records)
	if err != nil {
		return uuid.Nil, err
	}
	_, journals, err := ledger.Replay(cfg.Insurers, records)
	if err != nil {
		return uuid.Nil, fmt.Errorf("derive journals: %w", err)
	}

	id := runID.String()
	events, err := eventRows(id, records)
	if err != nil {
		return uuid.Nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.countError("tx_begin")
		return uuid.Nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO runs (run_id, seed, years, events, fingerprint, config, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO NOTHING`),
		id, strconv.FormatUint(cfg.Seed, 10), cfg.Years, int64(len(records)),
		hex.EncodeToString(fp[:]), string(cfgYAML), time.Now().UnixNano(),
	); err != nil {
		s.countError("write_run")
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	if err := s.writer.WriteEventBatch(ctx, tx, events); err != nil {
		s.countError("write_events")
		return uuid.Nil, err
	}
	if err := s.writer.WriteJournalBatch(ctx, tx, journalRows(id, journals)); err != nil {
		s.countError("write_journals")
		return uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		s.countError("tx_commit")
		return uuid.Nil, err
	}

	if s.metrics != nil {
		s.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		s.metrics.PersistEventsWritten.Add(float64(len(events)))
	}
	s.logger.Info().
		Str("run_id", id).
		Int("events", len(events)).
		Int("journals", len(journals)).
		Dur("took", time.Since(start)).
		Msg("run saved")
	return runID, nil
}

func eventRows(runID string, records []event.Record) ([]EventRow, error) {
	rows := make([]EventRow, len(records))
	for i, r := range records {
		line, err := event.MarshalRecord(r.Day, r.Event)
		if err != nil {
			return nil, fmt.Errorf("seq %d: %w", r.Seq, err)
		}
		rows[i] = EventRow{
			RunID:     runID,
			Seq:       int64(i),
			Day:       int64(r.Day),
			EventType: r.Event.EventType().String(),
			Payload:   string(line),
		}
	}
	return rows, nil
}

func journalRows(runID string, journals []ledger.Journal) []JournalRow {
	rows := make([]JournalRow, len(journals))
	for i, j := range journals {
		rows[i] = JournalRow{
			JournalID:     j.JournalID.String(),
			RunID:         runID,
			Seq:           j.Sequence,
			Day:           int64(j.Day),
			DebitAccount:  j.DebitAccount.AccountPath(),
			CreditAccount: j.CreditAccount.AccountPath(),
			Amount:        j.Amount,
			JournalType:   j.JournalType.String(),
		}
	}
	return rows
}

// Run returns the stored row of runID.
func (s *Store) Run(ctx context.Context, runID uuid.UUID) (RunRow, error) {
	var row RunRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT run_id, seed, years, events, fingerprint, config, saved_at
		FROM runs WHERE run_id = ?`), runID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return RunRow{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return row, err
}

// LatestRun returns the most recently saved run.
func (s *Store) LatestRun(ctx context.Context) (RunRow, error) {
	var row RunRow
	err := s.db.GetContext(ctx, &row, `
		SELECT run_id, seed, years, events, fingerprint, config, saved_at
		FROM runs ORDER BY saved_at DESC, run_id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRow{}, ErrRunNotFound
	}
	return row, err
}

// RunConfig decodes the configuration stored with a run.
func (r RunRow) RunConfig() (config.Config, error) {
	return config.Parse([]byte(r.Config))
}

// LoadEvents returns up to limit records of runID from sequence from on.
// limit <= 0 returns the rest of the log.
func (s *Store) LoadEvents(ctx context.Context, runID uuid.UUID, from int64, limit int) ([]event.Record, error) {
	query := `SELECT run_id, seq, day, event_type, payload FROM events
		WHERE run_id = ? AND seq >= ? ORDER BY seq`
	args := []any{runID.String(), from}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []EventRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		s.countError("load_events")
		return nil, fmt.Errorf("load events: %w", err)
	}

	out := make([]event.Record, len(rows))
	for i, row := range rows {
		rec, err := event.UnmarshalRecord([]byte(row.Payload))
		if err != nil {
			return nil, fmt.Errorf("seq %d: %w", row.Seq, err)
		}
		rec.Seq = row.Seq
		out[i] = rec
	}
	return out, nil
}

// Journals returns the stored journals of runID ordered by log position.
func (s *Store) Journals(ctx context.Context, runID uuid.UUID) ([]JournalRow, error) {
	var rows []JournalRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT journal_id, run_id, seq, day, debit_account, credit_account, amount, journal_type
		FROM journals WHERE run_id = ? ORDER BY seq, journal_id`), runID.String())
	if err != nil {
		s.countError("load_journals")
		return nil, fmt.Errorf("load journals: %w", err)
	}
	return rows, nil
}

func (s *Store) countError(op string) {
	if s.metrics != nil {
		s.metrics.PersistErrors.WithLabelValues(op).Inc()
	}
}
