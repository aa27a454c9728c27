package persistence_test

import (
	"InsMarket/internal/config"
	"InsMarket/internal/core"
	"InsMarket/internal/event"
	"InsMarket/internal/ledger"
	"InsMarket/internal/persistence"
	"InsMarket/internal/testutil"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func mustRun(t *testing.T, years int) (config.Config, []event.Record) {
	t.Helper()
	cfg := config.Canonical()
	cfg.Years = years
	e, err := core.NewEngine(cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	return cfg, e.Log().Slice(0)
}

func mustFingerprint(t *testing.T, records []event.Record) [32]byte {
	t.Helper()
	fp, err := core.FingerprintRecords(records)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	return fp
}

// ============================================================================
// Test: NDJSON log files
// ============================================================================

func TestLog_RoundTrip(t *testing.T) {
	_, records := mustRun(t, 2)

	var buf bytes.Buffer
	if err := persistence.WriteLog(&buf, records); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := bytes.Count(buf.Bytes(), []byte("\n")); got != len(records) {
		t.Fatalf("got %d lines, want %d", got, len(records))
	}

	back, err := persistence.ReadLog(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(back) != len(records) {
		t.Fatalf("got %d records, want %d", len(back), len(records))
	}
	for i, r := range back {
		if r.Seq != int64(i) {
			t.Fatalf("record %d: got seq %d", i, r.Seq)
		}
	}
	if mustFingerprint(t, back) != mustFingerprint(t, records) {
		t.Error("fingerprint changed across a file round trip")
	}
}

func TestReadLog_SkipsBlankLines(t *testing.T) {
	in := "{\"day\":0,\"event\":{\"YearStart\":{\"year\":1}}}\n\n" +
		"{\"day\":359,\"event\":{\"YearEnd\":{\"year\":1}}}\n"
	records, err := persistence.ReadLog(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[1].Seq != 1 || records[1].Day != 359 {
		t.Errorf("got seq %d day %d, want seq 1 day 359", records[1].Seq, records[1].Day)
	}
}

func TestReadLog_ReportsBadLine(t *testing.T) {
	in := "{\"day\":0,\"event\":{\"YearStart\":{\"year\":1}}}\n" +
		"{\"day\":1,\"event\":{\"NoSuchEvent\":{}}}\n"
	_, err := persistence.ReadLog(strings.NewReader(in))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("got %v, want an error naming line 2", err)
	}
}

func TestScanLog_StopsOnCancel(t *testing.T) {
	_, records := mustRun(t, 1)
	var buf bytes.Buffer
	if err := persistence.WriteLog(&buf, records); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan event.Record, 1)
	done := make(chan error, 1)
	go func() { done <- persistence.ScanLog(ctx, &buf, out) }()

	<-out
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

// ============================================================================
// Test: SQL store
// ============================================================================

func TestStore_SaveAndLoad(t *testing.T) {
	store := testutil.SetupTestStore(t)
	ctx := context.Background()
	cfg, records := mustRun(t, 2)

	runID, err := store.SaveRun(ctx, cfg, records)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	wantID, _ := config.RunID(cfg)
	if runID != wantID {
		t.Errorf("got run id %s, want %s", runID, wantID)
	}

	row, err := store.Run(ctx, runID)
	if err != nil {
		t.Fatalf("run row: %v", err)
	}
	fp := mustFingerprint(t, records)
	if row.Fingerprint != hex.EncodeToString(fp[:]) {
		t.Errorf("got fingerprint %s, want %x", row.Fingerprint, fp)
	}
	if row.Events != int64(len(records)) || row.Years != 2 {
		t.Errorf("got events %d years %d, want %d and 2", row.Events, row.Years, len(records))
	}
	stored, err := row.RunConfig()
	if err != nil {
		t.Fatalf("stored config: %v", err)
	}
	if stored.Seed != cfg.Seed || len(stored.Insurers) != len(cfg.Insurers) {
		t.Errorf("stored config differs: seed %d, %d insurers", stored.Seed, len(stored.Insurers))
	}

	back, err := store.LoadEvents(ctx, runID, 0, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if mustFingerprint(t, back) != fp {
		t.Error("fingerprint changed across a store round trip")
	}
}

func TestStore_LoadEventsPages(t *testing.T) {
	store := testutil.SetupTestStore(t)
	ctx := context.Background()
	cfg, records := mustRun(t, 1)

	runID, err := store.SaveRun(ctx, cfg, records)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	var all []event.Record
	for from := int64(0); ; {
		page, err := store.LoadEvents(ctx, runID, from, 50)
		if err != nil {
			t.Fatalf("load from %d: %v", from, err)
		}
		if len(page) == 0 {
			break
		}
		if page[0].Seq != from {
			t.Fatalf("page starts at %d, want %d", page[0].Seq, from)
		}
		all = append(all, page...)
		from += int64(len(page))
	}
	if len(all) != len(records) {
		t.Errorf("got %d records over pages, want %d", len(all), len(records))
	}
}

func TestStore_SaveIsIdempotent(t *testing.T) {
	store := testutil.SetupTestStore(t)
	ctx := context.Background()
	cfg, records := mustRun(t, 1)

	first, err := store.SaveRun(ctx, cfg, records)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := store.SaveRun(ctx, cfg, records)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if first != second {
		t.Errorf("got ids %s and %s", first, second)
	}

	var runs, events int
	if err := store.DB().GetContext(ctx, &runs, `SELECT COUNT(*) FROM runs`); err != nil {
		t.Fatal(err)
	}
	if err := store.DB().GetContext(ctx, &events, `SELECT COUNT(*) FROM events`); err != nil {
		t.Fatal(err)
	}
	if runs != 1 || events != len(records) {
		t.Errorf("got %d runs and %d events, want 1 and %d", runs, events, len(records))
	}
}

func TestStore_LatestRun(t *testing.T) {
	store := testutil.SetupTestStore(t)
	ctx := context.Background()

	if _, err := store.LatestRun(ctx); !errors.Is(err, persistence.ErrRunNotFound) {
		t.Fatalf("empty store: got %v, want ErrRunNotFound", err)
	}

	cfg, records := mustRun(t, 1)
	if _, err := store.SaveRun(ctx, cfg, records); err != nil {
		t.Fatalf("save: %v", err)
	}
	cfg.Seed++
	later, err := store.SaveRun(ctx, cfg, records)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	row, err := store.LatestRun(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if row.RunID != later.String() {
		t.Errorf("got run %s, want %s", row.RunID, later)
	}
	if _, err := store.Run(ctx, uuid.New()); !errors.Is(err, persistence.ErrRunNotFound) {
		t.Errorf("unknown id: got %v, want ErrRunNotFound", err)
	}
}

func TestStore_JournalsMatchLedger(t *testing.T) {
	store := testutil.SetupTestStore(t)
	ctx := context.Background()
	cfg, records := mustRun(t, 2)

	runID, err := store.SaveRun(ctx, cfg, records)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	rows, err := store.Journals(ctx, runID)
	if err != nil {
		t.Fatalf("journals: %v", err)
	}
	tracker, journals, err := ledger.Replay(cfg.Insurers, records)
	if err != nil {
		t.Fatalf("replay ledger: %v", err)
	}
	if len(rows) != len(journals) {
		t.Fatalf("got %d journal rows, want %d", len(rows), len(journals))
	}

	balances := make(map[string]int64)
	for _, r := range rows {
		if r.Amount <= 0 {
			t.Fatalf("journal %s: non-positive amount %d", r.JournalID, r.Amount)
		}
		balances[r.DebitAccount] += r.Amount
		balances[r.CreditAccount] -= r.Amount
	}
	for _, ins := range cfg.Insurers {
		path := ledger.NewInsurerAccountKey(ins.ID, ledger.SubTypeCapital).AccountPath()
		if got, want := balances[path], tracker.InsurerCapital(ins.ID); got != want {
			t.Errorf("%s: got %d, want %d", path, got, want)
		}
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	if _, err := persistence.Open(context.Background(), "mysql", "x", nil, zerolog.Nop()); err == nil {
		t.Fatal("expected an error for an unsupported driver")
	}
}

// ============================================================================
// Test: Migrations
// ============================================================================

func TestMigrator_DownAndUp(t *testing.T) {
	store := testutil.SetupTestStore(t)
	ctx := context.Background()

	m, err := persistence.NewMigrator(store.DB(), persistence.DriverSQLite, zerolog.Nop())
	if err != nil {
		t.Fatalf("new migrator: %v", err)
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		t.Fatalf("applied: %v", err)
	}
	if len(applied) != 1 || applied[0] != "000001" {
		t.Fatalf("got applied %v, want [000001]", applied)
	}

	if err := m.Down(ctx); err != nil {
		t.Fatalf("down: %v", err)
	}
	if _, err := store.LatestRun(ctx); err == nil {
		t.Error("runs table survived the rollback")
	}
	if err := m.Down(ctx); err != nil {
		t.Fatalf("down on an empty schema: %v", err)
	}

	if err := m.Up(ctx); err != nil {
		t.Fatalf("up: %v", err)
	}
	if _, err := store.LatestRun(ctx); !errors.Is(err, persistence.ErrRunNotFound) {
		t.Errorf("got %v, want ErrRunNotFound on a fresh schema", err)
	}
}

func TestNewMigrator_UnknownDialect(t *testing.T) {
	if _, err := persistence.NewMigrator(nil, "oracle", zerolog.Nop()); err == nil {
		t.Fatal("expected an error for a dialect without migrations")
	}
}

// ============================================================================
// Test: Postgres (integration)
// ============================================================================

func TestPostgresStore_SaveAndLoad(t *testing.T) {
	store := testutil.SetupPostgresStore(t)
	ctx := context.Background()
	cfg, records := mustRun(t, 1)

	runID, err := store.SaveRun(ctx, cfg, records)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := store.LoadEvents(ctx, runID, 0, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if mustFingerprint(t, back) != mustFingerprint(t, records) {
		t.Error("fingerprint changed across a postgres round trip")
	}
}
