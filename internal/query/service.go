package query

import (
	"InsMarket/internal/core"
	"InsMarket/internal/event"
	"InsMarket/internal/ledger"
	"InsMarket/internal/persistence"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// QueryService provides read-only access to stored runs. Balances are
// summed from the stored journals at query time.
type QueryService struct {
	store *persistence.Store
	db    *sqlx.DB
}

func NewQueryService(store *persistence.Store) *QueryService {
	return &QueryService{store: store, db: store.DB()}
}

// ListRuns returns up to limit runs, newest first.
func (qs *QueryService) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	runs := make([]RunSummary, 0)
	err := qs.db.SelectContext(ctx, &runs, qs.db.Rebind(`
		SELECT run_id, seed, years, events, fingerprint
		FROM runs ORDER BY saved_at DESC, run_id DESC LIMIT ?`), limit)
	return runs, err
}

// GetBalance returns the position of one account path, e.g.
// "insurer:3:capital".
func (qs *QueryService) GetBalance(ctx context.Context, runID uuid.UUID, account string) (*BalanceResponse, error) {
	if _, err := qs.store.Run(ctx, runID); err != nil {
		return nil, err
	}

	resp := &BalanceResponse{RunID: runID.String(), Account: account}
	err := qs.db.QueryRowxContext(ctx, qs.db.Rebind(`
		SELECT
			COALESCE(SUM(CASE WHEN debit_account = ? THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN credit_account = ? THEN amount ELSE 0 END), 0),
			COUNT(*),
			COALESCE(MAX(seq), -1)
		FROM journals
		WHERE run_id = ? AND (debit_account = ? OR credit_account = ?)
	`), account, account, runID.String(), account, account).
		Scan(&resp.Debits, &resp.Credits, &resp.Journals, &resp.AsOfSequence)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", account, err)
	}
	resp.Balance = resp.Debits - resp.Credits
	return resp, nil
}

// GetInsurer splits an insurer's capital account into opening capital,
// premium and claims.
func (qs *QueryService) GetInsurer(ctx context.Context, runID uuid.UUID, id event.InsurerID) (*InsurerResponse, error) {
	if _, err := qs.store.Run(ctx, runID); err != nil {
		return nil, err
	}

	account := ledger.NewInsurerAccountKey(id, ledger.SubTypeCapital).AccountPath()
	resp := &InsurerResponse{RunID: runID.String(), InsurerID: uint64(id)}
	err := qs.db.QueryRowxContext(ctx, qs.db.Rebind(`
		SELECT
			COALESCE(SUM(CASE WHEN journal_type = ? THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN journal_type = ? THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN journal_type = ? THEN amount ELSE 0 END), 0)
		FROM journals
		WHERE run_id = ? AND (debit_account = ? OR credit_account = ?)
	`),
		ledger.JournalTypeCapitalContribution.String(),
		ledger.JournalTypePremium.String(),
		ledger.JournalTypeClaimPaid.String(),
		runID.String(), account, account,
	).Scan(&resp.Opening, &resp.PremiumReceived, &resp.ClaimsPaid)
	if err != nil {
		return nil, fmt.Errorf("insurer %d: %w", id, err)
	}
	resp.Capital = resp.Opening + resp.PremiumReceived - resp.ClaimsPaid
	return resp, nil
}

// GetJournalHistory returns up to limit journals touching account, from
// log position afterSeq (exclusive) on. account "" matches every journal.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	runID uuid.UUID,
	account string,
	limit int,
	afterSeq *int64,
) ([]JournalHistoryEntry, error) {
	query := `
		SELECT journal_id, seq, day, debit_account, credit_account, amount, journal_type
		FROM journals
		WHERE run_id = ?
	`
	args := []any{runID.String()}

	if account != "" {
		query += ` AND (debit_account = ? OR credit_account = ?)`
		args = append(args, account, account)
	}
	if afterSeq != nil {
		query += ` AND seq > ?`
		args = append(args, *afterSeq)
	}
	query += ` ORDER BY seq, journal_id LIMIT ?`
	args = append(args, limit)

	entries := make([]JournalHistoryEntry, 0)
	if err := qs.db.SelectContext(ctx, &entries, qs.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return entries, nil
}

// VerifyIntegrity reloads a run's log, recomputes its fingerprint and looks
// for insurer accounts below zero.
func (qs *QueryService) VerifyIntegrity(ctx context.Context, runID uuid.UUID) (*IntegrityReport, error) {
	row, err := qs.store.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	records, err := qs.store.LoadEvents(ctx, runID, 0, 0)
	if err != nil {
		return nil, err
	}
	fp, err := core.FingerprintRecords(records)
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{
		StoredEvents:     row.Events,
		LoadedEvents:     int64(len(records)),
		FingerprintMatch: hex.EncodeToString(fp[:]) == row.Fingerprint,
		NegativeAccounts: make([]string, 0),
	}

	err = qs.db.SelectContext(ctx, &report.NegativeAccounts, qs.db.Rebind(`
		SELECT account FROM (
			SELECT debit_account AS account, amount AS delta FROM journals WHERE run_id = ?
			UNION ALL
			SELECT credit_account AS account, -amount AS delta FROM journals WHERE run_id = ?
		) t
		WHERE account LIKE 'insurer:%'
		GROUP BY account
		HAVING SUM(delta) < 0
		ORDER BY account
	`), runID.String(), runID.String())
	if err != nil {
		return nil, fmt.Errorf("account scan: %w", err)
	}

	report.IsHealthy = report.FingerprintMatch &&
		report.StoredEvents == report.LoadedEvents &&
		len(report.NegativeAccounts) == 0
	return report, nil
}
