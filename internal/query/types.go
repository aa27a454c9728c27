package query

// RunSummary is one stored run for listings.
type RunSummary struct {
	RunID       string `json:"run_id" db:"run_id"`
	Seed        string `json:"seed" db:"seed"`
	Years       int    `json:"years" db:"years"`
	Events      int64  `json:"events" db:"events"`
	Fingerprint string `json:"fingerprint" db:"fingerprint"`
}

// BalanceResponse is the ledger position of one account in one run.
type BalanceResponse struct {
	RunID   string `json:"run_id"`
	Account string `json:"account"`

	Balance  int64 `json:"balance"` // debits - credits
	Debits   int64 `json:"debits"`
	Credits  int64 `json:"credits"`
	Journals int64 `json:"journals"`

	// Metadata
	AsOfSequence int64 `json:"as_of_sequence"` // last journal's log position, -1 for none
}

// InsurerResponse splits an insurer's capital account by journal type.
type InsurerResponse struct {
	RunID     string `json:"run_id"`
	InsurerID uint64 `json:"insurer_id"`

	Opening         int64 `json:"opening_capital"`
	PremiumReceived int64 `json:"premium_received"`
	ClaimsPaid      int64 `json:"claims_paid"`
	Capital         int64 `json:"capital"` // opening + premium - claims
}

// JournalHistoryEntry represents a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id" db:"journal_id"`
	Sequence      int64  `json:"sequence" db:"seq"`
	Day           int64  `json:"day" db:"day"`
	DebitAccount  string `json:"debit_account" db:"debit_account"`
	CreditAccount string `json:"credit_account" db:"credit_account"`
	Amount        int64  `json:"amount" db:"amount"`
	JournalType   string `json:"journal_type" db:"journal_type"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool     `json:"is_healthy"`
	StoredEvents     int64    `json:"stored_events"`
	LoadedEvents     int64    `json:"loaded_events"`
	FingerprintMatch bool     `json:"fingerprint_match"`
	NegativeAccounts []string `json:"negative_accounts,omitempty"`
}
