package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// LedgerSummaryRequest requests aggregated money-flow metrics. UserID is
// optional; empty means platform-wide.

type LedgerSummaryRequest struct {
	UserID string    `json:"user_id,omitempty"`
	Range  TimeRange `json:"range"`
}

type LedgerSummary struct {
	UserID string `json:"user_id,omitempty"`

	EntryCount       int   `json:"entry_count"`
	TotalCreditMinor int64 `json:"total_credit_minor"`
	TotalDebitMinor  int64 `json:"total_debit_minor"`
	NetDeltaMinor    int64 `json:"net_delta_minor"`

	DepositMinor    int64 `json:"deposit_minor"`
	WithdrawalMinor int64 `json:"withdrawal_minor"`
	FeeMinor        int64 `json:"fee_minor"`
}

// SettlementSummaryRequest requests aggregated reconciliation metrics over
// intents created in the range.

type SettlementSummaryRequest struct {
	Range TimeRange `json:"range"`
}

type SettlementSummary struct {
	TotalIntents int `json:"total_intents"`

	Completed   int `json:"completed"`
	Expired     int `json:"expired"`
	NeedsReview int `json:"needs_review"`
	Failed      int `json:"failed"`
	Open        int `json:"open"`

	SettledAmountMinor int64 `json:"settled_amount_minor"`

	// CompletionRate is completed over total, 0 when no intents.
	CompletionRate float64 `json:"completion_rate"`
}
