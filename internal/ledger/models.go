package ledger

import "time"

// Entry is an immutable, append-only balance-affecting record.
//
// Money invariants:
// - A user's balance IS the signed sum of their entries. There is no
//   separately mutable balance counter anywhere in the system.
// - For exactly-once kinds (deposit, withdrawal) at most one entry may
//   carry a given ReferenceID; the store enforces this atomically with
//   the append.
type Entry struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Kind Kind `json:"kind" db:"kind"`

	// AmountMinor is signed: credits positive, debits negative.
	AmountMinor int64 `json:"amount_minor" db:"amount_minor"`

	// ReferenceID links the entry to its originating payment or
	// withdrawal intent. Required for exactly-once kinds.
	ReferenceID string `json:"reference_id,omitempty" db:"reference_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Kind string

const (
	KindDeposit         Kind = "deposit"
	KindWithdrawal      Kind = "withdrawal"
	KindPostFee         Kind = "post_fee"
	KindRefund          Kind = "refund"
	KindSubscriptionFee Kind = "subscription_fee"
)

// ExactlyOnce reports whether the kind requires a unique ReferenceID.
// Fees and refunds may legitimately recur against the same reference.
func (k Kind) ExactlyOnce() bool {
	return k == KindDeposit || k == KindWithdrawal
}

func (k Kind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindPostFee, KindRefund, KindSubscriptionFee:
		return true
	default:
		return false
	}
}
