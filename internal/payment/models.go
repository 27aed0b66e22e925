package payment

import "time"

// Intent is a deposit payment request awaiting an out-of-band bank transfer.
//
// Invariants:
// - Status only moves forward along the transitions in CanTransition.
// - StatusCompleted is terminal and reachable exactly once; the transition
//   that reaches it is the same atomic unit that writes the ledger credit.
// - Intents are never deleted (audit trail).
type Intent struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	// AmountMinor is the requested amount in the smallest currency unit.
	AmountMinor int64 `json:"amount_minor" db:"amount_minor"`

	// Code is the matching code the payer must put in the transfer
	// description. Unique among all non-terminal intents.
	Code string `json:"code" db:"code"`

	Status      Status `json:"status" db:"status"`
	Description string `json:"description,omitempty" db:"description"`

	// QRPayload is set once the QR is issued and stays stable afterwards.
	QRPayload string `json:"qr_payload,omitempty" db:"qr_payload"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusCreated     Status = "created"
	StatusQRIssued    Status = "qr_issued"
	StatusMatched     Status = "matched"
	StatusCompleted   Status = "completed"
	StatusExpired     Status = "expired"
	StatusFailed      Status = "failed"
	StatusNeedsReview Status = "needs_review"
)

// Terminal reports whether no automatic transition can leave s.
// needs_review is not terminal: an admin resolution moves it on.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Active reports whether s still reserves its matching code.
// expired is not active: a late transfer against an expired intent goes to
// review instead of settling, so code reuse after expiry is acceptable.
func (s Status) Active() bool {
	switch s {
	case StatusCreated, StatusQRIssued, StatusMatched, StatusNeedsReview:
		return true
	default:
		return false
	}
}

// CanTransition is the single source of truth for the intent state machine.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusCreated:
		return to == StatusQRIssued || to == StatusMatched || to == StatusExpired || to == StatusNeedsReview
	case StatusQRIssued:
		return to == StatusMatched || to == StatusExpired || to == StatusNeedsReview
	case StatusMatched:
		return to == StatusCompleted
	case StatusExpired:
		return to == StatusNeedsReview
	case StatusNeedsReview:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// ExpiredBy reports whether the intent's TTL has elapsed at now.
func (i Intent) ExpiredBy(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
