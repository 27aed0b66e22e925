package withdrawal

import "time"

// Status is the withdrawal intent lifecycle. There is no automatic payout
// leg: pending intents wait for a finance decision.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// Intent is one withdrawal request. The destination account fields are a
// snapshot taken at request time; later profile edits do not change where
// an approved withdrawal pays out.
type Intent struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	AmountMinor   int64     `json:"amount_minor" db:"amount_minor"`
	Status        Status    `json:"status" db:"status"`
	BankName      string    `json:"bank_name" db:"bank_name"`
	AccountNumber string    `json:"account_number" db:"account_number"`
	HolderName    string    `json:"holder_name" db:"holder_name"`
	RejectReason  string    `json:"reject_reason,omitempty" db:"reject_reason"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
