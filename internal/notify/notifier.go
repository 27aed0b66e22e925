package notify

import "context"

// Hint is the advisory "payment X changed to status Y" event delivered to
// the initiating client. Delivery is at-least-once and never authoritative:
// a client receiving a hint must re-read status via the payments API. The
// embedded fields exist only so a UI can render something before the
// authoritative poll returns.
type Hint struct {
	IntentID    string `json:"intent_id"`
	UserID      string `json:"user_id"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
	Description string `json:"description,omitempty"`
}

// Notifier delivers hints. Implementations must not block reconciliation:
// errors are logged by the caller and never fail a settlement.
type Notifier interface {
	PaymentChanged(ctx context.Context, h Hint) error
}

// Nop discards all hints.
type Nop struct{}

func (Nop) PaymentChanged(context.Context, Hint) error { return nil }
