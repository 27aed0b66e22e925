package withdrawal

import (
	"context"
	"time"
)

// Store persists withdrawal intents and owns the two couplings to the
// ledger that must be atomic:
//
//   - CreatePending checks available balance (ledger balance minus the sum
//     of the user's other pending withdrawals) and inserts in one unit, so
//     two concurrent requests cannot both reserve the same funds.
//   - Approve moves pending to completed and appends the withdrawal ledger
//     entry in one unit, so the debit happens exactly once.
type Store interface {
	// CreatePending inserts the intent if available balance covers it.
	// Returns ledger.ErrInsufficientFunds otherwise.
	CreatePending(ctx context.Context, intent Intent) error

	Get(ctx context.Context, id string) (Intent, error)
	ListByUser(ctx context.Context, userID string) ([]Intent, error)
	ListPending(ctx context.Context) ([]Intent, error)

	// Approve settles the intent: pending -> completed plus the ledger
	// debit, atomically. ok=false when the intent is not pending.
	Approve(ctx context.Context, id string, now time.Time) (Intent, bool, error)

	// Reject releases the reservation: pending -> rejected, no ledger
	// entry. ok=false when the intent is not pending.
	Reject(ctx context.Context, id, reason string, now time.Time) (Intent, bool, error)
}
