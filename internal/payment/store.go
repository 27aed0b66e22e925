package payment

import (
	"context"
	"time"
)

// Store is the persistence contract for payment intents.
//
// Status writes go through compare-and-swap operations so that concurrent
// reconciliation triggers (feed push, client poll, expiry sweep) are safe by
// construction: a caller whose expected source status no longer holds
// observes ok=false, never a partial write.
type Store interface {
	Insert(ctx context.Context, i Intent) error

	Get(ctx context.Context, id string) (Intent, error)

	// CodeActive reports whether any non-terminal intent currently holds
	// the code. Used by the generator's uniqueness loop.
	CodeActive(ctx context.Context, code string) (bool, error)

	// SetQRIssued moves created -> qr_issued and records the payload.
	// ok=false when the intent is not in created (caller re-reads).
	SetQRIssued(ctx context.Context, id, payload string, now time.Time) (Intent, bool, error)

	// ExpireDue moves created/qr_issued intents past their deadline to
	// expired and returns them. Idempotent: a second sweep finds nothing.
	ExpireDue(ctx context.Context, now time.Time) ([]Intent, error)

	ListByUser(ctx context.Context, userID string) ([]Intent, error)
}
