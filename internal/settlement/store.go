package settlement

import (
	"context"
	"time"

	"renthub-platform/internal/payment"
)

// Store is the single writer gate for settlement. Every status write and
// every deposit credit in the system funnels through Settle/FlagForReview/
// ResolveReview; there is no second code path that can mutate an intent or
// append a deposit entry.
//
// All compound operations are atomic: either every effect persists or none
// does. Callers racing on the same intent or line observe ok=false, never
// an error and never a partial state.
type Store interface {
	// SaveLine records a feed line in the snapshot. alreadySeen=true on
	// duplicate delivery; the line is stored at most once.
	SaveLine(ctx context.Context, line FeedLine) (alreadySeen bool, err error)

	// UnconsumedLines returns the current snapshot of lines that have not
	// settled or been parked for review.
	UnconsumedLines(ctx context.Context) ([]FeedLine, error)

	// ActiveCandidates returns created/qr_issued intents matching the line.
	ActiveCandidates(ctx context.Context, line FeedLine) ([]payment.Intent, error)

	// ExpiredCandidates returns expired intents matching the line.
	ExpiredCandidates(ctx context.Context, line FeedLine) ([]payment.Intent, error)

	// Settle atomically: consumes the line, moves the intent through
	// matched to completed, and appends the deposit ledger entry.
	// ok=false when a concurrent pass won (line consumed or intent moved).
	Settle(ctx context.Context, lineID string, intent payment.Intent, now time.Time) (payment.Intent, bool, error)

	// FlagForReview atomically parks the line and moves every candidate
	// to needs_review. No ledger entry is written.
	FlagForReview(ctx context.Context, lineID string, intents []payment.Intent, now time.Time) ([]payment.Intent, error)

	// ExpireDue delegates the sweep to the payment store.
	ExpireDue(ctx context.Context, now time.Time) ([]payment.Intent, error)

	// ListNeedsReview returns the manual resolution queue.
	ListNeedsReview(ctx context.Context) ([]payment.Intent, error)

	// ResolveReview closes a needs_review intent: approve credits the
	// ledger and completes it in one unit, otherwise it fails with no
	// ledger entry. ok=false when the intent is not in needs_review.
	ResolveReview(ctx context.Context, intentID string, approve bool, now time.Time) (payment.Intent, bool, error)
}
