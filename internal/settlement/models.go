package settlement

import (
	"strings"
	"time"

	"renthub-platform/internal/payment"
)

// FeedLine is one transaction from the bank feed. How lines are physically
// fetched (SFTP, webhook, statement scrape) is the feed adapter's problem;
// the reconciler consumes only this contract.
type FeedLine struct {
	// ID is the bank-side transaction identifier. Uniqueness of (ID) is
	// what makes duplicate delivery a no-op.
	ID string `json:"id" db:"id"`

	// Description is the free-text transfer content typed by the payer.
	// The matching code is expected somewhere inside it.
	Description string `json:"description" db:"description"`

	AmountMinor int64     `json:"amount_minor" db:"amount_minor"`
	PostedAt    time.Time `json:"posted_at" db:"posted_at"`
}

// PushEvent is the gateway's "something happened to this intent" signal.
// Every field, including Status, is advisory: the reconciler re-validates
// against the stored feed snapshot instead of trusting the payload.
type PushEvent struct {
	IntentID    string `json:"intent_id"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
	Description string `json:"description"`
}

// Matches implements the exactness rule: the line's description must
// contain the intent's code as an exact substring AND the amounts must be
// equal. Amount equality is what makes collisions against terminal codes
// harmless.
func Matches(i payment.Intent, line FeedLine) bool {
	return i.AmountMinor == line.AmountMinor && strings.Contains(line.Description, i.Code)
}

// Outcome classifies one reconciliation pass over one feed line.
type Outcome string

const (
	// OutcomeSettled: exactly one live match, credited exactly once.
	OutcomeSettled Outcome = "settled"
	// OutcomeNoMatch: nothing matched; not an error, the line stays in
	// the snapshot for later passes.
	OutcomeNoMatch Outcome = "no_match"
	// OutcomeDuplicate: the line was already consumed; silent no-op.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeAmbiguous: more than one live match; all parked for review,
	// none credited.
	OutcomeAmbiguous Outcome = "ambiguous"
	// OutcomeLateMatch: money arrived for an expired intent; parked for
	// review rather than silently credited or dropped.
	OutcomeLateMatch Outcome = "late_match"
)

// Result reports what one pass did.
type Result struct {
	Outcome Outcome
	LineID  string
	// Intents lists the affected intents (one for settled/late, several
	// for ambiguous, none for no-match).
	Intents []payment.Intent
}
