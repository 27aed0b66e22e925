package ledger

import "context"

// Store is the persistence contract for the ledger.
//
// Append is the only write and must be atomic with its guards: the
// duplicate-reference check for exactly-once kinds, and the
// sufficient-funds check for debits, both evaluated against the ledger at
// the instant of the append (never a cached balance).
type Store interface {
	// Append adds the entry and returns the user's resulting balance.
	// Fails ErrDuplicateReference or ErrInsufficientFunds without writing.
	Append(ctx context.Context, e Entry) (int64, error)

	// Balance derives the balance as the signed sum of entries.
	Balance(ctx context.Context, userID string) (int64, error)

	List(ctx context.Context, userID string) ([]Entry, error)
}
