package ledger

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Store for tests. The settlement and withdrawal
// memory stores compose it through WithLock so their compound operations
// stay atomic with ledger appends.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
	refs    map[refKey]bool
}

type refKey struct {
	kind Kind
	ref  string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{refs: make(map[refKey]bool)}
}

func (r *MemoryRepo) Append(ctx context.Context, e Entry) (int64, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(e)
}

func (r *MemoryRepo) Balance(ctx context.Context, userID string) (int64, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sumLocked(userID), nil
}

func (r *MemoryRepo) List(ctx context.Context, userID string) ([]Entry, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// WithLock runs fn while holding the repo mutex so a composing store can
// make a ledger append atomic with its own state changes.
func (r *MemoryRepo) WithLock(fn func(tx MemoryTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(MemoryTx{r: r})
}

// MemoryTx exposes the locked operations inside WithLock.
type MemoryTx struct {
	r *MemoryRepo
}

func (t MemoryTx) Append(e Entry) (int64, error) { return t.r.appendLocked(e) }

func (t MemoryTx) Balance(userID string) int64 { return t.r.sumLocked(userID) }

func (r *MemoryRepo) appendLocked(e Entry) (int64, error) {
	key := refKey{kind: e.Kind, ref: e.ReferenceID}
	if e.Kind.ExactlyOnce() && r.refs[key] {
		return 0, ErrDuplicateReference
	}
	if e.AmountMinor < 0 && r.sumLocked(e.UserID)+e.AmountMinor < 0 {
		return 0, ErrInsufficientFunds
	}
	if e.Kind.ExactlyOnce() {
		r.refs[key] = true
	}
	r.entries = append(r.entries, e)
	return r.sumLocked(e.UserID), nil
}

func (r *MemoryRepo) sumLocked(userID string) int64 {
	var sum int64
	for _, e := range r.entries {
		if e.UserID == userID {
			sum += e.AmountMinor
		}
	}
	return sum
}
