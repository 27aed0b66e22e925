package reporting

import (
	"context"
	"sync"
	"time"

	"renthub-platform/internal/ledger"
	"renthub-platform/internal/payment"
)

// MemoryRepo is a simple in-memory reporting repository for tests and
// early development.

type MemoryRepo struct {
	mu sync.Mutex

	Entries []ledger.Entry
	Intents []payment.Intent
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListLedgerEntries(ctx context.Context, userID string, from, to time.Time) ([]ledger.Entry, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.Entry, 0)
	for _, e := range r.Entries {
		if userID != "" && e.UserID != userID {
			continue
		}
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *MemoryRepo) ListIntents(ctx context.Context, from, to time.Time) ([]payment.Intent, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]payment.Intent, 0)
	for _, i := range r.Intents {
		if i.CreatedAt.Before(from) || !i.CreatedAt.Before(to) {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}
