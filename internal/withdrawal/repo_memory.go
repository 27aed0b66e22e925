package withdrawal

import (
	"context"
	"sort"
	"sync"
	"time"

	"renthub-platform/internal/ledger"
)

// MemoryRepo keeps withdrawal intents in memory, composing the ledger
// memory repo so the balance check and the approval debit stay atomic.
// Used by tests and local development.
type MemoryRepo struct {
	mu      sync.Mutex
	entries *ledger.MemoryRepo
	intents map[string]Intent
}

func NewMemoryRepo(entries *ledger.MemoryRepo) *MemoryRepo {
	return &MemoryRepo{
		entries: entries,
		intents: make(map[string]Intent),
	}
}

func (r *MemoryRepo) CreatePending(ctx context.Context, intent Intent) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var balance int64
	err := r.entries.WithLock(func(tx ledger.MemoryTx) error {
		balance = tx.Balance(intent.UserID)
		return nil
	})
	if err != nil {
		return err
	}
	if balance-r.pendingSumLocked(intent.UserID) < intent.AmountMinor {
		return ledger.ErrInsufficientFunds
	}
	r.intents[intent.ID] = intent
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Intent, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return Intent{}, ErrNotFound
	}
	return intent, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Intent, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterLocked(func(i Intent) bool { return i.UserID == userID }), nil
}

func (r *MemoryRepo) ListPending(ctx context.Context) ([]Intent, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterLocked(func(i Intent) bool { return i.Status == StatusPending }), nil
}

func (r *MemoryRepo) Approve(ctx context.Context, id string, now time.Time) (Intent, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, ok := r.intents[id]
	if !ok {
		return Intent{}, false, ErrNotFound
	}
	if intent.Status != StatusPending {
		return intent, false, nil
	}

	var appendErr error
	err := r.entries.WithLock(func(tx ledger.MemoryTx) error {
		_, appendErr = tx.Append(ledger.Entry{
			ID:          "wd-" + intent.ID,
			UserID:      intent.UserID,
			Kind:        ledger.KindWithdrawal,
			AmountMinor: -intent.AmountMinor,
			ReferenceID: intent.ID,
			CreatedAt:   now,
		})
		return appendErr
	})
	if err != nil {
		return intent, false, err
	}

	intent.Status = StatusCompleted
	intent.UpdatedAt = now
	r.intents[id] = intent
	return intent, true, nil
}

func (r *MemoryRepo) Reject(ctx context.Context, id, reason string, now time.Time) (Intent, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, ok := r.intents[id]
	if !ok {
		return Intent{}, false, ErrNotFound
	}
	if intent.Status != StatusPending {
		return intent, false, nil
	}

	intent.Status = StatusRejected
	intent.RejectReason = reason
	intent.UpdatedAt = now
	r.intents[id] = intent
	return intent, true, nil
}

func (r *MemoryRepo) pendingSumLocked(userID string) int64 {
	var sum int64
	for _, i := range r.intents {
		if i.UserID == userID && i.Status == StatusPending {
			sum += i.AmountMinor
		}
	}
	return sum
}

func (r *MemoryRepo) filterLocked(keep func(Intent) bool) []Intent {
	var out []Intent
	for _, i := range r.intents {
		if keep(i) {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}
