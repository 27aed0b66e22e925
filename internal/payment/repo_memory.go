package payment

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Store for tests and early development.
// The settlement memory store composes it to get cross-store atomicity, so
// a few compare-and-swap helpers beyond the Store interface are exported.
type MemoryRepo struct {
	mu      sync.Mutex
	intents map[string]Intent
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{intents: make(map[string]Intent)}
}

func (r *MemoryRepo) Insert(ctx context.Context, i Intent) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents[i.ID] = i
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Intent, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.intents[id]
	if !ok {
		return Intent{}, ErrNotFound
	}
	return i, nil
}

func (r *MemoryRepo) CodeActive(ctx context.Context, code string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.intents {
		if i.Code == code && i.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) SetQRIssued(ctx context.Context, id, payload string, now time.Time) (Intent, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.intents[id]
	if !ok {
		return Intent{}, false, ErrNotFound
	}
	if i.Status != StatusCreated {
		return i, false, nil
	}
	i.Status = StatusQRIssued
	i.QRPayload = payload
	i.UpdatedAt = now
	r.intents[id] = i
	return i, true, nil
}

func (r *MemoryRepo) ExpireDue(ctx context.Context, now time.Time) ([]Intent, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Intent
	for id, i := range r.intents {
		if (i.Status == StatusCreated || i.Status == StatusQRIssued) && i.ExpiredBy(now) {
			i.Status = StatusExpired
			i.UpdatedAt = now
			r.intents[id] = i
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Intent, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Intent
	for _, i := range r.intents {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

// CompareAndSwap moves id to status `to` only when its current status is in
// `from`, returning the refreshed intent and whether the swap happened.
func (r *MemoryRepo) CompareAndSwap(id string, from []Status, to Status, now time.Time) (Intent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.intents[id]
	if !ok {
		return Intent{}, false
	}
	for _, f := range from {
		if i.Status == f && CanTransition(f, to) {
			i.Status = to
			i.UpdatedAt = now
			r.intents[id] = i
			return i, true
		}
	}
	return i, false
}

// Snapshot returns a copy of every stored intent.
func (r *MemoryRepo) Snapshot() []Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Intent, 0, len(r.intents))
	for _, i := range r.intents {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}
