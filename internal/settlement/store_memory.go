package settlement

import (
	"context"
	"sync"
	"time"

	"renthub-platform/internal/ledger"
	"renthub-platform/internal/payment"
)

// MemoryStore composes the payment and ledger memory repos under one mutex
// so the compound settlement operations are atomic, mirroring what the
// Postgres store gets from a single transaction. Used by tests and local
// development.
type MemoryStore struct {
	mu       sync.Mutex
	payments *payment.MemoryRepo
	entries  *ledger.MemoryRepo
	lines    map[string]*lineState
}

type lineState struct {
	line     FeedLine
	consumed bool
	review   bool
}

func NewMemoryStore(payments *payment.MemoryRepo, entries *ledger.MemoryRepo) *MemoryStore {
	return &MemoryStore{
		payments: payments,
		entries:  entries,
		lines:    make(map[string]*lineState),
	}
}

func (s *MemoryStore) SaveLine(ctx context.Context, line FeedLine) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[line.ID]; ok {
		return true, nil
	}
	s.lines[line.ID] = &lineState{line: line}
	return false, nil
}

func (s *MemoryStore) UnconsumedLines(ctx context.Context) ([]FeedLine, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []FeedLine
	for _, st := range s.lines {
		if !st.consumed {
			out = append(out, st.line)
		}
	}
	return out, nil
}

func (s *MemoryStore) ActiveCandidates(ctx context.Context, line FeedLine) ([]payment.Intent, error) {
	_ = ctx
	return s.candidates(line, func(st payment.Status) bool {
		return st == payment.StatusCreated || st == payment.StatusQRIssued
	}), nil
}

func (s *MemoryStore) ExpiredCandidates(ctx context.Context, line FeedLine) ([]payment.Intent, error) {
	_ = ctx
	return s.candidates(line, func(st payment.Status) bool {
		return st == payment.StatusExpired
	}), nil
}

func (s *MemoryStore) candidates(line FeedLine, want func(payment.Status) bool) []payment.Intent {
	var out []payment.Intent
	for _, i := range s.payments.Snapshot() {
		if want(i.Status) && Matches(i, line) {
			out = append(out, i)
		}
	}
	return out
}

func (s *MemoryStore) Settle(ctx context.Context, lineID string, intent payment.Intent, now time.Time) (payment.Intent, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.lines[lineID]
	if !ok || st.consumed {
		return intent, false, nil
	}
	// Last line of defense against completion past the deadline.
	if intent.ExpiredBy(now) {
		return intent, false, nil
	}

	matched, ok := s.payments.CompareAndSwap(intent.ID,
		[]payment.Status{payment.StatusCreated, payment.StatusQRIssued},
		payment.StatusMatched, now)
	if !ok {
		return matched, false, nil
	}

	var appendErr error
	err := s.entries.WithLock(func(tx ledger.MemoryTx) error {
		_, appendErr = tx.Append(ledger.Entry{
			ID:          "dep-" + intent.ID,
			UserID:      intent.UserID,
			Kind:        ledger.KindDeposit,
			AmountMinor: intent.AmountMinor,
			ReferenceID: intent.ID,
			CreatedAt:   now,
		})
		return appendErr
	})
	if err != nil {
		// Roll the status change back; partial states must not persist.
		s.payments.CompareAndSwap(intent.ID,
			[]payment.Status{payment.StatusMatched},
			payment.StatusQRIssued, now)
		return intent, false, err
	}

	completed, ok := s.payments.CompareAndSwap(intent.ID,
		[]payment.Status{payment.StatusMatched},
		payment.StatusCompleted, now)
	if !ok {
		return completed, false, nil
	}

	st.consumed = true
	return completed, true, nil
}

func (s *MemoryStore) FlagForReview(ctx context.Context, lineID string, intents []payment.Intent, now time.Time) ([]payment.Intent, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.lines[lineID]
	if !ok || st.consumed {
		return nil, nil
	}

	var flagged []payment.Intent
	for _, intent := range intents {
		updated, ok := s.payments.CompareAndSwap(intent.ID,
			[]payment.Status{payment.StatusCreated, payment.StatusQRIssued, payment.StatusExpired},
			payment.StatusNeedsReview, now)
		if ok {
			flagged = append(flagged, updated)
		}
	}
	if len(flagged) > 0 {
		st.consumed = true
		st.review = true
	}
	return flagged, nil
}

func (s *MemoryStore) ExpireDue(ctx context.Context, now time.Time) ([]payment.Intent, error) {
	return s.payments.ExpireDue(ctx, now)
}

func (s *MemoryStore) ListNeedsReview(ctx context.Context) ([]payment.Intent, error) {
	_ = ctx
	var out []payment.Intent
	for _, i := range s.payments.Snapshot() {
		if i.Status == payment.StatusNeedsReview {
			out = append(out, i)
		}
	}
	return out, nil
}

func (s *MemoryStore) ResolveReview(ctx context.Context, intentID string, approve bool, now time.Time) (payment.Intent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !approve {
		updated, ok := s.payments.CompareAndSwap(intentID,
			[]payment.Status{payment.StatusNeedsReview},
			payment.StatusFailed, now)
		return updated, ok, nil
	}

	intent, err := s.payments.Get(ctx, intentID)
	if err != nil {
		return payment.Intent{}, false, err
	}
	if intent.Status != payment.StatusNeedsReview {
		return intent, false, nil
	}

	var appendErr error
	err = s.entries.WithLock(func(tx ledger.MemoryTx) error {
		_, appendErr = tx.Append(ledger.Entry{
			ID:          "dep-" + intent.ID,
			UserID:      intent.UserID,
			Kind:        ledger.KindDeposit,
			AmountMinor: intent.AmountMinor,
			ReferenceID: intent.ID,
			CreatedAt:   now,
		})
		return appendErr
	})
	if err != nil {
		return intent, false, err
	}

	updated, ok := s.payments.CompareAndSwap(intentID,
		[]payment.Status{payment.StatusNeedsReview},
		payment.StatusCompleted, now)
	return updated, ok, nil
}
