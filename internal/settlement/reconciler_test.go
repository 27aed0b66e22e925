package settlement

import (
	"context"
	"testing"
	"time"

	"renthub-platform/internal/ledger"
	"renthub-platform/internal/notify"
	"renthub-platform/internal/payment"
)

var testBank = payment.BankAccount{BankName: "Demo Bank", AccountNumber: "0123456789", HolderName: "RENTHUB CO"}

type fixture struct {
	payments *payment.Service
	ledger   *ledger.Service
	rec      *Reconciler
	hints    *notify.Memory
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Unix(1700000000, 0).UTC()

	payRepo := payment.NewMemoryRepo()
	ledRepo := ledger.NewMemoryRepo()
	payments := payment.NewService(payRepo, testBank, payment.Settings{IntentTTL: 15 * time.Minute}).
		WithClock(func() time.Time { return now })
	hints := notify.NewMemory()

	store := NewMemoryStore(payRepo, ledRepo)
	rec := NewReconciler(store, payments, hints, nil)
	rec.clock = func() time.Time { return now }

	return &fixture{
		payments: payments,
		ledger:   ledger.NewService(ledRepo),
		rec:      rec,
		hints:    hints,
		now:      now,
	}
}

func (f *fixture) issuedIntent(t *testing.T, userID string, amount int64) payment.Intent {
	t.Helper()
	intent, err := f.payments.Create(context.Background(), userID, amount, "")
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	intent, _, err = f.payments.IssueQR(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("issue qr: %v", err)
	}
	return intent
}

func TestApply_DuplicateLineCreditsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := f.issuedIntent(t, "u1", 100_000)
	line := FeedLine{ID: "tx-1", Description: "rent content=" + intent.Code, AmountMinor: 100_000, PostedAt: f.now}

	res, err := f.rec.Apply(ctx, line)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Outcome != OutcomeSettled {
		t.Fatalf("expected settled, got %s", res.Outcome)
	}

	// Same line delivered again: silent no-op.
	res2, err := f.rec.Apply(ctx, line)
	if err != nil {
		t.Fatalf("apply duplicate: %v", err)
	}
	if res2.Outcome == OutcomeSettled {
		t.Fatalf("duplicate delivery settled twice")
	}

	balance, _ := f.ledger.Balance(ctx, "u1")
	if balance != 100_000 {
		t.Fatalf("expected balance 100000, got %d", balance)
	}
	entries, _ := f.ledger.History(ctx, "u1")
	if len(entries) != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", len(entries))
	}
	got, _ := f.payments.Get(ctx, intent.ID)
	if got.Status != payment.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestApplyAndCheckNow_RaceCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := f.issuedIntent(t, "u1", 100_000)
	line := FeedLine{ID: "tx-1", Description: intent.Code, AmountMinor: 100_000, PostedAt: f.now}

	if _, err := f.rec.Apply(ctx, line); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Client-triggered pass over the same snapshot: both triggers funnel
	// through the same guarded transition, so this must be a no-op.
	got, err := f.rec.CheckNow(ctx, intent.ID)
	if err != nil {
		t.Fatalf("check now: %v", err)
	}
	if got.Status != payment.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}

	entries, _ := f.ledger.History(ctx, "u1")
	if len(entries) != 1 {
		t.Fatalf("expected one ledger entry after race, got %d", len(entries))
	}
}

func TestApply_SettlesIntentBeforeQRIssuance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The code exists from creation on, so a transfer can land before the
	// client ever fetched the QR payload.
	intent, err := f.payments.Create(ctx, "u1", 100_000, "")
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	res, err := f.rec.Apply(ctx, FeedLine{ID: "tx-1", Description: intent.Code, AmountMinor: 100_000, PostedAt: f.now})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Outcome != OutcomeSettled {
		t.Fatalf("expected settled, got %s", res.Outcome)
	}
	got, _ := f.payments.Get(ctx, intent.ID)
	if got.Status != payment.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestApply_AmountMismatchOrMissingCodeDoesNotMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := f.issuedIntent(t, "u1", 50_000)

	// Right amount, wrong description.
	res, err := f.rec.Apply(ctx, FeedLine{ID: "tx-1", Description: "no code here", AmountMinor: 50_000, PostedAt: f.now})
	if err != nil || res.Outcome != OutcomeNoMatch {
		t.Fatalf("expected no_match, got %v / %v", res.Outcome, err)
	}
	// Right code, wrong amount.
	res, err = f.rec.Apply(ctx, FeedLine{ID: "tx-2", Description: intent.Code, AmountMinor: 49_999, PostedAt: f.now})
	if err != nil || res.Outcome != OutcomeNoMatch {
		t.Fatalf("expected no_match, got %v / %v", res.Outcome, err)
	}

	got, _ := f.payments.Get(ctx, intent.ID)
	if got.Status != payment.StatusQRIssued {
		t.Fatalf("expected qr_issued, got %s", got.Status)
	}
	if balance, _ := f.ledger.Balance(ctx, "u1"); balance != 0 {
		t.Fatalf("expected zero balance, got %d", balance)
	}
}

func TestApply_AmbiguousMatchParksAllForReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.issuedIntent(t, "u1", 70_000)
	b := f.issuedIntent(t, "u2", 70_000)

	// A description containing both codes with equal amounts: ambiguous.
	line := FeedLine{ID: "tx-1", Description: a.Code + " " + b.Code, AmountMinor: 70_000, PostedAt: f.now}
	res, err := f.rec.Apply(ctx, line)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Outcome != OutcomeAmbiguous {
		t.Fatalf("expected ambiguous, got %s", res.Outcome)
	}

	for _, id := range []string{a.ID, b.ID} {
		got, _ := f.payments.Get(ctx, id)
		if got.Status != payment.StatusNeedsReview {
			t.Fatalf("intent %s: expected needs_review, got %s", id, got.Status)
		}
	}
	// No one was credited.
	for _, u := range []string{"u1", "u2"} {
		if balance, _ := f.ledger.Balance(ctx, u); balance != 0 {
			t.Fatalf("user %s: expected zero balance, got %d", u, balance)
		}
	}

	queue, _ := f.rec.ListNeedsReview(ctx)
	if len(queue) != 2 {
		t.Fatalf("expected 2 intents in review queue, got %d", len(queue))
	}
}

func TestApply_LateMatchForExpiredIntentGoesToReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := f.issuedIntent(t, "u1", 100_000)

	// Push past TTL and sweep.
	f.rec.clock = func() time.Time { return f.now.Add(20 * time.Minute) }
	expired, err := f.rec.SweepExpired(ctx)
	if err != nil || len(expired) != 1 {
		t.Fatalf("sweep: %v (%d expired)", err, len(expired))
	}

	// The transfer arrives after expiry.
	line := FeedLine{ID: "tx-1", Description: intent.Code, AmountMinor: 100_000, PostedAt: f.now.Add(21 * time.Minute)}
	res, err := f.rec.Apply(ctx, line)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Outcome != OutcomeLateMatch {
		t.Fatalf("expected late_match, got %s", res.Outcome)
	}

	got, _ := f.payments.Get(ctx, intent.ID)
	if got.Status != payment.StatusNeedsReview {
		t.Fatalf("expected needs_review, got %s", got.Status)
	}
	// Never silently credited.
	if balance, _ := f.ledger.Balance(ctx, "u1"); balance != 0 {
		t.Fatalf("expected zero balance, got %d", balance)
	}
}

func TestApply_PastTTLBeforeSweepGoesToReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := f.issuedIntent(t, "u1", 100_000)

	// The deadline passes but the fixed-interval sweep has not run yet, so
	// the intent still sits in qr_issued. The transfer lands in that window.
	f.rec.clock = func() time.Time { return f.now.Add(20 * time.Minute) }
	line := FeedLine{ID: "tx-1", Description: intent.Code, AmountMinor: 100_000, PostedAt: f.now.Add(20 * time.Minute)}

	res, err := f.rec.Apply(ctx, line)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Outcome != OutcomeLateMatch {
		t.Fatalf("expected late_match, got %s", res.Outcome)
	}
	got, _ := f.payments.Get(ctx, intent.ID)
	if got.Status != payment.StatusNeedsReview {
		t.Fatalf("expected needs_review, got %s", got.Status)
	}
	if balance, _ := f.ledger.Balance(ctx, "u1"); balance != 0 {
		t.Fatalf("credited past the deadline: %d", balance)
	}
}

func TestApply_AmbiguousCreatedIntentsParkForReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Neither intent has a QR issued yet; both codes are live from creation.
	a, err := f.payments.Create(ctx, "u1", 70_000, "")
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	b, err := f.payments.Create(ctx, "u2", 70_000, "")
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	line := FeedLine{ID: "tx-1", Description: a.Code + " " + b.Code, AmountMinor: 70_000, PostedAt: f.now}
	res, err := f.rec.Apply(ctx, line)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Outcome != OutcomeAmbiguous {
		t.Fatalf("expected ambiguous, got %s", res.Outcome)
	}

	for _, id := range []string{a.ID, b.ID} {
		got, _ := f.payments.Get(ctx, id)
		if got.Status != payment.StatusNeedsReview {
			t.Fatalf("intent %s: expected needs_review, got %s", id, got.Status)
		}
	}
	queue, _ := f.rec.ListNeedsReview(ctx)
	if len(queue) != 2 {
		t.Fatalf("expected 2 intents in review queue, got %d", len(queue))
	}
	// The line was consumed into the review state, not lost.
	lines, _ := f.rec.store.UnconsumedLines(ctx)
	if len(lines) != 0 {
		t.Fatalf("expected line consumed, %d still pending", len(lines))
	}
}

func TestSweepExpired_NeverCompletesPastTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := f.issuedIntent(t, "u1", 100_000)
	f.rec.clock = func() time.Time { return f.now.Add(20 * time.Minute) }

	if _, err := f.rec.SweepExpired(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// Idempotent against a second concurrent-ish sweep.
	again, err := f.rec.SweepExpired(ctx)
	if err != nil || len(again) != 0 {
		t.Fatalf("second sweep: %v (%d)", err, len(again))
	}

	got, _ := f.payments.Get(ctx, intent.ID)
	if got.Status != payment.StatusExpired {
		t.Fatalf("expected expired, got %s", got.Status)
	}
}

func TestHandlePush_IgnoresClaimedStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := f.issuedIntent(t, "u1", 100_000)

	// The gateway claims completion but no feed line backs it up.
	got, err := f.rec.HandlePush(ctx, PushEvent{IntentID: intent.ID, Status: "completed", AmountMinor: 100_000})
	if err != nil {
		t.Fatalf("handle push: %v", err)
	}
	if got.Status != payment.StatusQRIssued {
		t.Fatalf("push payload was trusted: status %s", got.Status)
	}
	if balance, _ := f.ledger.Balance(ctx, "u1"); balance != 0 {
		t.Fatalf("push payload credited the ledger: %d", balance)
	}

	// Once the line actually exists, the same push settles it.
	if _, err := f.rec.Apply(ctx, FeedLine{ID: "tx-1", Description: intent.Code, AmountMinor: 100_000, PostedAt: f.now}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, err = f.rec.HandlePush(ctx, PushEvent{IntentID: intent.ID, Status: "whatever"})
	if err != nil {
		t.Fatalf("handle push: %v", err)
	}
	if got.Status != payment.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestResolveReview_ApproveCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := f.issuedIntent(t, "u1", 100_000)
	f.rec.clock = func() time.Time { return f.now.Add(20 * time.Minute) }
	if _, err := f.rec.SweepExpired(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := f.rec.Apply(ctx, FeedLine{ID: "tx-1", Description: intent.Code, AmountMinor: 100_000, PostedAt: f.now}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	resolved, err := f.rec.ResolveReview(ctx, intent.ID, true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != payment.StatusCompleted {
		t.Fatalf("expected completed, got %s", resolved.Status)
	}
	if balance, _ := f.ledger.Balance(ctx, "u1"); balance != 100_000 {
		t.Fatalf("expected 100000, got %d", balance)
	}

	// Second resolution attempt is rejected and does not double-credit.
	if _, err := f.rec.ResolveReview(ctx, intent.ID, true); err != ErrNotReviewable {
		t.Fatalf("expected ErrNotReviewable, got %v", err)
	}
	entries, _ := f.ledger.History(ctx, "u1")
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
}

func TestResolveReview_RejectCreatesNoEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := f.issuedIntent(t, "u1", 100_000)
	f.rec.clock = func() time.Time { return f.now.Add(20 * time.Minute) }
	if _, err := f.rec.SweepExpired(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := f.rec.Apply(ctx, FeedLine{ID: "tx-1", Description: intent.Code, AmountMinor: 100_000, PostedAt: f.now}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	resolved, err := f.rec.ResolveReview(ctx, intent.ID, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != payment.StatusFailed {
		t.Fatalf("expected failed, got %s", resolved.Status)
	}
	if balance, _ := f.ledger.Balance(ctx, "u1"); balance != 0 {
		t.Fatalf("expected zero balance, got %d", balance)
	}
}

func TestApply_EmitsAdvisoryHint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := f.issuedIntent(t, "u1", 100_000)
	if _, err := f.rec.Apply(ctx, FeedLine{ID: "tx-1", Description: intent.Code, AmountMinor: 100_000, PostedAt: f.now}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	hints := f.hints.Hints()
	if len(hints) != 1 {
		t.Fatalf("expected one hint, got %d", len(hints))
	}
	h := hints[0]
	if h.IntentID != intent.ID || h.UserID != "u1" || h.Status != string(payment.StatusCompleted) {
		t.Fatalf("unexpected hint: %+v", h)
	}
}
