package payment

import (
	"context"
	"strings"
	"testing"
	"time"
)

var testBank = BankAccount{BankName: "Demo Bank", AccountNumber: "0123456789", HolderName: "RENTHUB CO"}

func newTestService(repo *MemoryRepo, now time.Time) *Service {
	svc := NewService(repo, testBank, Settings{IntentTTL: 15 * time.Minute, MaxAmountMinor: 1_000_000})
	svc.clock = func() time.Time { return now }
	return svc
}

func TestCreate_RejectsInvalidAmounts(t *testing.T) {
	svc := newTestService(NewMemoryRepo(), time.Unix(1700000000, 0).UTC())

	for _, amount := range []int64{0, -1, 1_000_001} {
		if _, err := svc.Create(context.Background(), "u1", amount, ""); err != ErrInvalidAmount {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestCreate_SetsCodeStatusAndExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc := newTestService(NewMemoryRepo(), now)

	intent, err := svc.Create(context.Background(), "u1", 100_000, "march rent")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if intent.Status != StatusCreated {
		t.Fatalf("expected created, got %s", intent.Status)
	}
	if len(intent.Code) != 8 {
		t.Fatalf("expected 8-char code, got %q", intent.Code)
	}
	for _, c := range intent.Code {
		if !strings.ContainsRune(codeAlphabet, c) {
			t.Fatalf("code %q contains char outside alphabet", intent.Code)
		}
	}
	if got := intent.ExpiresAt; !got.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("expected expiry now+15m, got %v", got)
	}
}

func TestIssueQR_TransitionsAndIsIdempotent(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	repo := NewMemoryRepo()
	svc := newTestService(repo, now)

	intent, err := svc.Create(context.Background(), "u1", 100_000, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, payload, err := svc.IssueQR(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("issue qr: %v", err)
	}
	if first.Status != StatusQRIssued {
		t.Fatalf("expected qr_issued, got %s", first.Status)
	}
	if payload.Content != intent.Code || payload.AmountMinor != 100_000 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if !strings.Contains(first.QRPayload, "content="+intent.Code) {
		t.Fatalf("encoded payload missing code: %q", first.QRPayload)
	}

	second, payload2, err := svc.IssueQR(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("issue qr again: %v", err)
	}
	if second.QRPayload != first.QRPayload || payload2.Encode() != payload.Encode() {
		t.Fatalf("expected identical payload on repeat issue")
	}
}

func TestIssueQR_FailsOutsideCreatedOrIssued(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	repo := NewMemoryRepo()
	svc := newTestService(repo, now)

	intent, _ := svc.Create(context.Background(), "u1", 100_000, "")
	repo.CompareAndSwap(intent.ID, []Status{StatusCreated}, StatusExpired, now)

	if _, _, err := svc.IssueQR(context.Background(), intent.ID); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestGet_DoesNotMutate(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	repo := NewMemoryRepo()
	svc := newTestService(repo, now)

	intent, _ := svc.Create(context.Background(), "u1", 100_000, "")

	// Reading after the deadline must not flip the status; only the sweep does.
	svc.clock = func() time.Time { return now.Add(time.Hour) }
	got, err := svc.Get(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCreated {
		t.Fatalf("expected created, got %s", got.Status)
	}
}

func TestExpireDue_IsIdempotent(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	repo := NewMemoryRepo()
	svc := newTestService(repo, now)

	intent, _ := svc.Create(context.Background(), "u1", 100_000, "")
	if _, _, err := svc.IssueQR(context.Background(), intent.ID); err != nil {
		t.Fatalf("issue qr: %v", err)
	}

	later := now.Add(16 * time.Minute)
	expired, err := repo.ExpireDue(context.Background(), later)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 1 || expired[0].Status != StatusExpired {
		t.Fatalf("expected one expired intent, got %+v", expired)
	}

	again, err := repo.ExpireDue(context.Background(), later)
	if err != nil {
		t.Fatalf("expire again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected second sweep to be a no-op, got %d", len(again))
	}
}

type fakeLimiter struct {
	open  map[string]int
	limit int
}

func (f *fakeLimiter) AcquireOpenIntent(_ context.Context, userID string) (bool, error) {
	if f.open[userID] >= f.limit {
		return false, nil
	}
	f.open[userID]++
	return true, nil
}

func (f *fakeLimiter) ReleaseOpenIntent(_ context.Context, userID string) error {
	if f.open[userID] > 0 {
		f.open[userID]--
	}
	return nil
}

func TestCreate_EnforcesOpenIntentCap(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc := newTestService(NewMemoryRepo(), now)
	svc.WithLimiter(&fakeLimiter{open: map[string]int{}, limit: 2})

	for i := 0; i < 2; i++ {
		if _, err := svc.Create(context.Background(), "u1", 100_000, ""); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if _, err := svc.Create(context.Background(), "u1", 100_000, ""); err != ErrTooManyOpenIntents {
		t.Fatalf("expected ErrTooManyOpenIntents, got %v", err)
	}
	// Other users are unaffected.
	if _, err := svc.Create(context.Background(), "u2", 100_000, ""); err != nil {
		t.Fatalf("create u2: %v", err)
	}
}

func TestCanTransition_Table(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusQRIssued, true},
		{StatusCreated, StatusMatched, true},
		{StatusCreated, StatusExpired, true},
		{StatusCreated, StatusNeedsReview, true},
		{StatusCreated, StatusCompleted, false},
		{StatusQRIssued, StatusMatched, true},
		{StatusQRIssued, StatusNeedsReview, true},
		{StatusQRIssued, StatusExpired, true},
		{StatusMatched, StatusCompleted, true},
		{StatusMatched, StatusExpired, false},
		{StatusExpired, StatusNeedsReview, true},
		{StatusExpired, StatusCompleted, false},
		{StatusNeedsReview, StatusCompleted, true},
		{StatusNeedsReview, StatusFailed, true},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s,%s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
