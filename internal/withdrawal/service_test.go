package withdrawal

import (
	"context"
	"errors"
	"testing"
	"time"

	"renthub-platform/internal/ledger"
)

func newTestService(t *testing.T) (*Service, *ledger.Service) {
	t.Helper()
	entries := ledger.NewMemoryRepo()
	svc := NewService(NewMemoryRepo(entries)).
		WithClock(func() time.Time { return time.Unix(1700000000, 0).UTC() })
	return svc, ledger.NewService(entries)
}

func fund(t *testing.T, led *ledger.Service, userID string, amount int64) {
	t.Helper()
	if _, _, err := led.Credit(context.Background(), userID, amount, ledger.KindDeposit, "dep-"+userID); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func TestRequest_PendingReservationsReduceAvailable(t *testing.T) {
	svc, led := newTestService(t)
	ctx := context.Background()
	fund(t, led, "u1", 100_000)

	if _, err := svc.Request(ctx, "u1", 30_000, "Demo Bank", "111", "A HOLDER"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	// 100000 - 30000 pending leaves 70000 available.
	if _, err := svc.Request(ctx, "u1", 80_000, "Demo Bank", "111", "A HOLDER"); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := svc.Request(ctx, "u1", 70_000, "Demo Bank", "111", "A HOLDER"); err != nil {
		t.Fatalf("request within available: %v", err)
	}
}

func TestRequest_Validation(t *testing.T) {
	svc, led := newTestService(t)
	ctx := context.Background()
	fund(t, led, "u1", 100_000)

	if _, err := svc.Request(ctx, "u1", 0, "Demo Bank", "111", "A HOLDER"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Request(ctx, "u1", 10_000, "", "111", "A HOLDER"); !errors.Is(err, ErrMissingAccount) {
		t.Fatalf("expected ErrMissingAccount, got %v", err)
	}
}

func TestApprove_DebitsExactlyOnce(t *testing.T) {
	svc, led := newTestService(t)
	ctx := context.Background()
	fund(t, led, "u1", 100_000)

	intent, err := svc.Request(ctx, "u1", 40_000, "Demo Bank", "111", "A HOLDER")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	approved, err := svc.Approve(ctx, intent.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", approved.Status)
	}
	if balance, _ := led.Balance(ctx, "u1"); balance != 60_000 {
		t.Fatalf("expected 60000, got %d", balance)
	}

	if _, err := svc.Approve(ctx, intent.ID); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	history, _ := led.History(ctx, "u1")
	if len(history) != 2 { // one deposit, one withdrawal
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
}

func TestReject_ReleasesReservation(t *testing.T) {
	svc, led := newTestService(t)
	ctx := context.Background()
	fund(t, led, "u1", 100_000)

	intent, err := svc.Request(ctx, "u1", 90_000, "Demo Bank", "111", "A HOLDER")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Request(ctx, "u1", 50_000, "Demo Bank", "111", "A HOLDER"); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected reservation to block, got %v", err)
	}

	rejected, err := svc.Reject(ctx, intent.ID, "account name mismatch")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != StatusRejected || rejected.RejectReason == "" {
		t.Fatalf("unexpected rejected intent: %+v", rejected)
	}
	if balance, _ := led.Balance(ctx, "u1"); balance != 100_000 {
		t.Fatalf("reject must not touch the ledger, balance %d", balance)
	}

	// Reservation released; full balance available again.
	if _, err := svc.Request(ctx, "u1", 100_000, "Demo Bank", "111", "A HOLDER"); err != nil {
		t.Fatalf("request after reject: %v", err)
	}

	if _, err := svc.Approve(ctx, intent.ID); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed after reject, got %v", err)
	}
}

func TestListPending_OrdersDecisionQueue(t *testing.T) {
	svc, led := newTestService(t)
	ctx := context.Background()
	fund(t, led, "u1", 100_000)
	fund(t, led, "u2", 100_000)

	a, _ := svc.Request(ctx, "u1", 10_000, "Demo Bank", "111", "A HOLDER")
	b, _ := svc.Request(ctx, "u2", 20_000, "Demo Bank", "222", "B HOLDER")
	if _, err := svc.Approve(ctx, a.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	pending, err := svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("unexpected queue: %+v", pending)
	}
}
