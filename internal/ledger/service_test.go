package ledger

import (
	"context"
	"testing"
	"time"
)

func newTestService() *Service {
	svc := NewService(NewMemoryRepo())
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return svc
}

func TestCredit_RejectsInvalidArgs(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Credit(ctx, "", 100, KindDeposit, "ref"); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.Credit(ctx, "u", 0, KindDeposit, "ref"); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.Credit(ctx, "u", 100, Kind("bogus"), "ref"); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	// Exactly-once kinds require a reference.
	if _, _, err := svc.Credit(ctx, "u", 100, KindDeposit, ""); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestCredit_ExactlyOncePerReference(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, balance, err := svc.Credit(ctx, "u1", 100_000, KindDeposit, "intent-1")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if balance != 100_000 {
		t.Fatalf("expected balance 100000, got %d", balance)
	}

	if _, _, err := svc.Credit(ctx, "u1", 100_000, KindDeposit, "intent-1"); err != ErrDuplicateReference {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
	if got, _ := svc.Balance(ctx, "u1"); got != 100_000 {
		t.Fatalf("duplicate credit changed balance: %d", got)
	}
}

func TestFees_MayRecurAgainstSameReference(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Credit(ctx, "u1", 300, KindRefund, "post-7"); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	if _, _, err := svc.Credit(ctx, "u1", 300, KindRefund, "post-7"); err != nil {
		t.Fatalf("second refund against same ref should pass: %v", err)
	}
}

func TestDebit_InsufficientFunds(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Credit(ctx, "u1", 50_000, KindDeposit, "intent-1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, _, err := svc.Debit(ctx, "u1", 60_000, KindWithdrawal, "wd-1"); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got, _ := svc.Balance(ctx, "u1"); got != 50_000 {
		t.Fatalf("failed debit changed balance: %d", got)
	}
}

func TestBalance_EqualsSignedSumOfEntries(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	ops := []struct {
		credit bool
		amount int64
		kind   Kind
		ref    string
	}{
		{true, 100_000, KindDeposit, "d1"},
		{false, 30_000, KindWithdrawal, "w1"},
		{false, 5_000, KindPostFee, ""},
		{true, 5_000, KindRefund, ""},
		{false, 12_000, KindSubscriptionFee, ""},
	}
	for _, op := range ops {
		var err error
		if op.credit {
			_, _, err = svc.Credit(ctx, "u1", op.amount, op.kind, op.ref)
		} else {
			_, _, err = svc.Debit(ctx, "u1", op.amount, op.kind, op.ref)
		}
		if err != nil {
			t.Fatalf("op %+v: %v", op, err)
		}
	}

	entries, err := svc.History(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var sum int64
	for _, e := range entries {
		sum += e.AmountMinor
	}
	balance, err := svc.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != sum {
		t.Fatalf("balance %d != entry sum %d", balance, sum)
	}
	if balance != 58_000 {
		t.Fatalf("expected 58000, got %d", balance)
	}
}

func TestBalance_IsolatedPerUser(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Credit(ctx, "u1", 100, KindDeposit, "d1"); err != nil {
		t.Fatalf("credit u1: %v", err)
	}
	if got, _ := svc.Balance(ctx, "u2"); got != 0 {
		t.Fatalf("expected u2 balance 0, got %d", got)
	}
}
