package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"renthub-platform/internal/ledger"
	"renthub-platform/internal/payment"
)

func testRange() TimeRange {
	from := time.Unix(1700000000, 0).UTC()
	return TimeRange{From: from, To: from.Add(24 * time.Hour)}
}

func TestLedgerSummary_CategorizesKinds(t *testing.T) {
	repo := NewMemoryRepo()
	at := testRange().From.Add(time.Hour)
	repo.Entries = []ledger.Entry{
		{ID: "1", UserID: "u1", Kind: ledger.KindDeposit, AmountMinor: 100_000, CreatedAt: at},
		{ID: "2", UserID: "u1", Kind: ledger.KindPostFee, AmountMinor: -2_000, CreatedAt: at},
		{ID: "3", UserID: "u1", Kind: ledger.KindWithdrawal, AmountMinor: -40_000, CreatedAt: at},
		{ID: "4", UserID: "u2", Kind: ledger.KindDeposit, AmountMinor: 50_000, CreatedAt: at},
		// outside the range, ignored
		{ID: "5", UserID: "u1", Kind: ledger.KindDeposit, AmountMinor: 999, CreatedAt: at.Add(48 * time.Hour)},
	}
	svc := NewService(repo)

	sum, err := svc.LedgerSummary(context.Background(), LedgerSummaryRequest{UserID: "u1", Range: testRange()})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.EntryCount != 3 {
		t.Fatalf("expected 3 entries, got %d", sum.EntryCount)
	}
	if sum.DepositMinor != 100_000 || sum.WithdrawalMinor != 40_000 || sum.FeeMinor != 2_000 {
		t.Fatalf("unexpected categorization: %+v", sum)
	}
	if sum.NetDeltaMinor != 58_000 {
		t.Fatalf("expected net 58000, got %d", sum.NetDeltaMinor)
	}

	// Platform-wide includes both users.
	all, err := svc.LedgerSummary(context.Background(), LedgerSummaryRequest{Range: testRange()})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if all.EntryCount != 4 {
		t.Fatalf("expected 4 entries platform-wide, got %d", all.EntryCount)
	}
}

func TestSettlementSummary_CountsByStatus(t *testing.T) {
	repo := NewMemoryRepo()
	at := testRange().From.Add(time.Hour)
	repo.Intents = []payment.Intent{
		{ID: "1", Status: payment.StatusCompleted, AmountMinor: 100_000, CreatedAt: at},
		{ID: "2", Status: payment.StatusCompleted, AmountMinor: 50_000, CreatedAt: at},
		{ID: "3", Status: payment.StatusExpired, CreatedAt: at},
		{ID: "4", Status: payment.StatusNeedsReview, CreatedAt: at},
		{ID: "5", Status: payment.StatusQRIssued, CreatedAt: at},
	}
	svc := NewService(repo)

	sum, err := svc.SettlementSummary(context.Background(), SettlementSummaryRequest{Range: testRange()})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalIntents != 5 || sum.Completed != 2 || sum.Expired != 1 || sum.NeedsReview != 1 || sum.Open != 1 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if sum.SettledAmountMinor != 150_000 {
		t.Fatalf("expected settled 150000, got %d", sum.SettledAmountMinor)
	}
	if sum.CompletionRate != 0.4 {
		t.Fatalf("expected completion rate 0.4, got %v", sum.CompletionRate)
	}
}

func TestSummaries_RejectInvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	_, err := svc.LedgerSummary(context.Background(), LedgerSummaryRequest{})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	r := testRange()
	r.From, r.To = r.To, r.From
	_, err = svc.SettlementSummary(context.Background(), SettlementSummaryRequest{Range: r})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
