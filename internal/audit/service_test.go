package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{ActorUserID: "u"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogWithdrawalDecision(context.Background(), "u", "finance", "1.2.3.4", "wd1", "approved", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeWithdrawalDecision {
		t.Fatalf("expected withdrawal_decision")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp filled")
	}
}

func TestMemoryRepo_ByTypeFiltersCopy(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAdminAction(context.Background(), "adm", "admin", "", "codes rotated", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogReviewResolution(context.Background(), "adm", "admin", "", "pi1", "approved", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	got := repo.ByType(EventTypeReviewResolution)
	if len(got) != 1 || got[0].PaymentIntentID != "pi1" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	// Mutating the returned slice must not touch the log.
	got[0].Message = "tampered"
	if repo.Events()[1].Message == "tampered" {
		t.Fatalf("returned slice aliases the log")
	}
}
