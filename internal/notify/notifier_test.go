package notify

import (
	"context"
	"testing"
)

func TestChannelNaming(t *testing.T) {
	if got := Channel("u1"); got != "payments:status:u1" {
		t.Fatalf("unexpected channel %q", got)
	}
}

func TestMemoryRecordsHints(t *testing.T) {
	m := NewMemory()
	if err := m.PaymentChanged(context.Background(), Hint{IntentID: "i1", UserID: "u1", Status: "completed"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	hints := m.Hints()
	if len(hints) != 1 || hints[0].IntentID != "i1" {
		t.Fatalf("unexpected hints: %+v", hints)
	}
}
