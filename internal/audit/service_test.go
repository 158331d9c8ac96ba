package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{WalletID: "w"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogFundingConfirmed(context.Background(), "wallet1", "MON_ref", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogCallBilled(context.Background(), "u1", "wallet1", "call1", "CALL_call1", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Type != EventTypeFundingConfirmed {
		t.Fatalf("expected funding_confirmed")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be filled")
	}
	if evs[1].CallID != "call1" || evs[1].Reference != "CALL_call1" {
		t.Fatalf("expected call refs captured: %+v", evs[1])
	}
}
