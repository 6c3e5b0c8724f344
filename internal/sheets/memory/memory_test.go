package memory

import (
	"context"
	"testing"

	"benta/internal/core"
)

func validTransaction(id int64) core.Transaction {
	return core.Transaction{
		ID:           id,
		UserID:       1,
		CategoryID:   1,
		Amount:       core.Money{Cents: 500},
		Description:  "coffee beans",
		Date:         core.NewDate(2026, 8, 1),
		Type:         core.Expense,
		CategoryName: "Office Supplies",
	}
}

func TestAppendAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.AppendTransaction(ctx, validTransaction(1))
	if err != nil {
		t.Fatalf("AppendTransaction: %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}

	if _, err := s.AppendTransaction(ctx, validTransaction(2)); err != nil {
		t.Fatalf("AppendTransaction: %v", err)
	}
	if got := len(s.Transactions()); got != 2 {
		t.Fatalf("stored = %d, want 2", got)
	}

	if err := s.DeleteTransaction(ctx, 1); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	txs := s.Transactions()
	if len(txs) != 1 || txs[0].ID != 2 {
		t.Errorf("after delete: %+v", txs)
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	s := New()
	bad := validTransaction(1)
	bad.Amount.Cents = -5

	if _, err := s.AppendTransaction(context.Background(), bad); err == nil {
		t.Fatal("expected validation error")
	}
	if len(s.Transactions()) != 0 {
		t.Error("invalid transaction was stored")
	}
}

func TestAppendIsIdempotentPerID(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.AppendTransaction(ctx, validTransaction(1)); err != nil {
		t.Fatal(err)
	}
	updated := validTransaction(1)
	updated.Description = "more coffee"
	if _, err := s.AppendTransaction(ctx, updated); err != nil {
		t.Fatal(err)
	}

	txs := s.Transactions()
	if len(txs) != 1 {
		t.Fatalf("stored = %d, want 1", len(txs))
	}
	if txs[0].Description != "more coffee" {
		t.Errorf("Description = %q", txs[0].Description)
	}
}
