package enums

import "testing"

func TestParseTransactionType(t *testing.T) {
	cases := map[string]TransactionType{"IN": TransactionTypeIn, "out": TransactionTypeOut, " In ": TransactionTypeIn}
	for raw, want := range cases {
		got, err := ParseTransactionType(raw)
		if err != nil {
			t.Fatalf("ParseTransactionType(%q) returned error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseTransactionType(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := ParseTransactionType("TRANSFER"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestTransactionTypeSign(t *testing.T) {
	if TransactionTypeIn.Sign() != 1 || TransactionTypeOut.Sign() != -1 {
		t.Fatalf("unexpected signs")
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("ADMIN"); err != nil || r != RoleAdmin {
		t.Fatalf("expected admin, got %s %v", r, err)
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestOutboxEnums(t *testing.T) {
	if !EventStockMovementRecorded.IsValid() || OutboxEventType("order_created").IsValid() {
		t.Fatalf("unexpected event type validity")
	}
	if _, err := ParseOutboxAggregateType("item"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseOutboxEventType("item_created"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if EventStockMovementRecorded.Aggregate() != AggregateItem || EventItemDeleted.Aggregate() != AggregateItem {
		t.Fatalf("unexpected event aggregate mapping")
	}
	if OutboxEventType("bogus").Aggregate() != "" {
		t.Fatalf("unknown events should have no aggregate")
	}
}
