package round_test

import (
	"testing"

	"bj-service/internal/service/round"
)

func TestReconcileMintsFreshIdentities(t *testing.T) {
	out := round.Reconcile(nil, []int{5, 18})
	if len(out) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(out))
	}
	if out[0].ID == "" || out[1].ID == "" || out[0].ID == out[1].ID {
		t.Fatalf("identities must be distinct and non-empty: %+v", out)
	}
	if out[0].CardID != 5 || out[1].CardID != 18 {
		t.Fatalf("card ids must be adopted verbatim: %+v", out)
	}
}

func TestReconcilePreservesUnchangedPositions(t *testing.T) {
	hand := round.Reconcile(nil, []int{5, 18})
	grown := round.Reconcile(hand, []int{5, 18, 44})

	if len(grown) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(grown))
	}
	if grown[0].ID != hand[0].ID || grown[1].ID != hand[1].ID {
		t.Fatalf("unchanged positions must keep their identity")
	}
	if grown[2].ID == hand[0].ID || grown[2].ID == hand[1].ID {
		t.Fatalf("new card must get a fresh identity")
	}
}

func TestReconcileIdempotent(t *testing.T) {
	hand := round.Reconcile(nil, []int{0, 12, 7})
	again := round.Reconcile(hand, []int{0, 12, 7})

	for i := range hand {
		if again[i] != hand[i] {
			t.Fatalf("reconciling the same sequence twice churned position %d", i)
		}
	}
}

func TestReconcileRemintsOnValueChange(t *testing.T) {
	hand := round.Reconcile(nil, []int{99, 30})
	revealed := round.Reconcile(hand, []int{20, 30})

	if revealed[0].ID == hand[0].ID {
		t.Fatalf("changed card id must mint a new identity")
	}
	if revealed[0].CardID != 20 {
		t.Fatalf("revealed card id not adopted: %+v", revealed[0])
	}
	if revealed[1].ID != hand[1].ID {
		t.Fatalf("untouched position must keep its identity")
	}
}

func TestReconcileMatchesAuthoritativeLength(t *testing.T) {
	hand := round.Reconcile(nil, []int{1, 2, 3})
	out := round.Reconcile(hand, []int{1, 2, 3, 4, 5})
	if len(out) != 5 {
		t.Fatalf("output length must equal authoritative length, got %d", len(out))
	}
}
