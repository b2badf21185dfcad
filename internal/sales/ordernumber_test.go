package sales

import "testing"

func TestOrderIDFormat(t *testing.T) {
	cases := []struct {
		seq  int
		want string
	}{
		{1, "ORD-2026-001"},
		{42, "ORD-2026-042"},
		{999, "ORD-2026-999"},
		{1000, "ORD-2026-1000"},
	}
	for _, tc := range cases {
		if got := orderIDFor(2026, tc.seq); got != tc.want {
			t.Fatalf("seq %d: expected %q, got %q", tc.seq, tc.want, got)
		}
	}
}

func TestOrderIDPattern(t *testing.T) {
	if got := orderIDPattern(2026); got != "ORD-2026-%" {
		t.Fatalf("unexpected pattern %q", got)
	}
}

func TestOrderIDSequenceExpr(t *testing.T) {
	// "ORD-2026-" is nine characters; the suffix starts at position ten.
	if got := orderIDSequenceExpr(2026); got != "CAST(SUBSTRING(order_id FROM 10) AS INTEGER)" {
		t.Fatalf("unexpected expression %q", got)
	}
}
