package engine_test

import (
	"testing"
	"time"

	"github.com/covara/agreement-engine/engine"
)

func allocatorAt(year int, month time.Month) *engine.Allocator {
	return &engine.Allocator{
		Now: func() time.Time {
			return time.Date(year, month, 15, 10, 0, 0, 0, time.UTC)
		},
	}
}

func TestPropose_QuoteNumber_2025(t *testing.T) {
	// GIVEN: The standard quote format and counter 7 in year 2025
	// WHEN: Proposing
	// THEN: Q-2025-0007, and the consumed counter value is echoed back

	alloc := allocatorAt(2025, time.June)
	got := alloc.Propose("Q-{YYYY}-{seq:04d}", 7, nil)

	if got.ProposedNumber != "Q-2025-0007" {
		t.Errorf("expected Q-2025-0007, got %q", got.ProposedNumber)
	}
	if got.CounterValueConsumed != 7 {
		t.Errorf("expected consumed counter 7, got %d", got.CounterValueConsumed)
	}
}

func TestPropose_ZeroPadding(t *testing.T) {
	alloc := allocatorAt(2025, time.June)

	cases := []struct {
		counter int64
		want    string
	}{
		{1, "Q-2025-0001"},
		{42, "Q-2025-0042"},
		{9999, "Q-2025-9999"},
		{12345, "Q-2025-12345"}, // overflow widens, never truncates
	}
	for _, c := range cases {
		got := alloc.Propose("Q-{YYYY}-{seq:04d}", c.counter, nil)
		if got.ProposedNumber != c.want {
			t.Errorf("counter %d: expected %q, got %q", c.counter, c.want, got.ProposedNumber)
		}
	}
}

func TestPropose_AllTokens(t *testing.T) {
	alloc := allocatorAt(2026, time.March)
	got := alloc.Propose("A{YY}{MM}-{seq}", 3, nil)

	if got.ProposedNumber != "A2603-3" {
		t.Errorf("expected A2603-3, got %q", got.ProposedNumber)
	}
}

func TestPropose_ContextVars(t *testing.T) {
	// GIVEN: A format using a caller-supplied token
	// WHEN: Proposing with and without the var
	// THEN: Present vars substitute; unknown tokens pass through literally

	alloc := allocatorAt(2025, time.June)

	got := alloc.Propose("{office}-{seq:03d}", 8, map[string]string{"office": "STO"})
	if got.ProposedNumber != "STO-008" {
		t.Errorf("expected STO-008, got %q", got.ProposedNumber)
	}

	got = alloc.Propose("{office}-{seq:03d}", 8, nil)
	if got.ProposedNumber != "{office}-008" {
		t.Errorf("unknown token should stay literal, got %q", got.ProposedNumber)
	}
}

func TestPropose_Deterministic(t *testing.T) {
	// Safe to compute speculatively: same input, same proposal.
	alloc := allocatorAt(2025, time.June)
	a := alloc.Propose("SLA-{YYYY}-{seq:04d}", 19, nil)
	b := alloc.Propose("SLA-{YYYY}-{seq:04d}", 19, nil)
	if a != b {
		t.Errorf("propose is not deterministic: %+v vs %+v", a, b)
	}
}

func TestValidateFormat(t *testing.T) {
	if err := engine.ValidateFormat("Q-{YYYY}-{seq:04d}"); err != nil {
		t.Errorf("valid format rejected: %v", err)
	}
	err := engine.ValidateFormat("Q-{YYYY}")
	if err == nil {
		t.Fatal("format without a sequence token must be rejected")
	}
	if engine.KindOf(err) != engine.KindConfiguration {
		t.Errorf("expected a configuration error, got %v", engine.KindOf(err))
	}
}
