package kernel_test

import (
	"testing"

	"github.com/atlas-desktop/econsim-kernel/internal/kernel"
)

func TestEvalConditionEmptyExpressionIsTrue(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	ok, err := kernel.EvalCondition(state, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected empty expression to evaluate true")
	}
	ok, err = kernel.EvalCondition(state, "   ")
	if err != nil || !ok {
		t.Errorf("expected whitespace-only expression to evaluate true, got ok=%v err=%v", ok, err)
	}
}

func TestEvalConditionMissingValueIsFalse(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{})
	ok, err := kernel.EvalCondition(state, `country('USA').macro.inflation > 0.05`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected comparison against a missing value to evaluate false")
	}
}

func TestEvalConditionUnknownCountryIsFalse(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	ok, err := kernel.EvalCondition(state, `country('ZZZ').macro.inflation > 0`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected a reference to an unknown country to evaluate false")
	}
}

func TestEvalConditionComparators(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{
		Macro: kernel.Macro{Inflation: f(0.05)},
	})

	cases := []struct {
		expr string
		want bool
	}{
		{`country('USA').macro.inflation > 0.04`, true},
		{`country('USA').macro.inflation < 0.04`, false},
		{`country('USA').macro.inflation >= 0.05`, true},
		{`country('USA').macro.inflation <= 0.05`, true},
		{`country('USA').macro.inflation == 0.05`, true},
		{`country('USA').macro.inflation != 0.05`, false},
		{`country('USA').macro.inflation ≥ 0.05`, true},
		{`country('USA').macro.inflation ≤ 0.05`, true},
		{`country('USA').macro.inflation ≠ 0.05`, false},
	}
	for _, c := range cases {
		got, err := kernel.EvalCondition(state, c.expr)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", c.expr, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: got %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvalConditionLogicalOperators(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{
		Macro: kernel.Macro{Inflation: f(0.08), PolicyRate: f(0.02)},
	})

	ok, err := kernel.EvalCondition(state, `country('USA').macro.inflation > 0.05 && country('USA').macro.policy_rate < 0.03`)
	if err != nil || !ok {
		t.Errorf("expected AND of two true clauses to be true, got %v err=%v", ok, err)
	}

	ok, err = kernel.EvalCondition(state, `country('USA').macro.inflation > 0.05 || country('USA').macro.policy_rate > 0.03`)
	if err != nil || !ok {
		t.Errorf("expected OR with one true clause to be true, got %v err=%v", ok, err)
	}

	ok, err = kernel.EvalCondition(state, `country('USA').macro.inflation > 0.05 && country('USA').macro.policy_rate > 0.03`)
	if err != nil || ok {
		t.Errorf("expected AND with one false clause to be false, got %v err=%v", ok, err)
	}
}

func TestEvalConditionTGreaterEqual(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	state.T = 5
	ok, err := kernel.EvalCondition(state, "t >= 5")
	if err != nil || !ok {
		t.Errorf("expected t >= 5 to be true at t=5, got %v err=%v", ok, err)
	}
	ok, err = kernel.EvalCondition(state, "t >= 6")
	if err != nil || ok {
		t.Errorf("expected t >= 6 to be false at t=5, got %v err=%v", ok, err)
	}
}

func TestEvalConditionMalformedExpressionErrors(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_, err := kernel.EvalCondition(state, "t >=")
	if err == nil {
		t.Fatal("expected an error for a malformed expression")
	}
}

func TestEvalConditionDateLiteral(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	state.T = 4 // 4*(2026-2025) per the fixed date-to-timestep mapping
	ok, err := kernel.EvalCondition(state, "t >= 2026-01-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected t >= 2026-01-01 to hold at t=4")
	}
}
