package kernel_test

import (
	"testing"

	"github.com/atlas-desktop/econsim-kernel/internal/kernel"
)

func TestGlobalStateCloneIsIndependent(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{Macro: kernel.Macro{Inflation: f(0.05)}})
	_ = state.SetMatrixEdge("trade", "USA", "CHN", 0.5)
	_ = state.SetCommodityPrice("oil", 80.0)

	clone := state.Clone()

	*clone.Countries["USA"].Macro.Inflation = 0.9
	clone.TradeMatrix.Set("USA", "CHN", 0.1)
	clone.CommodityPrices["oil"] = 200.0
	clone.T = 99

	if *state.Countries["USA"].Macro.Inflation != 0.05 {
		t.Errorf("mutating clone's inflation leaked into original: %v", *state.Countries["USA"].Macro.Inflation)
	}
	if state.TradeMatrix.Get("USA", "CHN") != 0.5 {
		t.Errorf("mutating clone's trade matrix leaked into original: %v", state.TradeMatrix.Get("USA", "CHN"))
	}
	if state.CommodityPrices["oil"] != 80.0 {
		t.Errorf("mutating clone's commodity price leaked into original: %v", state.CommodityPrices["oil"])
	}
	if state.T != 0 {
		t.Errorf("mutating clone's T leaked into original: %v", state.T)
	}
}

func TestWithCountryRejectsEmptyCode(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	if err := state.WithCountry("", kernel.CountryState{}); err == nil {
		t.Error("expected an error for an empty country code")
	}
}

func TestSetMatrixEdgeRejectsEmptyKeys(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	if err := state.SetMatrixEdge("trade", "", "CHN", 1.0); err == nil {
		t.Error("expected an error for an empty 'from' key")
	}
	if err := state.SetMatrixEdge("trade", "USA", "", 1.0); err == nil {
		t.Error("expected an error for an empty 'to' key")
	}
}

func TestSetMatrixEdgeUnknownLayer(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	if err := state.SetMatrixEdge("nonexistent", "USA", "CHN", 1.0); err == nil {
		t.Error("expected an error for an unknown network layer")
	}
}

func TestMatrixGetMissingEdgeIsZero(t *testing.T) {
	m := kernel.Matrix{}
	if got := m.Get("USA", "CHN"); got != 0 {
		t.Errorf("expected 0 for a missing edge, got %v", got)
	}
	m.Set("USA", "CHN", 0.3)
	if got := m.Get("USA", "CHN"); got != 0.3 {
		t.Errorf("expected 0.3, got %v", got)
	}
}

func TestCommodityPriceRoundTrip(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	if _, ok := state.GetCommodityPrice("oil"); ok {
		t.Error("expected oil price to be absent initially")
	}
	if err := state.SetCommodityPrice("", 1.0); err == nil {
		t.Error("expected an error for an empty commodity key")
	}
	if err := state.SetCommodityPrice("oil", 75.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := state.GetCommodityPrice("oil")
	if !ok || got != 75.5 {
		t.Errorf("expected oil=75.5, got %v ok=%v", got, ok)
	}
}
