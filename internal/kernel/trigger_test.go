package kernel_test

import (
	"testing"

	"github.com/atlas-desktop/econsim-kernel/internal/kernel"
)

func TestProcessTriggersOnceOnlyFiresOnce(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{})
	triggers := []kernel.Trigger{
		{Name: "once_trigger", When: "", Once: true, Patches: []kernel.PolicyPatch{
			{Path: "rules.regimes.monetary.phi_pi", Op: "add", Value: 1.0},
		}},
	}
	firedSet := map[string]bool{}
	fireTurnMap := map[string]int{}

	var totalFires int
	for i := 0; i < 3; i++ {
		result := kernel.Step(state, triggers, firedSet, fireTurnMap)
		for _, n := range result.NewlyFiredNames {
			if n == "once_trigger" {
				totalFires++
			}
		}
		state = result.NewState
		firedSet = result.FiredSet
		fireTurnMap = result.FireTurnMap
	}
	if totalFires != 1 {
		t.Errorf("expected once_trigger to fire exactly once across 3 steps, fired %d times", totalFires)
	}
	if !firedSet["once_trigger"] {
		t.Error("expected once_trigger to remain recorded in the fired set")
	}
}

func TestProcessTriggersRepeatableFiresEveryMatchingStep(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{})
	triggers := []kernel.Trigger{
		{Name: "repeatable", When: "", Once: false, Patches: []kernel.PolicyPatch{
			{Path: "rules.regimes.monetary.phi_pi", Op: "add", Value: 1.0},
		}},
	}
	firedSet := map[string]bool{}
	fireTurnMap := map[string]int{}

	var totalFires int
	for i := 0; i < 3; i++ {
		result := kernel.Step(state, triggers, firedSet, fireTurnMap)
		for _, n := range result.NewlyFiredNames {
			if n == "repeatable" {
				totalFires++
			}
		}
		state = result.NewState
		firedSet = result.FiredSet
		fireTurnMap = result.FireTurnMap
	}
	if totalFires != 3 {
		t.Errorf("expected repeatable trigger to fire on every step (3), fired %d times", totalFires)
	}
}

func TestProcessTriggersConditionEvaluatedAtProspectiveState(t *testing.T) {
	// "t >= 1" should never match at the live state (t=0) but should match
	// the prospective t+1 state the trigger evaluator actually uses.
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{})
	triggers := []kernel.Trigger{
		{Name: "at_one", When: "t >= 1", Once: true},
	}
	result := kernel.Step(state, triggers, map[string]bool{}, map[string]int{})
	found := false
	for _, n := range result.NewlyFiredNames {
		if n == "at_one" {
			found = true
		}
	}
	if !found {
		t.Error("expected at_one to fire on the first step, since its condition is evaluated against t+1")
	}
}

func TestProcessTriggersConditionErrorIsNonFatal(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{})
	triggers := []kernel.Trigger{
		{Name: "broken", When: "t >=", Once: true},
	}
	result := kernel.Step(state, triggers, map[string]bool{}, map[string]int{})
	if len(result.Audit.Errors) == 0 {
		t.Error("expected a non-fatal error for a malformed trigger condition")
	}
	for _, n := range result.NewlyFiredNames {
		if n == "broken" {
			t.Error("expected a trigger with a malformed condition to never fire")
		}
	}
	if result.NewState.T != 1 {
		t.Errorf("expected the step to still advance despite the condition error, got t=%d", result.NewState.T)
	}
}

func TestExpireTriggersIgnoresNonExpiring(t *testing.T) {
	triggers := []kernel.Trigger{{Name: "permanent", ExpiresAfterTurns: 0}}
	fireTurnMap := map[string]int{"permanent": 1}
	expired := kernel.ExpireTriggers(triggers, fireTurnMap, 100)
	if len(expired) != 0 {
		t.Errorf("expected no expirations for a trigger with ExpiresAfterTurns=0, got %v", expired)
	}
}

func TestExpireTriggersExactBoundary(t *testing.T) {
	triggers := []kernel.Trigger{{Name: "sunset", ExpiresAfterTurns: 2}}
	fireTurnMap := map[string]int{"sunset": 5}
	if expired := kernel.ExpireTriggers(triggers, fireTurnMap, 6); len(expired) != 0 {
		t.Errorf("expected no expiration one turn before the boundary, got %v", expired)
	}
	if expired := kernel.ExpireTriggers(triggers, fireTurnMap, 7); len(expired) != 1 || expired[0] != "sunset" {
		t.Errorf("expected expiration exactly at the boundary turn, got %v", expired)
	}
}

func TestNetworkRewriteEnergyLayerTargetsEnergyNetwork(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{})
	triggers := []kernel.Trigger{
		{Name: "energy_cutoff", Once: true, NetworkRewrites: []kernel.NetworkRewrite{
			{Layer: "energy", Edits: []kernel.NetworkEdit{{From: "RUS", To: "EU27", Weight: 0.0}}},
		}},
	}
	result := kernel.Step(state, triggers, map[string]bool{}, map[string]int{})
	if got := result.NewState.EnergyNetwork.Get("RUS", "EU27"); got != 0.0 {
		t.Errorf("expected energy_network[RUS][EU27]=0.0, got %v", got)
	}
	foundPath := false
	for _, c := range result.Audit.Changes {
		if c.FieldPath == "energy_matrix.RUS.EU27" {
			foundPath = true
		}
	}
	if !foundPath {
		t.Error("expected the conventional energy_matrix.<from>.<to> audit path to be recorded")
	}
}

func TestNetworkRewriteRejectsEmptyEndpoints(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{})
	triggers := []kernel.Trigger{
		{Name: "bad_edit", Once: true, NetworkRewrites: []kernel.NetworkRewrite{
			{Layer: "trade", Edits: []kernel.NetworkEdit{{From: "", To: "CHN", Weight: 1.0}}},
		}},
	}
	result := kernel.Step(state, triggers, map[string]bool{}, map[string]int{})
	if len(result.Audit.Errors) == 0 {
		t.Error("expected an error for a network edit with an empty endpoint")
	}
}

func TestEventInjectAppendsPendingEvent(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{})
	triggers := []kernel.Trigger{
		{Name: "news", Once: true, Events: []kernel.EventInject{
			{Kind: "headline", Payload: map[string]any{"text": "shock"}},
		}},
	}
	result := kernel.Step(state, triggers, map[string]bool{}, map[string]int{})
	if len(result.NewState.Events.Pending) != 1 {
		t.Fatalf("expected exactly one pending event, got %d", len(result.NewState.Events.Pending))
	}
	ev := result.NewState.Events.Pending[0]
	if ev.Kind != "headline" || ev.Status != "pending" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestReducerOverrideInstallsFxPeg(t *testing.T) {
	state := kernel.NewGlobalState("USD")
	_ = state.WithCountry("USA", kernel.CountryState{
		Macro:    kernel.Macro{PolicyRate: f(0.02)},
		External: kernel.External{FxRate: f(1.2)},
	})
	triggers := []kernel.Trigger{
		{Name: "switch_regime", Once: true, Overrides: []kernel.ReducerOverride{
			{Target: "monetary_policy", ImplName: "fx_peg"},
		}},
	}
	result := kernel.Step(state, triggers, map[string]bool{}, map[string]int{})
	found := false
	for _, c := range result.Audit.Changes {
		if c.FieldPath == "countries.USA.macro.policy_rate" {
			if details, ok := c.CalculationDetails.(map[string]any); ok {
				if rule, ok := details["rule"]; ok && rule == "fx_peg" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected the fx_peg implementation to be used for policy_rate after the override")
	}
}
