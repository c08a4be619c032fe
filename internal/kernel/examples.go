package kernel

// ExampleTriggers returns a library of illustrative trigger definitions
// covering each action kind: policy patches, reducer overrides, network
// rewrites, and event injection. They are not loaded by any scenario
// automatically; a host wires the ones it wants into a run.
func ExampleTriggers() []Trigger {
	return []Trigger{
		{
			Name:              "us_tariff_shock",
			Description:       "Implement US tariff increases on Chinese goods",
			When:              "t>=4",
			Once:              true,
			ExpiresAfterTurns: 12,
			Patches: []PolicyPatch{
				{Path: "rules.regimes.trade.tariff_multiplier", Op: "set", Value: 2.0},
			},
		},
		{
			Name:        "wealth_tax",
			Description: "Implement progressive wealth tax once debt exceeds GDP",
			When:        "country('USA').macro.debt_gdp>1.0",
			Once:        true,
			Patches: []PolicyPatch{
				{Path: "rules.regimes.fiscal.wealth_tax_rate", Op: "set", Value: 0.02},
			},
		},
		{
			Name:              "national_service",
			Description:       "Mandatory national service once unemployment exceeds 8%",
			When:              "country('USA').macro.unemployment>0.08",
			Once:              true,
			ExpiresAfterTurns: 8,
			Patches: []PolicyPatch{
				{Path: "rules.regimes.labor.national_service_pct", Op: "set", Value: 5.0},
			},
		},
		{
			Name:        "conflict_escalation",
			Description: "Military mobilization in response to sustained conflict",
			When:        "country('USA').security.conflict_intensity>0.5",
			Once:        false,
			Patches: []PolicyPatch{
				{Path: "rules.regimes.security.mobilization_intensity", Op: "add", Value: 0.5},
			},
			Events: []EventInject{
				{Kind: "mobilization", Payload: map[string]any{"country": "USA", "intensity": 0.5, "reason": "conflict_response"}},
			},
		},
		{
			Name:              "switch_to_fx_peg",
			Description:       "Switch from Taylor rule to FX peg during a large depreciation",
			When:              "country('USA').external.fx_rate>1.5",
			Once:              true,
			ExpiresAfterTurns: 4,
			Overrides: []ReducerOverride{
				{Target: "monetary_policy", ImplName: "fx_peg"},
			},
			Patches: []PolicyPatch{
				{Path: "rules.regimes.monetary.peg_target", Op: "set", Value: 1.0},
				{Path: "rules.regimes.monetary.peg_strength", Op: "set", Value: 3.0},
			},
		},
		{
			Name:        "trade_war_sanctions",
			Description: "Trade and sanctions network effects following a tariff shock",
			When:        "t>=4",
			Once:        true,
			NetworkRewrites: []NetworkRewrite{
				{Layer: "trade", Edits: []NetworkEdit{
					{From: "USA", To: "CHN", Weight: 0.5},
					{From: "CHN", To: "USA", Weight: 0.5},
				}},
				{Layer: "sanctions", Edits: []NetworkEdit{
					{From: "USA", To: "CHN", Weight: 0.3},
					{From: "CHN", To: "USA", Weight: 0.3},
				}},
			},
		},
	}
}
