// Package scenario defines the YAML scenario-file schema consumed by
// cmd/simkernel and converts it into the kernel's typed world-state and
// trigger list. It recovers the scenario format of
// original_source/scenarios/runner.py (the httpx/API-calling parts of that
// file are dropped — out of scope per spec §1's "HTTP/API surface" and
// "persistence" Non-goals). Defaults for fields a scenario file omits are
// registered with github.com/spf13/viper, the way cmd/simkernel also
// registers its CLI-flag defaults, and applied wherever the parsed value is
// still the zero value.
package scenario

import (
	"fmt"
	"os"

	"github.com/atlas-desktop/econsim-kernel/internal/kernel"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// CountryDef is one country's initial values in a scenario file. Every
// slice mirrors kernel.CountryState's fields by name; omitted fields stay
// nullable exactly as the kernel model requires.
type CountryDef struct {
	Macro     map[string]float64 `yaml:"macro"`
	External  map[string]float64 `yaml:"external"`
	Finance   map[string]float64 `yaml:"finance"`
	Trade     map[string]float64 `yaml:"trade"`
	Energy    map[string]float64 `yaml:"energy"`
	Security  map[string]float64 `yaml:"security"`
	Sentiment map[string]float64 `yaml:"sentiment"`
}

// RulesDef is the scenario file's rules block.
type RulesDef struct {
	RngSeed int64                     `yaml:"rng_seed"`
	Regimes map[string]map[string]any `yaml:"regimes"`
}

// PatchDef mirrors kernel.PolicyPatch for YAML decoding.
type PatchDef struct {
	Path  string `yaml:"path"`
	Op    string `yaml:"op"`
	Value any    `yaml:"value"`
}

// OverrideDef mirrors kernel.ReducerOverride for YAML decoding.
type OverrideDef struct {
	Target   string `yaml:"target"`
	ImplName string `yaml:"impl_name"`
}

// NetworkEditDef mirrors kernel.NetworkEdit for YAML decoding.
type NetworkEditDef struct {
	From   string  `yaml:"from"`
	To     string  `yaml:"to"`
	Weight float64 `yaml:"weight"`
}

// NetworkRewriteDef mirrors kernel.NetworkRewrite for YAML decoding.
type NetworkRewriteDef struct {
	Layer string           `yaml:"layer"`
	Edits []NetworkEditDef `yaml:"edits"`
}

// EventInjectDef mirrors kernel.EventInject for YAML decoding.
type EventInjectDef struct {
	Kind    string         `yaml:"kind"`
	Payload map[string]any `yaml:"payload"`
}

// TriggerDef is one scenario-file trigger declaration.
type TriggerDef struct {
	Name              string              `yaml:"name"`
	Description       string              `yaml:"description"`
	When              string              `yaml:"when"`
	Once              bool                `yaml:"once"`
	ExpiresAfterTurns int                 `yaml:"expires_after_turns"`
	Patches           []PatchDef          `yaml:"patches"`
	Overrides         []OverrideDef       `yaml:"overrides"`
	NetworkRewrites   []NetworkRewriteDef `yaml:"network_rewrites"`
	Events            []EventInjectDef    `yaml:"events"`
}

// Definition is the top-level scenario file schema.
type Definition struct {
	Name            string                         `yaml:"name"`
	BaseCcy         string                         `yaml:"base_ccy"`
	Steps           int                            `yaml:"steps"`
	Countries       map[string]CountryDef          `yaml:"countries"`
	TradeMatrix     map[string]map[string]float64  `yaml:"trade_matrix"`
	InterbankMatrix map[string]map[string]float64  `yaml:"interbank_matrix"`
	AllianceGraph   map[string]map[string]float64  `yaml:"alliance_graph"`
	Sanctions       map[string]map[string]float64  `yaml:"sanctions"`
	CommodityPrices map[string]float64             `yaml:"commodity_prices"`
	Rules           RulesDef                       `yaml:"rules"`
	Triggers        []TriggerDef                   `yaml:"triggers"`
}

// Load reads and parses a scenario YAML file at path. Field defaults not
// present in the file (steps, rng_seed) are filled in via viper so a
// minimal scenario file stays valid, matching the layered-default pattern
// cmd/simkernel also applies to CLI flags.
func Load(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse scenario file: %w", err)
	}

	v := viper.New()
	v.SetDefault("steps", 10)
	v.SetDefault("base_ccy", "USD")
	v.SetDefault("rules.rng_seed", 42)
	if def.Steps == 0 {
		def.Steps = v.GetInt("steps")
	}
	if def.BaseCcy == "" {
		def.BaseCcy = v.GetString("base_ccy")
	}
	if def.Rules.RngSeed == 0 {
		def.Rules.RngSeed = v.GetInt64("rules.rng_seed")
	}
	return &def, nil
}

// Build converts the scenario definition into a fresh kernel.GlobalState
// and its trigger list, ready for a runner.Runner to advance.
func (d *Definition) Build() (*kernel.GlobalState, []kernel.Trigger, error) {
	state := kernel.NewGlobalState(d.BaseCcy)
	state.Rules.RngSeed = d.Rules.RngSeed
	for regime, params := range d.Rules.Regimes {
		bag, err := regimeBag(&state.Rules.Regimes, regime)
		if err != nil {
			return nil, nil, err
		}
		for k, v := range params {
			bag[k] = v
		}
	}

	for code, def := range d.Countries {
		cs, err := def.toCountryState()
		if err != nil {
			return nil, nil, fmt.Errorf("country %s: %w", code, err)
		}
		if err := state.WithCountry(code, cs); err != nil {
			return nil, nil, fmt.Errorf("country %s: %w", code, err)
		}
	}

	for layer, rows := range map[string]map[string]map[string]float64{
		"trade":      d.TradeMatrix,
		"interbank":  d.InterbankMatrix,
		"alliances":  d.AllianceGraph,
		"sanctions":  d.Sanctions,
	} {
		for from, edges := range rows {
			for to, weight := range edges {
				if err := state.SetMatrixEdge(layer, from, to, weight); err != nil {
					return nil, nil, fmt.Errorf("%s_matrix.%s.%s: %w", layer, from, to, err)
				}
			}
		}
	}

	for commodity, price := range d.CommodityPrices {
		if err := state.SetCommodityPrice(commodity, price); err != nil {
			return nil, nil, fmt.Errorf("commodity_prices.%s: %w", commodity, err)
		}
	}

	triggers := make([]kernel.Trigger, 0, len(d.Triggers))
	for _, t := range d.Triggers {
		triggers = append(triggers, t.toTrigger())
	}

	return state, triggers, nil
}

func regimeBag(r *kernel.RegimeParams, name string) (map[string]any, error) {
	switch name {
	case "monetary":
		return r.Monetary, nil
	case "fx":
		return r.Fx, nil
	case "fiscal":
		return r.Fiscal, nil
	case "trade":
		return r.Trade, nil
	case "security":
		return r.Security, nil
	case "labor":
		return r.Labor, nil
	case "sentiment":
		return r.Sentiment, nil
	default:
		return nil, fmt.Errorf("unknown regime %q", name)
	}
}

func (c CountryDef) toCountryState() (kernel.CountryState, error) {
	cs := kernel.CountryState{}
	assign := map[string]map[string]float64{
		"macro": c.Macro, "external": c.External, "finance": c.Finance,
		"trade": c.Trade, "energy": c.Energy, "security": c.Security, "sentiment": c.Sentiment,
	}
	for slice, fields := range assign {
		for field, value := range fields {
			v := value
			if err := kernel.SetCountryField(&cs, slice, field, v); err != nil {
				return cs, err
			}
		}
	}
	return cs, nil
}

func (t TriggerDef) toTrigger() kernel.Trigger {
	patches := make([]kernel.PolicyPatch, 0, len(t.Patches))
	for _, p := range t.Patches {
		patches = append(patches, kernel.PolicyPatch{Path: p.Path, Op: p.Op, Value: p.Value})
	}
	overrides := make([]kernel.ReducerOverride, 0, len(t.Overrides))
	for _, o := range t.Overrides {
		overrides = append(overrides, kernel.ReducerOverride{Target: o.Target, ImplName: o.ImplName})
	}
	rewrites := make([]kernel.NetworkRewrite, 0, len(t.NetworkRewrites))
	for _, nr := range t.NetworkRewrites {
		edits := make([]kernel.NetworkEdit, 0, len(nr.Edits))
		for _, e := range nr.Edits {
			edits = append(edits, kernel.NetworkEdit{From: e.From, To: e.To, Weight: e.Weight})
		}
		rewrites = append(rewrites, kernel.NetworkRewrite{Layer: nr.Layer, Edits: edits})
	}
	events := make([]kernel.EventInject, 0, len(t.Events))
	for _, e := range t.Events {
		events = append(events, kernel.EventInject{Kind: e.Kind, Payload: e.Payload})
	}
	return kernel.Trigger{
		Name:              t.Name,
		Description:       t.Description,
		When:              t.When,
		Once:              t.Once,
		ExpiresAfterTurns: t.ExpiresAfterTurns,
		Patches:           patches,
		Overrides:         overrides,
		NetworkRewrites:   rewrites,
		Events:            events,
	}
}
