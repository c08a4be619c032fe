// Package kernel implements the deterministic economic scenario simulation
// kernel: the typed world-state model, the trigger evaluation/application
// engine, the reducer pipeline, and the per-step audit journal.
package kernel

import "sort"

// Macro holds macroeconomic indicators for a country. Every field is
// nullable; nullness means "unknown", distinct from zero.
type Macro struct {
	Gdp             *float64 `json:"gdp,omitempty"`
	PotentialGdp    *float64 `json:"potential_gdp,omitempty"`
	Inflation       *float64 `json:"inflation,omitempty"`
	Unemployment    *float64 `json:"unemployment,omitempty"`
	OutputGap       *float64 `json:"output_gap,omitempty"`
	PrimaryBalance  *float64 `json:"primary_balance,omitempty"`
	DebtGdp         *float64 `json:"debt_gdp,omitempty"`
	NeutralRate     *float64 `json:"neutral_rate,omitempty"`
	PolicyRate      *float64 `json:"policy_rate,omitempty"`
	InflationTarget *float64 `json:"inflation_target,omitempty"`
	Sfa             *float64 `json:"sfa,omitempty"`
}

// External holds external-sector indicators for a country.
type External struct {
	FxRate                *float64 `json:"fx_rate,omitempty"`
	ReservesUsd           *float64 `json:"reserves_usd,omitempty"`
	CurrentAccountGdp     *float64 `json:"current_account_gdp,omitempty"`
	NetErrorsOmissionsGdp *float64 `json:"net_errors_omissions_gdp,omitempty"`
}

// Finance holds financial-sector indicators for a country.
type Finance struct {
	SovereignYield *float64 `json:"sovereign_yield,omitempty"`
	CreditSpread   *float64 `json:"credit_spread,omitempty"`
	BankTier1Ratio *float64 `json:"bank_tier1_ratio,omitempty"`
	LeverageTarget *float64 `json:"leverage_target,omitempty"`
}

// Trade holds trade-sector indicators for a country.
type Trade struct {
	ExportsGdp    *float64 `json:"exports_gdp,omitempty"`
	ImportsGdp    *float64 `json:"imports_gdp,omitempty"`
	TariffMfnAvg  *float64 `json:"tariff_mfn_avg,omitempty"`
	NtmIndex      *float64 `json:"ntm_index,omitempty"`
	TermsOfTrade  *float64 `json:"terms_of_trade,omitempty"`
}

// Energy holds energy/food-sector indicators for a country.
type Energy struct {
	EnergyStockToUse *float64 `json:"energy_stock_to_use,omitempty"`
	FoodPriceIndex   *float64 `json:"food_price_index,omitempty"`
	EnergyPriceIndex *float64 `json:"energy_price_index,omitempty"`
}

// Security holds defense/security indicators for a country.
type Security struct {
	MilexGdp          *float64 `json:"milex_gdp,omitempty"`
	Personnel         *int64   `json:"personnel,omitempty"`
	ConflictIntensity *float64 `json:"conflict_intensity,omitempty"`
}

// Sentiment holds sentiment/social indicators for a country.
type Sentiment struct {
	GdeltTone      *float64 `json:"gdelt_tone,omitempty"`
	TrendsSalience *float64 `json:"trends_salience,omitempty"`
	PolicyPressure *float64 `json:"policy_pressure,omitempty"`
	Approval       *float64 `json:"approval,omitempty"`
}

// CountryState is the complete state for a single country across all
// economic domains.
type CountryState struct {
	Code      string    `json:"-"`
	Macro     Macro     `json:"macro"`
	External  External  `json:"external"`
	Finance   Finance   `json:"finance"`
	Trade     Trade     `json:"trade"`
	Energy    Energy    `json:"energy"`
	Security  Security  `json:"security"`
	Sentiment Sentiment `json:"sentiment"`
}

// Matrix is a sparse from->to->weight network layer. A missing edge is the
// additive identity (0); writes create intermediate rows as needed.
type Matrix map[string]map[string]float64

// Get returns the edge weight, or 0 if absent.
func (m Matrix) Get(from, to string) float64 {
	row, ok := m[from]
	if !ok {
		return 0
	}
	return row[to]
}

// Set writes an edge weight, creating the row if it does not exist.
func (m Matrix) Set(from, to string, weight float64) {
	row, ok := m[from]
	if !ok {
		row = make(map[string]float64)
		m[from] = row
	}
	row[to] = weight
}

// RegimeParams is a collection of named, free-form policy parameter bags.
// Each bag is a map-typed path engine node: unknown keys are created on
// write, read of a missing key returns null.
type RegimeParams struct {
	Monetary  map[string]any `json:"monetary"`
	Fx        map[string]any `json:"fx"`
	Fiscal    map[string]any `json:"fiscal"`
	Trade     map[string]any `json:"trade"`
	Security  map[string]any `json:"security"`
	Labor     map[string]any `json:"labor"`
	Sentiment map[string]any `json:"sentiment"`
}

// NewRegimeParams returns a RegimeParams with every bag initialized empty.
func NewRegimeParams() RegimeParams {
	return RegimeParams{
		Monetary:  map[string]any{},
		Fx:        map[string]any{},
		Fiscal:    map[string]any{},
		Trade:     map[string]any{},
		Security:  map[string]any{},
		Labor:     map[string]any{},
		Sentiment: map[string]any{},
	}
}

// SimulationRules carries regime parameters, the RNG seed, reducer
// implementation overrides installed by triggers, and optional invariant
// flags.
type SimulationRules struct {
	Regimes          RegimeParams      `json:"regimes"`
	RngSeed          int64             `json:"rng_seed"`
	ReducerOverrides map[string]string `json:"reducer_overrides,omitempty"`
	Invariants       map[string]bool   `json:"invariants,omitempty"`
}

// NewSimulationRules returns a SimulationRules with sensible defaults.
func NewSimulationRules() SimulationRules {
	return SimulationRules{
		Regimes:          NewRegimeParams(),
		RngSeed:          42,
		ReducerOverrides: map[string]string{},
		Invariants:       map[string]bool{},
	}
}

// Event is a single injected or processed event.
type Event struct {
	Kind              string         `json:"kind"`
	Payload           map[string]any `json:"payload,omitempty"`
	InjectedAtTimestep int           `json:"injected_at_timestep"`
	Status            string         `json:"status"`
}

// EventQueue holds pending and processed events in insertion order. No
// reducer in the fixed sequence consumes pending events; they remain
// available for future event reducers.
type EventQueue struct {
	Pending   []Event `json:"pending"`
	Processed []Event `json:"processed"`
}

// GlobalState is the aggregate root of one simulation turn.
type GlobalState struct {
	T               int                `json:"t"`
	BaseCcy         string             `json:"base_ccy"`
	Countries       map[string]*CountryState `json:"countries"`
	TradeMatrix     Matrix             `json:"trade_matrix"`
	InterbankMatrix Matrix             `json:"interbank_matrix"`
	AllianceGraph   Matrix             `json:"alliance_graph"`
	Sanctions       Matrix             `json:"sanctions"`
	IoCoefficients  map[string]map[string]float64 `json:"io_coefficients"`
	// EnergyNetwork is the energy_network sub-layer of io_coefficients: a
	// from->to matrix of energy-supply weights, addressed by network
	// rewrites via the "energy" layer name and by path
	// "io_coefficients.energy_network.<from>.<to>".
	EnergyNetwork   Matrix             `json:"energy_network,omitempty"`
	CommodityPrices map[string]float64 `json:"commodity_prices"`
	Rules           SimulationRules    `json:"rules"`
	Events          EventQueue         `json:"events"`
}

// NewGlobalState returns an empty, zeroed GlobalState ready for countries
// to be added.
func NewGlobalState(baseCcy string) *GlobalState {
	return &GlobalState{
		T:               0,
		BaseCcy:         baseCcy,
		Countries:       map[string]*CountryState{},
		TradeMatrix:     Matrix{},
		InterbankMatrix: Matrix{},
		AllianceGraph:   Matrix{},
		Sanctions:       Matrix{},
		IoCoefficients:  map[string]map[string]float64{},
		EnergyNetwork:   Matrix{},
		CommodityPrices: map[string]float64{},
		Rules:           NewSimulationRules(),
		Events:          EventQueue{},
	}
}

// WithCountry adds or replaces a country's state. code must be non-empty.
func (g *GlobalState) WithCountry(code string, cs CountryState) error {
	if code == "" {
		return ErrEmptyKey
	}
	cs.Code = code
	g.Countries[code] = &cs
	return nil
}

// SetMatrixEdge writes an edge weight on the named network layer.
func (g *GlobalState) SetMatrixEdge(layer, from, to string, weight float64) error {
	if from == "" || to == "" {
		return ErrEmptyKey
	}
	m, err := g.matrixByLayer(layer)
	if err != nil {
		return err
	}
	m.Set(from, to, weight)
	return nil
}

func (g *GlobalState) matrixByLayer(layer string) (Matrix, error) {
	switch layer {
	case "trade":
		return g.TradeMatrix, nil
	case "interbank":
		return g.InterbankMatrix, nil
	case "alliances":
		return g.AllianceGraph, nil
	case "sanctions":
		return g.Sanctions, nil
	default:
		return nil, ErrUnknownNetworkLayer
	}
}

// GetCommodityPrice returns a commodity's price and whether it is set.
func (g *GlobalState) GetCommodityPrice(commodity string) (float64, bool) {
	v, ok := g.CommodityPrices[commodity]
	return v, ok
}

// SetCommodityPrice sets a commodity's price. commodity must be non-empty.
func (g *GlobalState) SetCommodityPrice(commodity string, price float64) error {
	if commodity == "" {
		return ErrEmptyKey
	}
	g.CommodityPrices[commodity] = price
	return nil
}

// Clone returns a deep, structurally independent copy of the state. Used
// by the kernel to build the prospective next-turn state for condition
// evaluation without mutating the live state.
func (g *GlobalState) Clone() *GlobalState {
	out := &GlobalState{
		T:               g.T,
		BaseCcy:         g.BaseCcy,
		Countries:       make(map[string]*CountryState, len(g.Countries)),
		TradeMatrix:     cloneMatrix(g.TradeMatrix),
		InterbankMatrix: cloneMatrix(g.InterbankMatrix),
		AllianceGraph:   cloneMatrix(g.AllianceGraph),
		Sanctions:       cloneMatrix(g.Sanctions),
		IoCoefficients:  cloneFloatMapMap(g.IoCoefficients),
		EnergyNetwork:   cloneMatrix(g.EnergyNetwork),
		CommodityPrices: cloneFloatMap(g.CommodityPrices),
		Rules:           cloneRules(g.Rules),
		Events: EventQueue{
			Pending:   append([]Event(nil), g.Events.Pending...),
			Processed: append([]Event(nil), g.Events.Processed...),
		},
	}
	for code, cs := range g.Countries {
		c := *cs
		m, e, fi, tr, en, se, sn := &c.Macro, &c.External, &c.Finance, &c.Trade, &c.Energy, &c.Security, &c.Sentiment
		for _, p := range []**float64{
			&m.Gdp, &m.PotentialGdp, &m.Inflation, &m.Unemployment, &m.OutputGap, &m.PrimaryBalance, &m.DebtGdp, &m.NeutralRate, &m.PolicyRate, &m.InflationTarget, &m.Sfa,
			&e.FxRate, &e.ReservesUsd, &e.CurrentAccountGdp, &e.NetErrorsOmissionsGdp, &fi.SovereignYield, &fi.CreditSpread, &fi.BankTier1Ratio, &fi.LeverageTarget,
			&tr.ExportsGdp, &tr.ImportsGdp, &tr.TariffMfnAvg, &tr.NtmIndex, &tr.TermsOfTrade, &en.EnergyStockToUse, &en.FoodPriceIndex, &en.EnergyPriceIndex,
			&se.MilexGdp, &se.ConflictIntensity, &sn.GdeltTone, &sn.TrendsSalience, &sn.PolicyPressure, &sn.Approval} {
			if *p != nil {
				v := **p
				*p = &v
			}
		}
		if se.Personnel != nil {
			n := *se.Personnel
			se.Personnel = &n
		}
		out.Countries[code] = &c
	}
	return out
}

func cloneMatrix(m Matrix) Matrix {
	out := make(Matrix, len(m))
	for k, row := range m {
		out[k] = cloneFloatMap(row)
	}
	return out
}

func cloneFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneFloatMapMap(m map[string]map[string]float64) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(m))
	for k, v := range m {
		out[k] = cloneFloatMap(v)
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneRules(r SimulationRules) SimulationRules {
	overrides := make(map[string]string, len(r.ReducerOverrides))
	for k, v := range r.ReducerOverrides {
		overrides[k] = v
	}
	invariants := make(map[string]bool, len(r.Invariants))
	for k, v := range r.Invariants {
		invariants[k] = v
	}
	return SimulationRules{
		Regimes: RegimeParams{
			Monetary:  cloneAnyMap(r.Regimes.Monetary),
			Fx:        cloneAnyMap(r.Regimes.Fx),
			Fiscal:    cloneAnyMap(r.Regimes.Fiscal),
			Trade:     cloneAnyMap(r.Regimes.Trade),
			Security:  cloneAnyMap(r.Regimes.Security),
			Labor:     cloneAnyMap(r.Regimes.Labor),
			Sentiment: cloneAnyMap(r.Regimes.Sentiment),
		},
		RngSeed:          r.RngSeed,
		ReducerOverrides: overrides,
		Invariants:       invariants,
	}
}

// sortedCountryCodes returns country codes in deterministic (lexicographic)
// order, per spec's stable-traversal requirement.
func sortedCountryCodes(g *GlobalState) []string {
	codes := make([]string, 0, len(g.Countries))
	for code := range g.Countries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
