package kernel

import (
	"fmt"
	"math"
	"sync"
)

// reducerImpl is a pluggable per-country reducer implementation, keyed by
// reducer name and implementation name in the process-wide registry below.
type reducerImpl func(cs *CountryState, regimes *RegimeParams, journal *Journal)

var (
	registryMu sync.RWMutex
	registry   = map[string]map[string]reducerImpl{
		"monetary_policy": {},
	}
)

func init() {
	registerReducerImpl("monetary_policy", "taylor", monetaryPolicyTaylor)
	registerReducerImpl("monetary_policy", "fx_peg", monetaryPolicyFxPeg)
}

// registerReducerImpl installs a named implementation for a reducer slot.
// Safe for concurrent use; intended to be called from init() only, since
// the registry is read-only at simulation runtime.
func registerReducerImpl(reducerName, implName string, impl reducerImpl) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registry[reducerName] == nil {
		registry[reducerName] = map[string]reducerImpl{}
	}
	registry[reducerName][implName] = impl
}

// getReducerImpl looks up a named implementation, falling back to
// defaultImpl when implName is empty.
func getReducerImpl(reducerName, implName, defaultImpl string) (reducerImpl, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	impls, ok := registry[reducerName]
	if !ok || len(impls) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReducerImpl, reducerName)
	}
	if implName == "" {
		implName = defaultImpl
	}
	impl, ok := impls[implName]
	if !ok {
		return nil, fmt.Errorf("%w: %q/%q", ErrUnknownReducerImpl, reducerName, implName)
	}
	return impl, nil
}

// ListReducerImplementations returns the registered implementation names
// for a reducer slot.
func ListReducerImplementations(reducerName string) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry[reducerName]))
	for name := range registry[reducerName] {
		names = append(names, name)
	}
	return names
}

func regimeFloat(bag map[string]any, key string, def float64) float64 {
	v, ok := bag[key]
	if !ok {
		return def
	}
	f, ok := asFloat(v)
	if !ok {
		return def
	}
	return f
}

func regimeString(bag map[string]any, key, def string) string {
	v, ok := bag[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// reducerSequence is the fixed per-step application order, per spec §4.5.2.
var reducerSequence = []string{
	"output_gap_update",
	"inflation_update",
	"monetary_policy",
	"fiscal_update",
	"debt_update",
	"fx_update",
	"trade_update",
	"labor_supply_update",
	"security_update",
	"bop_settlement",
}

// RunReducers applies the fixed reducer sequence to every country, in
// sorted-code order, for one timestep. baseCcyCountry must resolve to a
// country in state.Countries; a missing base country is a fatal
// configuration error and no reducer runs.
func RunReducers(state *GlobalState, baseCcyCountry string, journal *Journal) error {
	base, ok := state.Countries[baseCcyCountry]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBaseCountryMissing, baseCcyCountry)
	}

	codes := sortedCountryCodes(state)
	regimes := &state.Rules.Regimes

	for _, reducerName := range reducerSequence {
		journal.AddReducer(reducerName)
		runReducerSafely(reducerName, journal, func() {
			switch reducerName {
			case "output_gap_update":
				for _, code := range codes {
					outputGapUpdate(state.Countries[code], journal, 0.0)
				}
			case "inflation_update":
				for _, code := range codes {
					inflationUpdate(state.Countries[code], regimes, journal)
				}
			case "monetary_policy":
				implName := state.Rules.ReducerOverrides["monetary_policy"]
				if implName == "" {
					implName = regimeString(regimes.Monetary, "rule", "taylor")
				}
				impl, err := getReducerImpl("monetary_policy", implName, "taylor")
				if err != nil {
					journal.AddError(fmt.Sprintf("Error in monetary_policy: %v", err))
					return
				}
				for _, code := range codes {
					impl(state.Countries[code], regimes, journal)
				}
			case "fiscal_update":
				for _, code := range codes {
					fiscalUpdate(state.Countries[code], regimes, journal)
				}
			case "debt_update":
				for _, code := range codes {
					debtUpdate(state.Countries[code], journal)
				}
			case "fx_update":
				for _, code := range codes {
					if code == baseCcyCountry {
						continue
					}
					fxUpdate(state.Countries[code], base, regimes, journal, 0.0)
				}
			case "trade_update":
				tradeUpdate(state, regimes, journal)
			case "labor_supply_update":
				for _, code := range codes {
					laborSupplyUpdate(state.Countries[code], regimes, journal)
				}
			case "security_update":
				for _, code := range codes {
					securityUpdate(state.Countries[code], regimes, journal)
				}
			case "bop_settlement":
				for _, code := range codes {
					settleBop(state.Countries[code], journal)
				}
			}
		})
	}
	return nil
}

// runReducerSafely recovers a panic from a single reducer stage into a
// non-fatal journal error, matching the per-stage error isolation of the
// original turn-level reducer sequence.
func runReducerSafely(reducerName string, journal *Journal, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			journal.AddError(fmt.Sprintf("Error in %s: panic: %v", reducerName, r))
		}
	}()
	fn()
}

const changeEpsilon = 0.0001

func taylorRule(m *Macro, regimes *RegimeParams) float64 {
	phiPi := regimeFloat(regimes.Monetary, "phi_pi", 0.5)
	phiY := regimeFloat(regimes.Monetary, "phi_y", 0.5)
	if m.Inflation != nil && m.OutputGap != nil && m.NeutralRate != nil {
		rate := *m.NeutralRate + *m.Inflation + phiPi*(*m.Inflation-*m.InflationTarget) + phiY**m.OutputGap
		return math.Max(0.0, rate)
	}
	if m.PolicyRate != nil {
		return *m.PolicyRate
	}
	return 0.02
}

// recordTaylorSkip records the marker change used when a trigger already
// set this country's policy rate earlier in the same step, so the
// baseline rule never clobbers a trigger's override.
func recordTaylorSkip(cs *CountryState, path string, journal *Journal) {
	journal.RecordChange(path+"_taylor_rule_skipped", nil, nil, "monetary_policy", nil, map[string]any{
		"reason":             "Policy rate modified by trigger, Taylor rule skipped",
		"trigger_set_value":  cs.Macro.PolicyRate,
		"triggers_fired":     journal.TriggersFiredSoFar(),
	})
}

// monetaryPolicyTaylor implements the Federal-Reserve-style Taylor rule:
// neutral rate plus an inflation-gap and output-gap response. Skips
// countries whose policy rate was already changed elsewhere this step
// (e.g. by a trigger), so triggers always win over the baseline rule.
func monetaryPolicyTaylor(cs *CountryState, regimes *RegimeParams, journal *Journal) {
	path := "countries." + cs.Code + ".macro.policy_rate"
	if journal.hasChangeAt(path) {
		recordTaylorSkip(cs, path, journal)
		return
	}
	oldRate := 0.02
	if cs.Macro.PolicyRate != nil {
		oldRate = *cs.Macro.PolicyRate
	}
	if cs.Macro.OutputGap == nil {
		zero := 0.0
		cs.Macro.OutputGap = &zero
	}
	if cs.Macro.NeutralRate == nil {
		v := 0.025
		cs.Macro.NeutralRate = &v
	}
	if cs.Macro.InflationTarget == nil {
		v := 0.02
		cs.Macro.InflationTarget = &v
	}
	newRate := taylorRule(&cs.Macro, regimes)
	if math.Abs(oldRate-newRate) > changeEpsilon {
		journal.RecordChange(path, oldRate, newRate, "monetary_policy", nil, map[string]any{
			"rule":             "taylor",
			"phi_pi":           regimeFloat(regimes.Monetary, "phi_pi", 0.5),
			"phi_y":            regimeFloat(regimes.Monetary, "phi_y", 0.5),
			"inflation":        cs.Macro.Inflation,
			"inflation_target": *cs.Macro.InflationTarget,
			"output_gap":       *cs.Macro.OutputGap,
			"neutral_rate":     *cs.Macro.NeutralRate,
		})
		cs.Macro.PolicyRate = &newRate
	}
}

// monetaryPolicyFxPeg defends a fixed exchange-rate target by adjusting
// the policy rate in proportion to the peg deviation.
func monetaryPolicyFxPeg(cs *CountryState, regimes *RegimeParams, journal *Journal) {
	path := "countries." + cs.Code + ".macro.policy_rate"
	target := regimeFloat(regimes.Monetary, "peg_target", 1.0)
	var oldRate *float64 = cs.Macro.PolicyRate
	oldBase := 0.02
	if oldRate != nil {
		oldBase = *oldRate
	}
	var newRate float64
	var adjustment float64
	if cs.External.FxRate != nil {
		deviation := *cs.External.FxRate - target
		strength := regimeFloat(regimes.Monetary, "peg_strength", 2.0)
		adjustment = strength * deviation
		newRate = math.Max(0.0, oldBase+adjustment)
	} else {
		newRate = oldBase
	}
	if oldRate == nil || *oldRate != newRate {
		journal.RecordChange(path, oldRate, newRate, "monetary_policy", nil, map[string]any{
			"rule":       "fx_peg",
			"peg_target": target,
			"fx_rate":    cs.External.FxRate,
			"adjustment": adjustment,
		})
		cs.Macro.PolicyRate = &newRate
	}
}

// outputGapUpdate recomputes output gap from gdp, potential gdp, and an
// optional demand shock percentage.
func outputGapUpdate(cs *CountryState, journal *Journal, demandShockPct float64) {
	if cs.Macro.Gdp == nil || cs.Macro.PotentialGdp == nil {
		return
	}
	oldGap := cs.Macro.OutputGap
	shockAdjustedGdp := *cs.Macro.Gdp * (1.0 + demandShockPct/100.0)
	newGap := (shockAdjustedGdp - *cs.Macro.PotentialGdp) / *cs.Macro.PotentialGdp
	journal.RecordChange("countries."+cs.Code+".macro.output_gap", oldGap, newGap, "output_gap_update", nil, map[string]any{
		"gdp":                *cs.Macro.Gdp,
		"potential_gdp":      *cs.Macro.PotentialGdp,
		"demand_shock_pct":   demandShockPct,
		"shock_adjusted_gdp": shockAdjustedGdp,
	})
	cs.Macro.OutputGap = &newGap
}

// inflationUpdate is a simplified New-Keynesian Phillips curve:
// π_t = β·E[π_{t+1}] + κ·y_t + ε_t, blended gradually toward target.
func inflationUpdate(cs *CountryState, regimes *RegimeParams, journal *Journal) {
	if cs.Macro.Inflation == nil {
		return
	}
	const kappa = 0.1
	const beta = 0.6
	const adjustmentSpeed = 0.1
	oldInflation := *cs.Macro.Inflation
	if cs.Macro.OutputGap == nil {
		zero := 0.0
		cs.Macro.OutputGap = &zero
	}
	if cs.Macro.InflationTarget == nil {
		v := 0.02
		cs.Macro.InflationTarget = &v
	}
	expectedInflation := *cs.Macro.InflationTarget
	supplyShock := regimeFloat(regimes.Monetary, "supply_shock", 0.0)
	target := beta*expectedInflation + kappa**cs.Macro.OutputGap + supplyShock
	newInflation := oldInflation + adjustmentSpeed*(target-oldInflation)
	if math.Abs(oldInflation-newInflation) > changeEpsilon {
		journal.RecordChange("countries."+cs.Code+".macro.inflation", oldInflation, newInflation, "inflation_update", nil, map[string]any{
			"phillips_curve":     "pi_t = beta*E[pi_t+1] + kappa*y_t + epsilon_t",
			"beta":               beta,
			"kappa":              kappa,
			"expected_inflation": expectedInflation,
			"output_gap":         *cs.Macro.OutputGap,
			"supply_shock":       supplyShock,
			"adjustment_speed":   adjustmentSpeed,
		})
		cs.Macro.Inflation = &newInflation
	}
}

// fiscalUpdate applies a wealth tax regime and its behavioral saving
// response to the primary balance.
func fiscalUpdate(cs *CountryState, regimes *RegimeParams, journal *Journal) {
	if cs.Macro.Gdp == nil || cs.Macro.PrimaryBalance == nil {
		return
	}
	oldBalance := *cs.Macro.PrimaryBalance
	wealthTaxRate := regimeFloat(regimes.Fiscal, "wealth_tax_rate", 0.0)
	elasticitySaving := regimeFloat(regimes.Fiscal, "elasticity_saving", -0.3)
	wealthTaxRevenue := wealthTaxRate * 0.1
	savingResponse := elasticitySaving * wealthTaxRate
	newBalance := oldBalance + wealthTaxRevenue + savingResponse*0.2
	journal.RecordChange("countries."+cs.Code+".macro.primary_balance", oldBalance, newBalance, "fiscal_update", nil, map[string]any{
		"wealth_tax_rate":      wealthTaxRate,
		"wealth_tax_revenue":   wealthTaxRevenue,
		"elasticity_saving":    elasticitySaving,
		"saving_response":      savingResponse,
		"behavioral_adjustment": savingResponse * 0.2,
	})
	cs.Macro.PrimaryBalance = &newBalance
}

// debtUpdate applies standard debt-dynamics arithmetic:
// d_t = d_{t-1}*(1+r)/(1+g) - pb_t + sfa_t.
func debtUpdate(cs *CountryState, journal *Journal) {
	if cs.Macro.DebtGdp == nil || cs.Macro.PrimaryBalance == nil || cs.Finance.SovereignYield == nil ||
		cs.Macro.Gdp == nil || cs.Macro.PotentialGdp == nil {
		return
	}
	oldDebt := *cs.Macro.DebtGdp
	inflation := 0.02
	if cs.Macro.Inflation != nil {
		inflation = *cs.Macro.Inflation
	}
	sfa := 0.0
	if cs.Macro.Sfa != nil {
		sfa = *cs.Macro.Sfa
	}
	realInterestRate := *cs.Finance.SovereignYield - inflation
	gdpGrowth := (*cs.Macro.Gdp - *cs.Macro.PotentialGdp) / *cs.Macro.PotentialGdp
	debtServiceRatio := (1 + realInterestRate) / (1 + gdpGrowth)
	newDebt := oldDebt*debtServiceRatio - *cs.Macro.PrimaryBalance + sfa
	journal.RecordChange("countries."+cs.Code+".macro.debt_gdp", oldDebt, newDebt, "debt_update", nil, map[string]any{
		"debt_dynamics_formula": "d_t = d_{t-1}*(1+r)/(1+g) - pb_t + sfa_t",
		"real_interest_rate":    realInterestRate,
		"gdp_growth":            gdpGrowth,
		"debt_service_ratio":    debtServiceRatio,
		"primary_balance":       *cs.Macro.PrimaryBalance,
		"sfa":                   sfa,
	})
	cs.Macro.DebtGdp = &newDebt
}

// fxUpdate applies uncovered interest parity: E[delta s] = r_dom - r_base
// + rho, log-linearly approximated with partial pass-through.
func fxUpdate(dom, base *CountryState, regimes *RegimeParams, journal *Journal, defaultRho float64) {
	if dom.External.FxRate == nil || dom.Macro.PolicyRate == nil || base.Macro.PolicyRate == nil {
		return
	}
	oldFx := *dom.External.FxRate
	rho := regimeFloat(regimes.Fx, "uip_rho_base", defaultRho)
	interestDifferential := *dom.Macro.PolicyRate - *base.Macro.PolicyRate
	expectedDepreciation := interestDifferential + rho
	newFx := oldFx * (1 + expectedDepreciation*0.1)
	journal.RecordChange("countries."+dom.Code+".external.fx_rate", oldFx, newFx, "fx_update", nil, map[string]any{
		"uip_formula":           "E[delta s] = r_domestic - r_foreign + rho",
		"domestic_rate":         *dom.Macro.PolicyRate,
		"foreign_rate":          *base.Macro.PolicyRate,
		"interest_differential": interestDifferential,
		"risk_premium":          rho,
		"expected_depreciation": expectedDepreciation,
	})
	dom.External.FxRate = &newFx
}

// tradeUpdate applies tariff and non-tariff-measure regime shocks to
// every country's trade flows. A global reducer: it reads and writes
// across all countries in one pass rather than per-country.
func tradeUpdate(state *GlobalState, regimes *RegimeParams, journal *Journal) {
	tariffMultiplier := regimeFloat(regimes.Trade, "tariff_multiplier", 1.0)
	ntmShock := regimeFloat(regimes.Trade, "ntm_shock", 0.0)

	for _, code := range sortedCountryCodes(state) {
		cs := state.Countries[code]
		if cs.Trade.ExportsGdp == nil || cs.Trade.ImportsGdp == nil {
			continue
		}
		oldExports := *cs.Trade.ExportsGdp
		oldImports := *cs.Trade.ImportsGdp

		var tariffImpact float64
		var effectiveTariff any
		if cs.Trade.TariffMfnAvg != nil {
			oldTariff := *cs.Trade.TariffMfnAvg
			eff := oldTariff * tariffMultiplier
			effectiveTariff = eff
			tariffImpact = -0.5 * (eff - oldTariff)
		} else {
			tariffImpact = 0.0
		}
		ntmImpact := -ntmShock * 0.3
		tradeImpact := tariffImpact + ntmImpact
		newExports := oldExports * (1 + tradeImpact)
		newImports := oldImports * (1 + tradeImpact)

		journal.RecordChange("countries."+code+".trade.exports_gdp", oldExports, newExports, "trade_update", nil, map[string]any{
			"tariff_multiplier":   tariffMultiplier,
			"effective_tariff":    effectiveTariff,
			"tariff_impact":       tariffImpact,
			"ntm_shock":           ntmShock,
			"ntm_impact":          ntmImpact,
			"total_trade_impact":  tradeImpact,
		})
		journal.RecordChange("countries."+code+".trade.imports_gdp", oldImports, newImports, "trade_update", nil, map[string]any{
			"tariff_multiplier":  tariffMultiplier,
			"effective_tariff":   effectiveTariff,
			"tariff_impact":      tariffImpact,
			"ntm_shock":          ntmShock,
			"ntm_impact":         ntmImpact,
			"total_trade_impact": tradeImpact,
		})
		cs.Trade.ExportsGdp = &newExports
		cs.Trade.ImportsGdp = &newImports
	}
}

// laborSupplyUpdate models a national-service mobilization regime
// reducing effective labor supply, with partial pass-through to the
// unemployment rate and a 1% floor.
func laborSupplyUpdate(cs *CountryState, regimes *RegimeParams, journal *Journal) {
	nationalServicePct := regimeFloat(regimes.Labor, "national_service_pct", 0.0)
	if cs.Macro.Unemployment == nil || nationalServicePct <= 0 {
		return
	}
	oldUnemployment := *cs.Macro.Unemployment
	laborReduction := nationalServicePct / 100.0
	unemploymentImpact := -laborReduction * 0.5
	newUnemployment := math.Max(0.01, oldUnemployment+unemploymentImpact)
	journal.RecordChange("countries."+cs.Code+".macro.unemployment", oldUnemployment, newUnemployment, "labor_supply_update", nil, map[string]any{
		"national_service_pct": nationalServicePct,
		"labor_reduction":      laborReduction,
		"unemployment_impact":  unemploymentImpact,
		"pass_through_rate":    0.5,
	})
	cs.Macro.Unemployment = &newUnemployment
}

// securityUpdate models mobilization's effect on military expenditure and
// personnel headcount. The two effects are independently gated: milex_gdp
// only moves when mobilization is actually positive, but personnel grows
// (by zero, harmlessly) whenever it is present, per spec.
func securityUpdate(cs *CountryState, regimes *RegimeParams, journal *Journal) {
	mobilizationIntensity := regimeFloat(regimes.Security, "mobilization_intensity", 0.0)

	if mobilizationIntensity > 0 && cs.Security.MilexGdp != nil {
		oldMilex := *cs.Security.MilexGdp
		mobilizationBoost := mobilizationIntensity * 0.02
		newMilex := oldMilex + mobilizationBoost
		journal.RecordChange("countries."+cs.Code+".security.milex_gdp", oldMilex, newMilex, "security_update", nil, map[string]any{
			"mobilization_intensity": mobilizationIntensity,
			"mobilization_boost":     mobilizationBoost,
			"boost_per_unit":         0.02,
		})
		cs.Security.MilexGdp = &newMilex
	}

	if cs.Security.Personnel != nil {
		oldPersonnel := *cs.Security.Personnel
		personnelIncrease := int64(math.Round(mobilizationIntensity * 10000))
		newPersonnel := oldPersonnel + personnelIncrease
		journal.RecordChange("countries."+cs.Code+".security.personnel", oldPersonnel, newPersonnel, "security_update", nil, map[string]any{
			"mobilization_intensity": mobilizationIntensity,
			"personnel_increase":     personnelIncrease,
			"increase_per_unit":      10000,
		})
		cs.Security.Personnel = &newPersonnel
	}
}

// settleBop closes the balance-of-payments identity by moving half of
// the current-account balance (in USD) into reserves.
func settleBop(cs *CountryState, journal *Journal) {
	if cs.External.CurrentAccountGdp == nil || cs.Macro.Gdp == nil || cs.External.ReservesUsd == nil {
		return
	}
	oldReserves := *cs.External.ReservesUsd
	caUsd := *cs.External.CurrentAccountGdp * *cs.Macro.Gdp
	newReserves := oldReserves + caUsd*0.5
	journal.RecordChange("countries."+cs.Code+".external.reserves_usd", oldReserves, newReserves, "bop_settlement", nil, map[string]any{
		"bop_identity":         "delta Reserves = CA + Capital Account + Errors",
		"current_account_usd":  caUsd,
		"reserve_change":       newReserves - oldReserves,
	})
	cs.External.ReservesUsd = &newReserves
}
