package kernel

import (
	"fmt"
	"strings"
)

// cell is a typed accessor for one addressable location in the state
// tree, compiled by resolvePatchPath from a dotted path. Spec §9's design
// note prefers this typed-visitor shape over generic reflection.
type cell struct {
	get func() any
	set func(any) error
}

// asFloat coerces a patch value (as decoded from JSON or written directly
// in Go) to float64. Accepts float64, float32, int, int64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// apply executes a PolicyPatch op ("set", "add", "mul") against the cell,
// returning the old and new values for audit capture.
func (c cell) apply(op string, value any) (oldValue, newValue any, err error) {
	oldValue = c.get()
	switch op {
	case "set":
		newValue = value
	case "add":
		base, _ := asFloat(oldValue) // null base -> 0
		delta, ok := asFloat(value)
		if !ok {
			return oldValue, nil, fmt.Errorf("%w: add requires a numeric value", ErrPath)
		}
		newValue = base + delta
	case "mul":
		base, baseOk := asFloat(oldValue)
		if !baseOk {
			base = 1 // null base -> 1
		}
		factor, ok := asFloat(value)
		if !ok {
			return oldValue, nil, fmt.Errorf("%w: mul requires a numeric value", ErrPath)
		}
		newValue = base * factor
	default:
		return oldValue, nil, fmt.Errorf("%w: unknown patch op %q", ErrPath, op)
	}
	if err := c.set(newValue); err != nil {
		return oldValue, nil, err
	}
	return oldValue, newValue, nil
}

func floatPtrCell(ptr **float64) cell {
	return cell{
		get: func() any {
			if *ptr == nil {
				return nil
			}
			return **ptr
		},
		set: func(v any) error {
			f, ok := asFloat(v)
			if !ok {
				return fmt.Errorf("%w: expected numeric value, got %T", ErrPath, v)
			}
			*ptr = &f
			return nil
		},
	}
}

func intPtrCell(ptr **int64) cell {
	return cell{
		get: func() any {
			if *ptr == nil {
				return nil
			}
			return **ptr
		},
		set: func(v any) error {
			f, ok := asFloat(v)
			if !ok {
				return fmt.Errorf("%w: expected numeric value, got %T", ErrPath, v)
			}
			n := int64(f)
			*ptr = &n
			return nil
		},
	}
}

func floatMapCell(m map[string]float64, key string) cell {
	return cell{
		get: func() any {
			v, ok := m[key]
			if !ok {
				return nil
			}
			return v
		},
		set: func(v any) error {
			f, ok := asFloat(v)
			if !ok {
				return fmt.Errorf("%w: expected numeric value, got %T", ErrPath, v)
			}
			m[key] = f
			return nil
		},
	}
}

func anyMapCell(m map[string]any, key string) cell {
	return cell{
		get: func() any {
			return m[key]
		},
		set: func(v any) error {
			m[key] = v
			return nil
		},
	}
}

func boolMapCell(m map[string]bool, key string) cell {
	return cell{
		get: func() any {
			v, ok := m[key]
			if !ok {
				return nil
			}
			return v
		},
		set: func(v any) error {
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("%w: expected boolean value, got %T", ErrPath, v)
			}
			m[key] = b
			return nil
		},
	}
}

func stringMapCell(m map[string]string, key string) cell {
	return cell{
		get: func() any {
			v, ok := m[key]
			if !ok {
				return nil
			}
			return v
		},
		set: func(v any) error {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("%w: expected string value, got %T", ErrPath, v)
			}
			m[key] = s
			return nil
		},
	}
}

// macroFloatField and friends enum-index the nullable scalar fields of
// each country slice, so the resolver never needs reflection.
var macroFloatFields = map[string]func(*Macro) **float64{
	"gdp":              func(m *Macro) **float64 { return &m.Gdp },
	"potential_gdp":    func(m *Macro) **float64 { return &m.PotentialGdp },
	"inflation":        func(m *Macro) **float64 { return &m.Inflation },
	"unemployment":     func(m *Macro) **float64 { return &m.Unemployment },
	"output_gap":       func(m *Macro) **float64 { return &m.OutputGap },
	"primary_balance":  func(m *Macro) **float64 { return &m.PrimaryBalance },
	"debt_gdp":         func(m *Macro) **float64 { return &m.DebtGdp },
	"neutral_rate":     func(m *Macro) **float64 { return &m.NeutralRate },
	"policy_rate":      func(m *Macro) **float64 { return &m.PolicyRate },
	"inflation_target": func(m *Macro) **float64 { return &m.InflationTarget },
	"sfa":              func(m *Macro) **float64 { return &m.Sfa },
}

var externalFloatFields = map[string]func(*External) **float64{
	"fx_rate":                   func(e *External) **float64 { return &e.FxRate },
	"reserves_usd":              func(e *External) **float64 { return &e.ReservesUsd },
	"current_account_gdp":       func(e *External) **float64 { return &e.CurrentAccountGdp },
	"net_errors_omissions_gdp":  func(e *External) **float64 { return &e.NetErrorsOmissionsGdp },
}

var financeFloatFields = map[string]func(*Finance) **float64{
	"sovereign_yield":   func(f *Finance) **float64 { return &f.SovereignYield },
	"credit_spread":     func(f *Finance) **float64 { return &f.CreditSpread },
	"bank_tier1_ratio":  func(f *Finance) **float64 { return &f.BankTier1Ratio },
	"leverage_target":   func(f *Finance) **float64 { return &f.LeverageTarget },
}

var tradeFloatFields = map[string]func(*Trade) **float64{
	"exports_gdp":    func(t *Trade) **float64 { return &t.ExportsGdp },
	"imports_gdp":    func(t *Trade) **float64 { return &t.ImportsGdp },
	"tariff_mfn_avg": func(t *Trade) **float64 { return &t.TariffMfnAvg },
	"ntm_index":      func(t *Trade) **float64 { return &t.NtmIndex },
	"terms_of_trade": func(t *Trade) **float64 { return &t.TermsOfTrade },
}

var energyFloatFields = map[string]func(*Energy) **float64{
	"energy_stock_to_use": func(e *Energy) **float64 { return &e.EnergyStockToUse },
	"food_price_index":    func(e *Energy) **float64 { return &e.FoodPriceIndex },
	"energy_price_index":  func(e *Energy) **float64 { return &e.EnergyPriceIndex },
}

var securityFloatFields = map[string]func(*Security) **float64{
	"milex_gdp":          func(s *Security) **float64 { return &s.MilexGdp },
	"conflict_intensity": func(s *Security) **float64 { return &s.ConflictIntensity },
}

var sentimentFloatFields = map[string]func(*Sentiment) **float64{
	"gdelt_tone":      func(s *Sentiment) **float64 { return &s.GdeltTone },
	"trends_salience": func(s *Sentiment) **float64 { return &s.TrendsSalience },
	"policy_pressure": func(s *Sentiment) **float64 { return &s.PolicyPressure },
	"approval":        func(s *Sentiment) **float64 { return &s.Approval },
}

var regimeBags = map[string]func(*RegimeParams) map[string]any{
	"monetary":  func(r *RegimeParams) map[string]any { return r.Monetary },
	"fx":        func(r *RegimeParams) map[string]any { return r.Fx },
	"fiscal":    func(r *RegimeParams) map[string]any { return r.Fiscal },
	"trade":     func(r *RegimeParams) map[string]any { return r.Trade },
	"security":  func(r *RegimeParams) map[string]any { return r.Security },
	"labor":     func(r *RegimeParams) map[string]any { return r.Labor },
	"sentiment": func(r *RegimeParams) map[string]any { return r.Sentiment },
}

// countryFieldCell resolves a "<slice>.<field>" pair on a country to a
// cell, or reports that the field is unknown (a PathError for write,
// a missing-value for read).
func countryFieldCell(cs *CountryState, slice, field string) (cell, bool) {
	switch slice {
	case "macro":
		if fn, ok := macroFloatFields[field]; ok {
			return floatPtrCell(fn(&cs.Macro)), true
		}
	case "external":
		if fn, ok := externalFloatFields[field]; ok {
			return floatPtrCell(fn(&cs.External)), true
		}
	case "finance":
		if fn, ok := financeFloatFields[field]; ok {
			return floatPtrCell(fn(&cs.Finance)), true
		}
	case "trade":
		if fn, ok := tradeFloatFields[field]; ok {
			return floatPtrCell(fn(&cs.Trade)), true
		}
	case "energy":
		if fn, ok := energyFloatFields[field]; ok {
			return floatPtrCell(fn(&cs.Energy)), true
		}
	case "security":
		if field == "personnel" {
			return intPtrCell(&cs.Security.Personnel), true
		}
		if fn, ok := securityFloatFields[field]; ok {
			return floatPtrCell(fn(&cs.Security)), true
		}
	case "sentiment":
		if fn, ok := sentimentFloatFields[field]; ok {
			return floatPtrCell(fn(&cs.Sentiment)), true
		}
	}
	return cell{}, false
}

// resolvePatchPath compiles a dotted path into a writable cell for
// PolicyPatch application. Writing to a missing struct field is an error;
// writing to a missing map key creates it, per spec §4.3.1.
func resolvePatchPath(state *GlobalState, path string) (cell, error) {
	segs := strings.Split(path, ".")
	if len(segs) == 0 || segs[0] == "" {
		return cell{}, fmt.Errorf("%w: empty path", ErrPath)
	}

	switch segs[0] {
	case "countries":
		if len(segs) != 4 {
			return cell{}, fmt.Errorf("%w: %q does not resolve to a country field", ErrPath, path)
		}
		cs, ok := state.Countries[segs[1]]
		if !ok {
			return cell{}, fmt.Errorf("%w: unknown country %q in path %q", ErrPath, segs[1], path)
		}
		c, ok := countryFieldCell(cs, segs[2], segs[3])
		if !ok {
			return cell{}, fmt.Errorf("%w: unknown field %q in path %q", ErrPath, segs[2]+"."+segs[3], path)
		}
		return c, nil

	case "rules":
		if len(segs) < 2 {
			return cell{}, fmt.Errorf("%w: incomplete rules path %q", ErrPath, path)
		}
		switch segs[1] {
		case "regimes":
			if len(segs) < 4 {
				return cell{}, fmt.Errorf("%w: incomplete regime path %q", ErrPath, path)
			}
			bagFn, ok := regimeBags[segs[2]]
			if !ok {
				return cell{}, fmt.Errorf("%w: unknown regime %q", ErrPath, segs[2])
			}
			bag := bagFn(&state.Rules.Regimes)
			key := strings.Join(segs[3:], ".")
			return anyMapCell(bag, key), nil
		case "reducer_overrides":
			if len(segs) != 3 {
				return cell{}, fmt.Errorf("%w: incomplete reducer_overrides path %q", ErrPath, path)
			}
			if state.Rules.ReducerOverrides == nil {
				state.Rules.ReducerOverrides = map[string]string{}
			}
			return stringMapCell(state.Rules.ReducerOverrides, segs[2]), nil
		case "invariants":
			if len(segs) != 3 {
				return cell{}, fmt.Errorf("%w: incomplete invariants path %q", ErrPath, path)
			}
			if state.Rules.Invariants == nil {
				state.Rules.Invariants = map[string]bool{}
			}
			return boolMapCell(state.Rules.Invariants, segs[2]), nil
		case "rng_seed":
			if len(segs) != 2 {
				return cell{}, fmt.Errorf("%w: %q is not a further-addressable path", ErrPath, path)
			}
			return cell{
				get: func() any { return state.Rules.RngSeed },
				set: func(v any) error {
					f, ok := asFloat(v)
					if !ok {
						return fmt.Errorf("%w: expected numeric value, got %T", ErrPath, v)
					}
					state.Rules.RngSeed = int64(f)
					return nil
				},
			}, nil
		default:
			return cell{}, fmt.Errorf("%w: unknown rules field %q", ErrPath, segs[1])
		}

	case "trade_matrix", "interbank_matrix", "alliance_graph", "sanctions":
		if len(segs) != 3 {
			return cell{}, fmt.Errorf("%w: %q is not a from.to matrix edge", ErrPath, path)
		}
		m, err := matrixFieldByName(state, segs[0])
		if err != nil {
			return cell{}, err
		}
		row, ok := m[segs[1]]
		if !ok {
			row = make(map[string]float64)
			m[segs[1]] = row
		}
		return floatMapCell(row, segs[2]), nil

	case "io_coefficients":
		if len(segs) == 4 && segs[1] == "energy_network" {
			row, ok := state.EnergyNetwork[segs[2]]
			if !ok {
				row = make(map[string]float64)
				state.EnergyNetwork[segs[2]] = row
			}
			return floatMapCell(row, segs[3]), nil
		}
		if len(segs) != 3 {
			return cell{}, fmt.Errorf("%w: %q is not a sector.sector coefficient", ErrPath, path)
		}
		row, ok := state.IoCoefficients[segs[1]]
		if !ok {
			row = make(map[string]float64)
			state.IoCoefficients[segs[1]] = row
		}
		return floatMapCell(row, segs[2]), nil

	case "commodity_prices":
		if len(segs) != 2 {
			return cell{}, fmt.Errorf("%w: %q is not a commodity_prices key", ErrPath, path)
		}
		return floatMapCell(state.CommodityPrices, segs[1]), nil

	default:
		return cell{}, fmt.Errorf("%w: unknown path root %q", ErrPath, segs[0])
	}
}

func matrixFieldByName(state *GlobalState, name string) (Matrix, error) {
	switch name {
	case "trade_matrix":
		return state.TradeMatrix, nil
	case "interbank_matrix":
		return state.InterbankMatrix, nil
	case "alliance_graph":
		return state.AllianceGraph, nil
	case "sanctions":
		return state.Sanctions, nil
	default:
		return nil, fmt.Errorf("%w: unknown matrix %q", ErrPath, name)
	}
}

// SetCountryField writes a numeric value to a "<slice>.<field>" cell on cs
// directly (no path string parsing), for callers — such as a scenario-file
// loader — constructing a CountryState from already-typed initial values.
func SetCountryField(cs *CountryState, slice, field string, value float64) error {
	c, ok := countryFieldCell(cs, slice, field)
	if !ok {
		return fmt.Errorf("%w: unknown field %q", ErrPath, slice+"."+field)
	}
	return c.set(value)
}

// readCountryField resolves a dotted field path ("macro.inflation") on a
// named country for the condition evaluator's country('CODE').path form.
// It never errors: absence at any step yields (nil, false) — the
// missing-value sentinel.
func readCountryField(state *GlobalState, code, fieldPath string) (any, bool) {
	cs, ok := state.Countries[code]
	if !ok {
		return nil, false
	}
	segs := strings.SplitN(fieldPath, ".", 2)
	if len(segs) != 2 {
		return nil, false
	}
	c, ok := countryFieldCell(cs, segs[0], segs[1])
	if !ok {
		return nil, false
	}
	v := c.get()
	if v == nil {
		return nil, false
	}
	return v, true
}
