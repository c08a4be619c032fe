package kernel

import (
	"fmt"
	"sort"
)

// currencyToCountry is the fixed currency->country lookup used to locate
// the FX reference country from base_ccy, per spec §6.3. Unknown
// currencies fall back to "USA".
var currencyToCountry = map[string]string{
	"USD": "USA",
	"CNY": "CHN",
	"EUR": "EUR",
	"JPY": "JPN",
	"GBP": "GBR",
}

// baseCountryForCurrency resolves base_ccy to a country code via the
// fixed currency table, falling back to "USA" for unknown currencies.
func baseCountryForCurrency(baseCcy string) string {
	if country, ok := currencyToCountry[baseCcy]; ok {
		return country
	}
	return "USA"
}

// StepResult is the complete return value of Step: the advanced state,
// its audit, the names that newly fired or expired this step, and fresh
// trigger bookkeeping for the caller to persist.
type StepResult struct {
	NewState          *GlobalState
	Audit             StepAudit
	NewlyFiredNames   []string
	NewlyExpiredNames []string
	FiredSet          map[string]bool
	FireTurnMap       map[string]int
}

// Step advances state by exactly one turn: it builds a prospective
// t+1 copy for trigger-condition evaluation, fires matching triggers
// against a clone of the live state, runs the fixed reducer sequence,
// increments t, and expires any triggers whose sunset has elapsed.
//
// Step never mutates its inputs — state, triggers, firedSet, and
// fireTurnMap are all left untouched; StepResult carries fresh values
// throughout. A missing base-currency country is the only fatal
// condition: NewState is a clone of the original (t unchanged) and
// Audit.Errors names the problem.
func Step(state *GlobalState, triggers []Trigger, firedSet map[string]bool, fireTurnMap map[string]int) StepResult {
	working := state.Clone()
	journal := NewJournal(working.T)

	baseCountry := baseCountryForCurrency(working.BaseCcy)
	if _, ok := working.Countries[baseCountry]; !ok {
		journal.AddError(fmt.Sprintf("Base currency country '%s' not found", baseCountry))
		audit := journal.Finalize()
		return StepResult{
			NewState:    state.Clone(),
			Audit:       audit,
			FiredSet:    copyBoolSet(firedSet),
			FireTurnMap: copyIntMap(fireTurnMap),
		}
	}

	newlyFired, newFiredSet, newFireTurnMap := ProcessTriggers(working, triggers, firedSet, fireTurnMap, journal)

	if err := RunReducers(working, baseCountry, journal); err != nil {
		journal.AddError(err.Error())
		audit := journal.Finalize()
		return StepResult{
			NewState:    state.Clone(),
			Audit:       audit,
			FiredSet:    copyBoolSet(firedSet),
			FireTurnMap: copyIntMap(fireTurnMap),
		}
	}

	working.T++

	expired := ExpireTriggers(triggers, newFireTurnMap, working.T)
	for _, name := range expired {
		delete(newFiredSet, name)
		delete(newFireTurnMap, name)
	}

	sort.Strings(newlyFired)
	audit := journal.Finalize()
	return StepResult{
		NewState:          working,
		Audit:             audit,
		NewlyFiredNames:   newlyFired,
		NewlyExpiredNames: expired,
		FiredSet:          newFiredSet,
		FireTurnMap:       newFireTurnMap,
	}
}

func copyBoolSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
