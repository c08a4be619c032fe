package kernel

import (
	"fmt"
	"sort"
)

// PolicyPatch writes a value to a single dotted path via set/add/mul.
type PolicyPatch struct {
	Path  string `json:"path"`
	Op    string `json:"op"` // "set", "add", "mul"
	Value any    `json:"value"`
}

// ReducerOverride installs a named alternate implementation for a reducer
// slot (e.g. swapping monetary_policy from "taylor" to "fx_peg").
type ReducerOverride struct {
	Target   string `json:"target"`
	ImplName string `json:"impl_name"`
}

// NetworkEdit is one directed edge write within a NetworkRewrite.
type NetworkEdit struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Weight float64 `json:"weight"`
}

// NetworkRewrite sets directed edge weights on one of the network layers:
// trade, interbank, alliances, sanctions, or the special energy layer
// (which targets io_coefficients.energy_network instead of a top-level
// matrix).
type NetworkRewrite struct {
	Layer string        `json:"layer"`
	Edits []NetworkEdit `json:"edits"`
}

// EventInject appends a new pending event to the state's event queue.
type EventInject struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Trigger is an immutable, scenario-declared condition-action rule.
// Firing state (whether it has fired, and when) is not carried on the
// Trigger itself — it is caller-owned, threaded through Step as
// firedSet/fireTurnMap, so the kernel remains a pure transformation.
type Trigger struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	When              string `json:"when"`
	Once              bool   `json:"once"`
	ExpiresAfterTurns int    `json:"expires_after_turns,omitempty"`

	Patches         []PolicyPatch     `json:"patches,omitempty"`
	Overrides       []ReducerOverride `json:"overrides,omitempty"`
	NetworkRewrites []NetworkRewrite  `json:"network_rewrites,omitempty"`
	Events          []EventInject     `json:"events,omitempty"`
}

// networkAuditPath renders the conventional audit label for a network
// edit write: "<layer>_matrix.<from>.<to>", independent of the state path
// actually touched (e.g. the sanctions layer resolves to the Sanctions
// matrix but is still recorded as "sanctions_matrix.USA.RUS").
func networkAuditPath(layer, from, to string) string {
	return fmt.Sprintf("%s_matrix.%s.%s", layer, from, to)
}

// ProcessTriggers evaluates every trigger's condition, in declaration
// order, against state at t+1 (the prospective turn), and applies the
// actions of matching triggers against the live state. It returns the
// names that newly fired this step, plus fresh copies of firedSet and
// fireTurnMap reflecting those fires — the inputs are never mutated.
//
// A trigger with Once==true and already present in firedSet is skipped.
// A condition that fails to evaluate is recorded as a non-fatal journal
// error and the trigger is treated as non-firing. An action that fails to
// apply is likewise recorded and does not prevent the trigger's other
// actions from being attempted.
func ProcessTriggers(state *GlobalState, triggers []Trigger, firedSet map[string]bool, fireTurnMap map[string]int, journal *Journal) (newlyFired []string, newFiredSet map[string]bool, newFireTurnMap map[string]int) {
	prospective := state.Clone()
	prospective.T = state.T + 1
	newTurn := prospective.T

	newFiredSet = make(map[string]bool, len(firedSet))
	for k, v := range firedSet {
		newFiredSet[k] = v
	}
	newFireTurnMap = make(map[string]int, len(fireTurnMap))
	for k, v := range fireTurnMap {
		newFireTurnMap[k] = v
	}

	for _, t := range triggers {
		if t.Once && newFiredSet[t.Name] {
			continue
		}
		matched, err := EvalCondition(prospective, t.When)
		if err != nil {
			journal.AddError(fmt.Sprintf("Error evaluating trigger %s: %v", t.Name, err))
			continue
		}
		if !matched {
			continue
		}

		applyTriggerActions(state, t, journal)

		journal.AddTriggerFired(t.Name)
		newlyFired = append(newlyFired, t.Name)
		if t.Once {
			newFiredSet[t.Name] = true
		}
		if _, ok := newFireTurnMap[t.Name]; !ok {
			newFireTurnMap[t.Name] = newTurn
		}
	}
	return newlyFired, newFiredSet, newFireTurnMap
}

// ExpireTriggers reports the names in fireTurnMap whose trigger defines
// ExpiresAfterTurns > 0 and for which currentTurn - fireTurn has reached
// that threshold. The caller (Step) removes these from the returned
// fired-set and fire-turn map.
func ExpireTriggers(triggers []Trigger, fireTurnMap map[string]int, currentTurn int) []string {
	byName := make(map[string]Trigger, len(triggers))
	for _, t := range triggers {
		byName[t.Name] = t
	}
	var expired []string
	for name, fireTurn := range fireTurnMap {
		t, ok := byName[name]
		if !ok || t.ExpiresAfterTurns <= 0 {
			continue
		}
		if currentTurn-fireTurn >= t.ExpiresAfterTurns {
			expired = append(expired, name)
		}
	}
	sort.Strings(expired)
	return expired
}

func applyTriggerActions(state *GlobalState, t Trigger, journal *Journal) {
	source := "trigger:" + t.Name

	for _, p := range t.Patches {
		c, err := resolvePatchPath(state, p.Path)
		if err != nil {
			journal.AddError(fmt.Sprintf("Error in trigger %s: %v", t.Name, err))
			continue
		}
		oldValue, newValue, err := c.apply(p.Op, p.Value)
		if err != nil {
			journal.AddError(fmt.Sprintf("Error in trigger %s: %v", t.Name, err))
			continue
		}
		journal.RecordChange(p.Path, oldValue, newValue, source,
			map[string]any{"op": p.Op, "value": p.Value},
			map[string]any{"trigger_action": "policy_patch"})
	}

	for _, r := range t.Overrides {
		if state.Rules.ReducerOverrides == nil {
			state.Rules.ReducerOverrides = map[string]string{}
		}
		var oldValue any
		if v, ok := state.Rules.ReducerOverrides[r.Target]; ok {
			oldValue = v
		}
		state.Rules.ReducerOverrides[r.Target] = r.ImplName
		journal.RecordChange("rules.reducer_overrides."+r.Target, oldValue, r.ImplName, source,
			map[string]any{"target": r.Target, "impl_name": r.ImplName},
			map[string]any{"trigger_action": "reducer_override"})
	}

	for _, nr := range t.NetworkRewrites {
		for _, edit := range nr.Edits {
			if edit.From == "" || edit.To == "" {
				journal.AddError(fmt.Sprintf("Error in trigger %s: network rewrite requires non-empty from/to", t.Name))
				continue
			}
			auditPath := networkAuditPath(nr.Layer, edit.From, edit.To)
			params := map[string]any{"layer": nr.Layer, "from": edit.From, "to": edit.To, "weight": edit.Weight}
			details := map[string]any{"trigger_action": "network_rewrite"}

			if nr.Layer == "energy" {
				if state.EnergyNetwork == nil {
					state.EnergyNetwork = Matrix{}
				}
				var oldValue any
				if row, ok := state.EnergyNetwork[edit.From]; ok {
					if v, ok := row[edit.To]; ok {
						oldValue = v
					}
				}
				state.EnergyNetwork.Set(edit.From, edit.To, edit.Weight)
				journal.RecordChange(auditPath, oldValue, edit.Weight, source, params, details)
				continue
			}

			m, err := state.matrixByLayer(nr.Layer)
			if err != nil {
				journal.AddError(fmt.Sprintf("Error in trigger %s: %v", t.Name, err))
				continue
			}
			var oldValue any
			if row, ok := m[edit.From]; ok {
				if v, ok := row[edit.To]; ok {
					oldValue = v
				}
			}
			if err := state.SetMatrixEdge(nr.Layer, edit.From, edit.To, edit.Weight); err != nil {
				journal.AddError(fmt.Sprintf("Error in trigger %s: %v", t.Name, err))
				continue
			}
			journal.RecordChange(auditPath, oldValue, edit.Weight, source, params, details)
		}
	}

	for _, e := range t.Events {
		ev := Event{
			Kind:               e.Kind,
			Payload:            e.Payload,
			InjectedAtTimestep: state.T,
			Status:             "pending",
		}
		state.Events.Pending = append(state.Events.Pending, ev)
		journal.RecordChange("events.pending[]", nil, ev, source,
			map[string]any{"kind": e.Kind, "payload": e.Payload},
			map[string]any{"trigger_action": "event_inject"})
	}
}
