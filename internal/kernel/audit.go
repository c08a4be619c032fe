package kernel

import "time"

// FieldChange records one mutation of a single addressable path: the
// reducer or trigger that produced it, the parameters that drove the
// operation, and the calculation inputs needed to re-derive new_value
// from old_value without replaying the step.
type FieldChange struct {
	FieldPath          string `json:"field_path"`
	OldValue           any    `json:"old_value"`
	NewValue           any    `json:"new_value"`
	ReducerName        string `json:"reducer_name"`
	ReducerParams      any    `json:"reducer_params,omitempty"`
	CalculationDetails any    `json:"calculation_details,omitempty"`
	ChangeOrder        int    `json:"change_order"`
}

// StepAudit is the complete, immutable record of one step call: every
// field change in emission order, the reducer sequence in first-occurrence
// order, every trigger that fired, and every non-fatal error encountered.
type StepAudit struct {
	Timestep        int           `json:"timestep"`
	StepStartTime   time.Time     `json:"step_start_time"`
	StepEndTime     time.Time     `json:"step_end_time"`
	ReducerSequence []string      `json:"reducer_sequence"`
	Changes         []FieldChange `json:"field_changes"`
	TriggersFired   []string      `json:"triggers_fired"`
	Errors          []string      `json:"errors"`
}

// Journal accumulates a StepAudit during a single step call. It is not
// safe for concurrent use; one Journal belongs to one step.
type Journal struct {
	audit StepAudit
}

// NewJournal returns a Journal for the given timestep, with its start
// time stamped immediately.
func NewJournal(timestep int) *Journal {
	return &Journal{audit: StepAudit{Timestep: timestep, StepStartTime: time.Now()}}
}

// RecordChange appends a FieldChange with the next dense change_order.
// The journal applies no filtering of its own; callers decide whether a
// change is significant enough to record.
func (j *Journal) RecordChange(fieldPath string, oldValue, newValue any, reducerName string, reducerParams, calculationDetails any) {
	j.audit.Changes = append(j.audit.Changes, FieldChange{
		FieldPath:          fieldPath,
		OldValue:           oldValue,
		NewValue:           newValue,
		ReducerName:        reducerName,
		ReducerParams:      reducerParams,
		CalculationDetails: calculationDetails,
		ChangeOrder:        len(j.audit.Changes),
	})
}

// AddReducer appends name to the reducer sequence if not already present,
// preserving first-occurrence order.
func (j *Journal) AddReducer(name string) {
	for _, n := range j.audit.ReducerSequence {
		if n == name {
			return
		}
	}
	j.audit.ReducerSequence = append(j.audit.ReducerSequence, name)
}

// AddTriggerFired records a trigger activation, deduplicated.
func (j *Journal) AddTriggerFired(name string) {
	for _, n := range j.audit.TriggersFired {
		if n == name {
			return
		}
	}
	j.audit.TriggersFired = append(j.audit.TriggersFired, name)
}

// AddError records a non-fatal error encountered during the step.
func (j *Journal) AddError(message string) {
	j.audit.Errors = append(j.audit.Errors, message)
}

// hasChangeAt reports whether a FieldChange for path has already been
// recorded this step, used by the monetary-policy trigger-priority rule.
func (j *Journal) hasChangeAt(path string) bool {
	for _, c := range j.audit.Changes {
		if c.FieldPath == path {
			return true
		}
	}
	return false
}

// TriggersFiredSoFar returns a copy of the trigger names fired so far
// this step, for embedding into a skip-marker's calculation_details.
func (j *Journal) TriggersFiredSoFar() []string {
	return append([]string(nil), j.audit.TriggersFired...)
}

// Finalize stamps the end time and returns the completed StepAudit. The
// Journal should not be used after Finalize is called.
func (j *Journal) Finalize() StepAudit {
	j.audit.StepEndTime = time.Now()
	return j.audit
}
