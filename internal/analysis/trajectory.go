// Package analysis provides trajectory reporting over an already-completed
// run's audit trail: for a named field path, the initial and final values,
// net change, volatility, and trend across the steps in which it changed.
// This is pure reporting over history the kernel already produced — not
// forecasting — recovering original_source/scenarios/analyzer.py's
// _analyze_state_evolution without the plotting/report-file machinery that
// accompanied it there (out of scope per spec §1's persistence Non-goal).
package analysis

import (
	"sort"

	"github.com/atlas-desktop/econsim-kernel/internal/kernel"
	"gonum.org/v1/gonum/stat"
)

// Trend classifies the direction of a trajectory using the same
// increase/decrease majority rule as the original analyzer.
type Trend string

const (
	TrendIncreasing      Trend = "increasing"
	TrendDecreasing      Trend = "decreasing"
	TrendStable          Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// Point is one sample of a field's value at a given timestep.
type Point struct {
	Timestep int
	Value    float64
}

// Trajectory summarizes one field path's evolution across a run.
type Trajectory struct {
	FieldPath    string
	Samples      []Point
	InitialValue float64
	FinalValue   float64
	NetChange    float64
	Volatility   float64 // sample (n-1) stdev of step-to-step deltas
	Slope        float64 // OLS slope of value over timestep
	Trend        Trend
}

// FieldTrajectory scans audits in order and extracts every FieldChange
// touching fieldPath into a Trajectory. Returns false if the field never
// changed across the run.
func FieldTrajectory(fieldPath string, audits []kernel.StepAudit) (Trajectory, bool) {
	var samples []Point
	for _, audit := range audits {
		for _, change := range audit.Changes {
			if change.FieldPath != fieldPath {
				continue
			}
			v, ok := asFloat(change.NewValue)
			if !ok {
				continue
			}
			samples = append(samples, Point{Timestep: audit.Timestep + 1, Value: v})
		}
	}
	if len(samples) == 0 {
		return Trajectory{}, false
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Timestep < samples[j].Timestep })

	values := make([]float64, len(samples))
	timesteps := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
		timesteps[i] = float64(s.Timestep)
	}

	traj := Trajectory{
		FieldPath:    fieldPath,
		Samples:      samples,
		InitialValue: values[0],
		FinalValue:   values[len(values)-1],
		NetChange:    values[len(values)-1] - values[0],
		Trend:        trendOf(values),
	}
	if len(values) >= 2 {
		deltas := make([]float64, len(values)-1)
		for i := 1; i < len(values); i++ {
			deltas[i-1] = values[i] - values[i-1]
		}
		traj.Volatility = stat.StdDev(deltas, nil)
		_, slope := stat.LinearRegression(timesteps, values, nil, false)
		traj.Slope = slope
	}
	return traj, true
}

// trendOf applies the original analyzer's majority-vote heuristic: a
// trend is only called "increasing"/"decreasing" when one direction
// outnumbers the other by 50%, otherwise "stable".
func trendOf(values []float64) Trend {
	if len(values) < 3 {
		return TrendInsufficientData
	}
	var increases, decreases int
	for i := 1; i < len(values); i++ {
		switch {
		case values[i] > values[i-1]:
			increases++
		case values[i] < values[i-1]:
			decreases++
		}
	}
	switch {
	case float64(increases) > float64(decreases)*1.5:
		return TrendIncreasing
	case float64(decreases) > float64(increases)*1.5:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

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

// ReducerConsistency reports whether every audit in the run executed the
// identical reducer sequence, mirroring the original analyzer's
// _check_reducer_consistency health check.
func ReducerConsistency(audits []kernel.StepAudit) bool {
	if len(audits) == 0 {
		return true
	}
	first := audits[0].ReducerSequence
	for _, a := range audits[1:] {
		if len(a.ReducerSequence) != len(first) {
			return false
		}
		for i, name := range first {
			if a.ReducerSequence[i] != name {
				return false
			}
		}
	}
	return true
}
