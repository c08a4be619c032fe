package analysis_test

import (
	"math"
	"testing"

	"github.com/atlas-desktop/econsim-kernel/internal/analysis"
	"github.com/atlas-desktop/econsim-kernel/internal/kernel"
)

func changeAt(timestep int, path string, newValue any) kernel.StepAudit {
	return kernel.StepAudit{
		Timestep:        timestep,
		ReducerSequence: []string{"output_gap_update"},
		Changes: []kernel.FieldChange{
			{FieldPath: path, NewValue: newValue, ReducerName: "monetary_policy"},
		},
	}
}

func TestFieldTrajectoryMissingFieldReturnsFalse(t *testing.T) {
	audits := []kernel.StepAudit{changeAt(0, "countries.USA.macro.inflation", 0.03)}
	_, ok := analysis.FieldTrajectory("countries.USA.macro.policy_rate", audits)
	if ok {
		t.Error("expected ok=false for a field path that never changed")
	}
}

func TestFieldTrajectoryComputesInitialFinalAndNetChange(t *testing.T) {
	path := "countries.USA.macro.policy_rate"
	audits := []kernel.StepAudit{
		changeAt(0, path, 0.02),
		changeAt(1, path, 0.03),
		changeAt(2, path, 0.05),
	}
	traj, ok := analysis.FieldTrajectory(path, audits)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if traj.InitialValue != 0.02 {
		t.Errorf("expected InitialValue=0.02, got %v", traj.InitialValue)
	}
	if traj.FinalValue != 0.05 {
		t.Errorf("expected FinalValue=0.05, got %v", traj.FinalValue)
	}
	if math.Abs(traj.NetChange-0.03) > 1e-12 {
		t.Errorf("expected NetChange=0.03, got %v", traj.NetChange)
	}
	if len(traj.Samples) != 3 {
		t.Errorf("expected 3 samples, got %d", len(traj.Samples))
	}
}

func TestFieldTrajectoryTrendIncreasing(t *testing.T) {
	path := "countries.USA.macro.policy_rate"
	audits := []kernel.StepAudit{
		changeAt(0, path, 0.01),
		changeAt(1, path, 0.02),
		changeAt(2, path, 0.03),
		changeAt(3, path, 0.04),
	}
	traj, ok := analysis.FieldTrajectory(path, audits)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if traj.Trend != analysis.TrendIncreasing {
		t.Errorf("expected increasing trend, got %v", traj.Trend)
	}
	if traj.Slope <= 0 {
		t.Errorf("expected a positive OLS slope, got %v", traj.Slope)
	}
}

func TestFieldTrajectoryInsufficientDataTrend(t *testing.T) {
	path := "countries.USA.macro.policy_rate"
	audits := []kernel.StepAudit{
		changeAt(0, path, 0.01),
		changeAt(1, path, 0.02),
	}
	traj, ok := analysis.FieldTrajectory(path, audits)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if traj.Trend != analysis.TrendInsufficientData {
		t.Errorf("expected insufficient_data trend with only 2 samples, got %v", traj.Trend)
	}
}

func TestReducerConsistencyDetectsDivergence(t *testing.T) {
	consistent := []kernel.StepAudit{
		{ReducerSequence: []string{"a", "b"}},
		{ReducerSequence: []string{"a", "b"}},
	}
	if !analysis.ReducerConsistency(consistent) {
		t.Error("expected identical reducer sequences to be consistent")
	}

	divergent := []kernel.StepAudit{
		{ReducerSequence: []string{"a", "b"}},
		{ReducerSequence: []string{"a", "c"}},
	}
	if analysis.ReducerConsistency(divergent) {
		t.Error("expected divergent reducer sequences to be flagged inconsistent")
	}
}

func TestReducerConsistencyEmptyRunIsConsistent(t *testing.T) {
	if !analysis.ReducerConsistency(nil) {
		t.Error("expected an empty run to be trivially consistent")
	}
}
