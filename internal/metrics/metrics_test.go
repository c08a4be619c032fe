package metrics_test

import (
	"testing"

	"github.com/atlas-desktop/econsim-kernel/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewCollectorsRegistersAllSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollectors(reg)

	c.Observe(0.25, 3, 1, 2, 1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	wantCounters := map[string]float64{
		"kernel_field_changes_total":   3,
		"kernel_trigger_fires_total":   1,
		"kernel_step_errors_total":     2,
		"kernel_trigger_expiries_total": 1,
	}
	for name, want := range wantCounters {
		fam, ok := byName[name]
		if !ok {
			t.Errorf("expected metric family %q to be registered", name)
			continue
		}
		got := fam.GetMetric()[0].GetCounter().GetValue()
		if got != want {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
	}

	histFam, ok := byName["kernel_step_duration_seconds"]
	if !ok {
		t.Fatal("expected kernel_step_duration_seconds histogram to be registered")
	}
	if got := histFam.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("expected one observed sample, got %d", got)
	}
}

func TestObserveOnNilReceiverIsANoop(t *testing.T) {
	var c *metrics.Collectors
	c.Observe(1.0, 1, 1, 1, 1) // must not panic
}
