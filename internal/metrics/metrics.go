// Package metrics defines the prometheus collectors recorded around calls
// to the pure kernel.Step function. Nothing in internal/kernel imports this
// package — instrumentation lives one layer up, in internal/runner, the
// same separation the teacher keeps between its backtesting engine and any
// metrics surface that would wrap it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups the counters and histograms recorded for each step.
// A single Collectors value is meant to be constructed once per process
// (via NewCollectors, which registers with a prometheus.Registerer) and
// shared across every scenario a runner advances.
type Collectors struct {
	StepDuration    prometheus.Histogram
	FieldChanges    prometheus.Counter
	TriggerFires    prometheus.Counter
	StepErrors      prometheus.Counter
	TriggerExpiries prometheus.Counter
}

// NewCollectors creates and registers the kernel's metric collectors
// against reg. Pass prometheus.DefaultRegisterer to expose them on the
// default /metrics handler, or a fresh prometheus.NewRegistry() in tests.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		StepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kernel_step_duration_seconds",
			Help:    "Wall-clock duration of a single kernel.Step call.",
			Buckets: prometheus.DefBuckets,
		}),
		FieldChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "kernel_field_changes_total",
			Help: "Total FieldChange records emitted across all steps.",
		}),
		TriggerFires: factory.NewCounter(prometheus.CounterOpts{
			Name: "kernel_trigger_fires_total",
			Help: "Total trigger activations across all steps.",
		}),
		StepErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "kernel_step_errors_total",
			Help: "Total non-fatal and fatal errors recorded to a StepAudit.",
		}),
		TriggerExpiries: factory.NewCounter(prometheus.CounterOpts{
			Name: "kernel_trigger_expiries_total",
			Help: "Total triggers removed from the fired-set after their sunset elapsed.",
		}),
	}
}

// Observe records one completed step's outcome against the collectors.
func (c *Collectors) Observe(durationSeconds float64, fieldChanges, triggersFired, errs, expired int) {
	if c == nil {
		return
	}
	c.StepDuration.Observe(durationSeconds)
	c.FieldChanges.Add(float64(fieldChanges))
	c.TriggerFires.Add(float64(triggersFired))
	c.StepErrors.Add(float64(errs))
	c.TriggerExpiries.Add(float64(expired))
}
