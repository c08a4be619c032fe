// Package runner is the thin host-facing wrapper around the pure
// internal/kernel.Step function: it mints scenario/run identifiers, logs
// step summaries and non-fatal errors, and records prometheus metrics.
// None of this lives inside internal/kernel itself, which per spec §5 has
// no suspension points and performs no I/O.
package runner

import (
	"fmt"
	"time"

	"github.com/atlas-desktop/econsim-kernel/internal/kernel"
	"github.com/atlas-desktop/econsim-kernel/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner advances one scenario's state turn by turn, keeping the
// caller-owned trigger bookkeeping (fired-set, fire-turn map) that the
// kernel itself treats as pure input/output.
type Runner struct {
	logger      *zap.Logger
	metrics     *metrics.Collectors
	scenarioID  string
	runID       string
	triggers    []kernel.Trigger
	firedSet    map[string]bool
	fireTurnMap map[string]int
}

// Option configures a Runner at construction time.
type Option func(*Runner)

// WithMetrics attaches a metrics.Collectors instance; steps are observed
// against it after each call. Omit to run without instrumentation.
func WithMetrics(m *metrics.Collectors) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithScenarioID pins a scenario identifier instead of minting a fresh
// UUID, e.g. when resuming a persisted scenario.
func WithScenarioID(id string) Option {
	return func(r *Runner) { r.scenarioID = id }
}

// New builds a Runner for one scenario run. If no scenario ID is supplied
// via WithScenarioID, one is minted with github.com/google/uuid, matching
// the teacher's use of uuid for trade/order identifiers.
func New(logger *zap.Logger, triggers []kernel.Trigger, opts ...Option) *Runner {
	r := &Runner{
		logger:      logger.Named("runner"),
		runID:       uuid.NewString(),
		triggers:    triggers,
		firedSet:    map[string]bool{},
		fireTurnMap: map[string]int{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.scenarioID == "" {
		r.scenarioID = uuid.NewString()
	}
	return r
}

// ScenarioID returns the scenario identifier this runner is advancing.
func (r *Runner) ScenarioID() string { return r.scenarioID }

// RunID returns the identifier minted for this particular run (a run may
// replay the same scenario with different triggers).
func (r *Runner) RunID() string { return r.runID }

// Advance steps state forward by exactly one turn, logging a summary and
// recording metrics, and returns the new state and its audit. It keeps the
// runner's internal trigger bookkeeping (firedSet/fireTurnMap) in sync so
// the next Advance call observes the correct once/expiry state.
func (r *Runner) Advance(state *kernel.GlobalState) (*kernel.GlobalState, kernel.StepAudit) {
	start := time.Now()
	result := kernel.Step(state, r.triggers, r.firedSet, r.fireTurnMap)
	elapsed := time.Since(start)

	r.firedSet = result.FiredSet
	r.fireTurnMap = result.FireTurnMap

	r.logger.Info("step complete",
		zap.String("scenario_id", r.scenarioID),
		zap.String("run_id", r.runID),
		zap.Int("timestep", result.Audit.Timestep),
		zap.Int("field_changes", len(result.Audit.Changes)),
		zap.Strings("triggers_fired", result.NewlyFiredNames),
		zap.Strings("triggers_expired", result.NewlyExpiredNames),
		zap.Duration("duration", elapsed),
	)
	for _, msg := range result.Audit.Errors {
		r.logger.Warn("step error", zap.String("scenario_id", r.scenarioID), zap.String("detail", msg))
	}

	r.metrics.Observe(elapsed.Seconds(), len(result.Audit.Changes), len(result.NewlyFiredNames),
		len(result.Audit.Errors), len(result.NewlyExpiredNames))

	return result.NewState, result.Audit
}

// Run advances state forward by exactly n turns, returning the final state
// and every intervening StepAudit in order. It stops early (returning what
// it has so far) if a step makes no progress on the timestep counter, which
// signals a fatal ConfigurationError per spec §7.
func (r *Runner) Run(state *kernel.GlobalState, n int) (*kernel.GlobalState, []kernel.StepAudit, error) {
	audits := make([]kernel.StepAudit, 0, n)
	current := state
	for i := 0; i < n; i++ {
		before := current.T
		next, audit := r.Advance(current)
		audits = append(audits, audit)
		if next.T == before {
			return next, audits, fmt.Errorf("step did not advance timestep at iteration %d: %v", i, audit.Errors)
		}
		current = next
	}
	return current, audits, nil
}
