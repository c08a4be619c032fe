// Command simkernel loads a scenario file, advances it a fixed number of
// turns through the simulation kernel, and prints a summary of the
// resulting audit trail. It is a thin CLI harness around
// internal/runner — the kernel itself never touches a flag, a file, or a
// socket.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/atlas-desktop/econsim-kernel/internal/analysis"
	"github.com/atlas-desktop/econsim-kernel/internal/kernel"
	"github.com/atlas-desktop/econsim-kernel/internal/metrics"
	"github.com/atlas-desktop/econsim-kernel/internal/runner"
	"github.com/atlas-desktop/econsim-kernel/pkg/scenario"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	scenarioPath := flag.String("scenario", "", "Path to a scenario YAML file")
	steps := flag.Int("steps", 0, "Number of turns to advance (0: use the scenario's own step count)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	track := flag.String("track", "", "Comma-free dotted field path to report trajectory stats for, e.g. countries.USA.macro.policy_rate")
	metricsAddr := flag.String("metrics-addr", "", "If set, serve Prometheus /metrics on this address (e.g. :9090) for the duration of the run")
	useExamples := flag.Bool("examples", false, "Append the kernel's built-in example trigger library to the scenario's own triggers")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	if *scenarioPath == "" {
		logger.Fatal("missing required -scenario flag")
	}

	v := viper.New()
	v.SetDefault("steps", 10)
	v.AutomaticEnv()
	v.SetEnvPrefix("SIMKERNEL")

	def, err := scenario.Load(*scenarioPath)
	if err != nil {
		logger.Fatal("failed to load scenario", zap.Error(err))
	}
	runSteps := *steps
	if runSteps == 0 {
		runSteps = def.Steps
	}
	if runSteps == 0 {
		runSteps = v.GetInt("steps")
	}

	state, triggers, err := def.Build()
	if err != nil {
		logger.Fatal("failed to build initial state", zap.Error(err))
	}
	if *useExamples {
		triggers = append(triggers, kernel.ExampleTriggers()...)
	}

	registry := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(registry)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("serving metrics", zap.String("addr", *metricsAddr))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	scenarioID := uuid.NewString()
	r := runner.New(logger, triggers, runner.WithMetrics(collectors), runner.WithScenarioID(scenarioID))

	logger.Info("starting scenario run",
		zap.String("scenario", def.Name),
		zap.String("scenario_id", scenarioID),
		zap.String("run_id", r.RunID()),
		zap.Int("steps", runSteps),
	)

	finalState, audits, err := r.Run(state, runSteps)
	if err != nil {
		logger.Error("run stopped before completion", zap.Error(err))
	}

	summary := map[string]any{
		"scenario":      def.Name,
		"scenario_id":   scenarioID,
		"run_id":        r.RunID(),
		"final_t":       finalState.T,
		"steps_run":     len(audits),
		"reducer_ok":    analysis.ReducerConsistency(audits),
	}
	if *track != "" {
		if traj, ok := analysis.FieldTrajectory(*track, audits); ok {
			summary["trajectory"] = traj
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Fatal("failed to encode summary", zap.Error(err))
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
