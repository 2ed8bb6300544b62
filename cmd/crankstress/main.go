package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/crankstress/internal/config"
	"github.com/torosent/crankstress/internal/logging"
	"github.com/torosent/crankstress/internal/metrics"
	"github.com/torosent/crankstress/internal/output"
	"github.com/torosent/crankstress/internal/runner"
	"github.com/torosent/crankstress/internal/stresslog"
	"github.com/torosent/crankstress/internal/threshold"
	"github.com/torosent/crankstress/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

// Process exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitThresholds  = 3
	exitInterrupted = 130
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

// usageError marks errors caused by the command line or config file.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// newBuilder creates the worker command factory. Tests replace it.
var newBuilder = func(cfg *config.Config) runner.CommandBuilder {
	return runner.StressCommand{
		Container: cfg.Container,
		Binary:    cfg.StressBinary,
		Mode:      cfg.StressMode,
	}
}

func main() {
	os.Exit(exitCode(run(os.Args[1:], os.Stdout, os.Stderr), os.Stderr))
}

// exitCode reports err on stderr and maps it to a process exit code.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)

	var (
		mismatch *config.MismatchError
		invalid  config.ValidationError
		usage    usageError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.As(err, &mismatch), errors.As(err, &invalid), errors.As(err, &usage):
		return exitUsage
	case errors.Is(err, errThresholdsFailed):
		return exitThresholds
	default:
		return exitFailure
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return usageError{err: err}
	}
	// A duration/worker mismatch stops here, before any process or artifact exists.
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(stderr, cfg.LogLevel, logging.Format(cfg.LogFormat))
	if err != nil {
		return usageError{err: err}
	}
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return usageError{err: err}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runID := ulid.Make().String()
	provider, err := tracing.Init(ctx, cfg.Tracing, tracing.Run{
		ID:        runID,
		Target:    cfg.NodeIP,
		Workers:   len(cfg.Durations),
		OutputDir: cfg.OutputDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	specs := workerSpecs(cfg)
	collector := metrics.NewCollector()
	r := runner.New(runner.Options{
		OutputDir:      cfg.OutputDir,
		RunID:          runID,
		Builder:        newBuilder(cfg),
		MaxParallel:    cfg.MaxParallel,
		LaunchRate:     cfg.LaunchRate,
		KillGrace:      cfg.KillGrace,
		Logger:         &logger,
		Tracer:         provider.Tracer(),
		PropagateTrace: provider.ShouldPropagate(),
		OnWorkerDone: func(o runner.Outcome) {
			collector.RecordWorker(o.Duration, o.ExitCode, o.Err)
		},
	})

	var progress *output.ProgressReporter
	if cfg.Progress {
		progress = output.NewProgressReporter(collector, len(specs), progressInterval, stderr)
		progress.Start()
	}
	res, err := r.Run(ctx, specs)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}

	agg, err := aggregate(ctx, provider, logger, res.Artifacts())
	if err != nil {
		return err
	}

	stats := collector.Stats(res.Duration)
	results := threshold.NewEvaluator(thresholds).Evaluate(agg.Summary, stats)
	report := output.NewReport(res, agg, stats, results)

	switch {
	case cfg.JSONOutput:
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	case cfg.YAMLOutput:
		if err := output.PrintYAMLReport(stdout, report); err != nil {
			return err
		}
	default:
		output.PrintReport(stdout, report)
	}

	if cfg.MetricsFile != "" {
		if err := output.WriteMetricsFile(cfg.MetricsFile, report); err != nil {
			return fmt.Errorf("write metrics file: %w", err)
		}
	}

	if n := res.LaunchFailures(); n > 0 {
		return fmt.Errorf("%d of %d workers could not be started: %w", n, len(specs), res.Err())
	}
	if !threshold.AllPassed(results) {
		return errThresholdsFailed
	}
	return nil
}

// aggregate folds every artifact, in worker order, into the run summary.
func aggregate(ctx context.Context, provider *tracing.Provider, logger zerolog.Logger, artifacts []string) (stresslog.Aggregation, error) {
	_, span := tracing.StartSpan(ctx, provider.Tracer(), "aggregate",
		attribute.Int("crankstress.artifacts", len(artifacts)),
	)
	agg, err := stresslog.AggregateDetailed(artifacts)
	if err != nil {
		err = fmt.Errorf("aggregate results: %w", err)
		tracing.EndSpan(span, err)
		return agg, err
	}
	for _, path := range artifacts {
		logger.Debug().Str("artifact", path).Int("lines", agg.Lines[path]).Msg("artifact aggregated")
	}
	tracing.EndSpan(span, nil,
		attribute.Float64("crankstress.op_rate_sum", agg.Summary.OpRateSum),
		attribute.Int("crankstress.samples.max", len(agg.Accumulator.MaxSamples)),
	)
	logger.Info().
		Float64("op_rate_sum", agg.Summary.OpRateSum).
		Float64("latency_mean_avg", agg.Summary.LatencyMeanAvg).
		Float64("latency_p99_avg", agg.Summary.LatencyP99Avg).
		Float64("latency_max_stddev", agg.Summary.LatencyMaxStddev).
		Msg("aggregation finished")
	return agg, nil
}

// workerSpecs builds one WorkerSpec per configured duration, in index order.
func workerSpecs(cfg *config.Config) []runner.WorkerSpec {
	specs := make([]runner.WorkerSpec, len(cfg.Durations))
	for i, d := range cfg.Durations {
		specs[i] = runner.WorkerSpec{
			Index:       i,
			Duration:    d,
			Target:      cfg.NodeIP,
			Concurrency: cfg.CassandraThreads,
		}
	}
	return specs
}
