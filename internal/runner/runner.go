package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/crankstress/internal/tracing"
)

// Result captures the outcome of a run.
type Result struct {
	RunID     string
	OutputDir string
	Outcomes  []Outcome // one per WorkerSpec, in submission order
	Duration  time.Duration
}

// Artifacts returns the artifact path of every worker, in submission order.
func (r Result) Artifacts() []string {
	paths := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		paths[i] = o.Artifact
	}
	return paths
}

// Failures returns the outcomes that carry an error.
func (r Result) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// LaunchFailures counts workers whose process never started.
func (r Result) LaunchFailures() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Launched() {
			n++
		}
	}
	return n
}

// Err combines every worker error, or returns nil when all workers succeeded.
func (r Result) Err() error {
	var merr *multierror.Error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			merr = multierror.Append(merr, o.Err)
		}
	}
	return merr.ErrorOrNil()
}

// Runner fans out workers and joins on all of them.
type Runner struct {
	opt      Options
	executor *Executor
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, executor: NewExecutor(opt)}
}

// RunID returns the identifier stamped on this runner's results.
func (r *Runner) RunID() string {
	return r.opt.RunID
}

// Run executes one worker per spec and returns once every worker has terminated.
// Worker failures are recorded on their outcomes and never stop other workers.
// Run returns an error when the specs are unusable, the output directory cannot
// be locked, or ctx is cancelled; in the last case all running workers have been
// terminated by the time it returns.
func (r *Runner) Run(ctx context.Context, specs []WorkerSpec) (Result, error) {
	start := time.Now()
	result := Result{RunID: r.opt.RunID, OutputDir: r.opt.OutputDir}
	log := r.opt.Logger.With().Str("run_id", r.opt.RunID).Logger()

	if err := validateSpecs(specs); err != nil {
		return result, err
	}
	lock, err := lockOutputDir(r.opt.OutputDir)
	if err != nil {
		return result, err
	}
	defer func() { _ = lock.Unlock() }()

	ctx, span := tracing.StartSpan(ctx, r.opt.Tracer, "orchestrate",
		attribute.String("crankstress.run_id", r.opt.RunID),
		attribute.Int("crankstress.workers", len(specs)),
		attribute.String("crankstress.command", r.opt.Builder.Name()),
	)

	limit := r.opt.MaxParallel
	if limit <= 0 || limit > len(specs) {
		limit = len(specs)
	}
	limiter := r.opt.LimiterFactory(r.opt.LaunchRate)

	log.Info().
		Int("workers", len(specs)).
		Int("max_parallel", limit).
		Str("output_dir", r.opt.OutputDir).
		Msg("run started")

	outcomes := make([]Outcome, len(specs))
	// Tasks always return nil: one worker's failure must not cancel the others.
	var g errgroup.Group
	g.SetLimit(limit)
	for i, spec := range specs {
		if err := limiter.Wait(ctx); err != nil {
			outcomes[i] = r.skipped(spec, err)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = r.skipped(spec, err)
				return nil
			}
			if r.opt.OnWorkerStart != nil {
				r.opt.OnWorkerStart(spec)
			}
			outcomes[i] = r.executor.Execute(ctx, spec)
			if r.opt.OnWorkerDone != nil {
				r.opt.OnWorkerDone(outcomes[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Outcomes = outcomes
	result.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("run interrupted: %w", err)
		tracing.EndSpan(span, err)
		log.Warn().Err(err).Dur("elapsed", result.Duration).Msg("run interrupted")
		return result, err
	}

	failed := len(result.Failures())
	tracing.EndSpan(span, nil, attribute.Int("crankstress.workers.failed", failed))
	log.Info().
		Int("workers", len(specs)).
		Int("failed", failed).
		Dur("elapsed", result.Duration).
		Msg("run finished")
	return result, nil
}

func (r *Runner) skipped(spec WorkerSpec, err error) Outcome {
	return Outcome{
		Spec:     spec,
		Artifact: ArtifactPath(r.opt.OutputDir, spec.Index),
		ExitCode: -1,
		Canceled: true,
		Err:      &LaunchError{Index: spec.Index, Err: err},
	}
}

func validateSpecs(specs []WorkerSpec) error {
	if len(specs) == 0 {
		return errors.New("no workers to run")
	}
	seen := make(map[int]struct{}, len(specs))
	for _, spec := range specs {
		if spec.Index < 0 {
			return fmt.Errorf("worker index must be >= 0, got %d", spec.Index)
		}
		if _, dup := seen[spec.Index]; dup {
			return fmt.Errorf("duplicate worker index %d", spec.Index)
		}
		seen[spec.Index] = struct{}{}
	}
	return nil
}
