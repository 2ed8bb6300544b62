// Package runner launches and supervises the cassandra-stress workers of a run.
//
// The runner package fans out one external process per [WorkerSpec] and joins on
// all of them before returning:
//   - Each worker writes its standard output straight into output_<index>.txt
//   - Worker processes run in their own process group so they can be stopped as a unit
//   - A failing worker never cancels its siblings
//   - Launches can be capped ([Options.MaxParallel]) and paced ([Options.LaunchRate])
//
// # Basic Usage
//
//	r := runner.New(runner.Options{
//		OutputDir: "results",
//		Builder:   runner.StressCommand{Container: "some-scylla"},
//	})
//	result, err := r.Run(ctx, []runner.WorkerSpec{
//		{Index: 0, Duration: 60, Target: "10.0.0.5", Concurrency: 10},
//		{Index: 1, Duration: 90, Target: "10.0.0.5", Concurrency: 10},
//	})
//	paths := result.Artifacts()
//
// # Command Builders
//
// The [CommandBuilder] interface decides what a worker executes:
//
//	type CommandBuilder interface {
//		BuildCommand(ctx context.Context, spec WorkerSpec) (*exec.Cmd, error)
//		Name() string
//	}
//
// [StressCommand] is the default and runs cassandra-stress through docker exec.
//
// # Failures
//
// A worker that cannot be started yields a [LaunchError]; one that exits non-zero
// yields an [ExitError]. Both are recorded on the worker's [Outcome] and the
// artifact is kept, so the aggregate still covers whatever the worker printed.
// [Runner.Run] itself only fails when the run cannot happen at all (bad specs,
// locked output directory) or when its context is cancelled, in which case every
// still-running process group is terminated before it returns.
package runner
