package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/crankstress/internal/tracing"
)

const maxStderrTail = 4096

// Outcome is the record of one worker execution.
type Outcome struct {
	Spec     WorkerSpec
	Artifact string
	PID      int
	ExitCode int // -1 when the process never ran or was killed by a signal
	Started  time.Time
	Duration time.Duration
	Canceled bool
	Err      error
}

// Launched reports whether the worker process was started.
func (o Outcome) Launched() bool {
	var launchErr *LaunchError
	return !errors.As(o.Err, &launchErr)
}

// Executor runs a single worker to completion.
type Executor struct {
	opt Options
}

// NewExecutor returns an Executor writing artifacts into opt.OutputDir.
func NewExecutor(opt Options) *Executor {
	opt.normalize()
	return &Executor{opt: opt}
}

// Execute launches the worker described by spec, streams its stdout into the
// worker's artifact and blocks until the process exits. The artifact is created
// (or truncated) even when the launch fails. Cancelling ctx terminates the
// worker's process group.
func (e *Executor) Execute(ctx context.Context, spec WorkerSpec) (out Outcome) {
	log := e.opt.Logger.With().Int("worker", spec.Index).Logger()
	out = Outcome{
		Spec:     spec,
		Artifact: ArtifactPath(e.opt.OutputDir, spec.Index),
		ExitCode: -1,
		Started:  time.Now(),
	}

	ctx, span := tracing.StartSpan(ctx, e.opt.Tracer, fmt.Sprintf("worker %d", spec.Index),
		attribute.Int("crankstress.worker.index", spec.Index),
		attribute.Int("crankstress.worker.duration_s", spec.Duration),
		attribute.Int("crankstress.worker.concurrency", spec.Concurrency),
		attribute.String("crankstress.target", spec.Target),
	)
	defer func() {
		out.Duration = time.Since(out.Started)
		tracing.EndSpan(span, out.Err, attribute.Int("crankstress.worker.exit_code", out.ExitCode))
	}()

	file, err := os.OpenFile(out.Artifact, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		out.Err = &LaunchError{Index: spec.Index, Err: fmt.Errorf("open artifact: %w", err)}
		log.Error().Err(out.Err).Msg("worker not started")
		return out
	}
	defer file.Close()

	cmd, err := e.opt.Builder.BuildCommand(ctx, spec)
	if err != nil {
		out.Err = &LaunchError{Index: spec.Index, Err: fmt.Errorf("build command: %w", err)}
		log.Error().Err(out.Err).Msg("worker not started")
		return out
	}

	stderr := &tailBuffer{max: maxStderrTail}
	cmd.Stdout = file
	cmd.Stderr = stderr
	cmd.WaitDelay = e.opt.KillGrace
	if e.opt.PropagateTrace {
		env := cmd.Env
		if env == nil {
			env = os.Environ()
		}
		cmd.Env = tracing.InjectEnv(ctx, env)
	}
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		out.Err = &LaunchError{Index: spec.Index, Err: err}
		log.Error().Err(err).Str("command", e.opt.Builder.Name()).Msg("worker not started")
		return out
	}
	out.PID = cmd.Process.Pid
	log.Info().
		Int("pid", out.PID).
		Str("artifact", out.Artifact).
		Int("duration_s", spec.Duration).
		Msg("worker started")

	canceled, waitErr := e.wait(ctx, cmd, spec, log)
	out.Canceled = canceled
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case waitErr != nil && !(errors.Is(waitErr, exec.ErrWaitDelay) && out.ExitCode == 0):
		out.Err = &ExitError{Index: spec.Index, ExitCode: out.ExitCode, Stderr: stderr.String(), Err: waitErr}
	case canceled:
		out.Err = fmt.Errorf("worker %d: %w", spec.Index, ctx.Err())
	}

	if out.Err != nil {
		log.Warn().
			Err(out.Err).
			Int("exit_code", out.ExitCode).
			Bool("canceled", canceled).
			Str("stderr_tail", stderr.String()).
			Dur("elapsed", time.Since(out.Started)).
			Msg("worker failed")
		return out
	}
	log.Info().Int("exit_code", out.ExitCode).Dur("elapsed", time.Since(out.Started)).Msg("worker finished")
	return out
}

// wait blocks until cmd exits. When ctx ends first the builder's terminate
// command runs (if it has one), the process group gets SIGTERM and, after
// KillGrace, SIGKILL.
func (e *Executor) wait(ctx context.Context, cmd *exec.Cmd, spec WorkerSpec, log zerolog.Logger) (bool, error) {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return false, err
	case <-ctx.Done():
	}

	e.terminate(spec, log)
	interruptProcess(cmd)
	timer := time.NewTimer(e.opt.KillGrace)
	defer timer.Stop()
	select {
	case err := <-done:
		return true, err
	case <-timer.C:
		killProcess(cmd)
		return true, <-done
	}
}

// terminate stops load that signals to the local process group cannot reach.
// It is bounded by KillGrace.
func (e *Executor) terminate(spec WorkerSpec, log zerolog.Logger) {
	t, ok := e.opt.Builder.(Terminator)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.opt.KillGrace)
	defer cancel()
	cmd, err := t.TerminateCommand(ctx, spec)
	if err != nil {
		log.Warn().Err(err).Msg("build terminate command")
		return
	}
	if cmd == nil {
		return
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		log.Warn().Err(err).Str("command", strings.Join(cmd.Args, " ")).Str("output", strings.TrimSpace(string(out))).Msg("terminate command failed")
		return
	}
	log.Debug().Str("command", strings.Join(cmd.Args, " ")).Msg("terminate command finished")
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
