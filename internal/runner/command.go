package runner

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// WorkerSpec describes one worker of a run.
type WorkerSpec struct {
	Index       int    // worker index; names the artifact
	Duration    int    // load duration in seconds
	Target      string // node address handed to the load tool
	Concurrency int    // threads inside the load tool
}

// CommandBuilder creates the command a worker runs. The returned command must not
// be started; the executor owns its stdout, stderr and lifetime.
type CommandBuilder interface {
	BuildCommand(ctx context.Context, spec WorkerSpec) (*exec.Cmd, error)
	Name() string
}

// Terminator is implemented by builders whose worker load runs outside the
// local process group, such as inside a container reached with "docker exec".
// TerminateCommand returns the command that stops spec's load, or nil when
// signalling the local process group is enough.
type Terminator interface {
	TerminateCommand(ctx context.Context, spec WorkerSpec) (*exec.Cmd, error)
}

const (
	DefaultContainer    = "some-scylla"
	DefaultStressBinary = "cassandra-stress"
	DefaultStressMode   = "write"
	defaultDockerBinary = "docker"
)

// StressCommand runs cassandra-stress, inside a container when Container is set:
//
//	docker exec <container> cassandra-stress write duration=<d>s -rate threads=<c> -node <target>
type StressCommand struct {
	Container string
	Binary    string
	Mode      string
	Docker    string
}

func (s StressCommand) Name() string {
	return s.binary()
}

// Argv returns the full argument vector for spec, program first.
func (s StressCommand) Argv(spec WorkerSpec) ([]string, error) {
	stress, err := s.stressArgv(spec)
	if err != nil {
		return nil, err
	}
	if s.Container == "" {
		return stress, nil
	}
	return append([]string{s.docker(), "exec", s.Container}, stress...), nil
}

// TerminateArgv returns the command that stops spec's cassandra-stress inside
// the container, or nil when the tool runs on the host. The pattern matches the
// tool's arguments, which survive the launcher script's exec into java.
func (s StressCommand) TerminateArgv(spec WorkerSpec) ([]string, error) {
	stress, err := s.stressArgv(spec)
	if err != nil {
		return nil, err
	}
	if s.Container == "" {
		return nil, nil
	}
	pattern := regexp.QuoteMeta(strings.Join(stress[1:], " "))
	return []string{s.docker(), "exec", s.Container, "pkill", "-TERM", "-f", pattern}, nil
}

// TerminateCommand implements Terminator.
func (s StressCommand) TerminateCommand(ctx context.Context, spec WorkerSpec) (*exec.Cmd, error) {
	argv, err := s.TerminateArgv(spec)
	if err != nil || argv == nil {
		return nil, err
	}
	return exec.CommandContext(ctx, argv[0], argv[1:]...), nil
}

func (s StressCommand) stressArgv(spec WorkerSpec) ([]string, error) {
	if strings.TrimSpace(spec.Target) == "" {
		return nil, fmt.Errorf("target node is required")
	}
	if spec.Duration <= 0 {
		return nil, fmt.Errorf("duration must be > 0, got %d", spec.Duration)
	}
	if spec.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be > 0, got %d", spec.Concurrency)
	}

	mode := s.Mode
	if mode == "" {
		mode = DefaultStressMode
	}
	return []string{
		s.binary(),
		mode,
		"duration=" + strconv.Itoa(spec.Duration) + "s",
		"-rate", "threads=" + strconv.Itoa(spec.Concurrency),
		"-node", spec.Target,
	}, nil
}

// BuildCommand implements CommandBuilder. Arguments are passed as argv, never
// through a shell.
func (s StressCommand) BuildCommand(_ context.Context, spec WorkerSpec) (*exec.Cmd, error) {
	argv, err := s.Argv(spec)
	if err != nil {
		return nil, err
	}
	return exec.Command(argv[0], argv[1:]...), nil
}

func (s StressCommand) docker() string {
	if s.Docker == "" {
		return defaultDockerBinary
	}
	return s.Docker
}

func (s StressCommand) binary() string {
	if s.Binary == "" {
		return DefaultStressBinary
	}
	return s.Binary
}
