package runner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOutputDirLocked is returned when another run holds the output directory.
var ErrOutputDirLocked = errors.New("output directory is locked by another run")

// LaunchError reports a worker process that could not be started.
type LaunchError struct {
	Index int
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("worker %d: launch failed: %v", e.Index, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// LaunchFailure marks the error for collectors that tally unstarted workers.
func (e *LaunchError) LaunchFailure() bool { return true }

// ExitError reports a worker process that exited unsuccessfully.
type ExitError struct {
	Index    int
	ExitCode int
	// Stderr holds the tail of the worker's standard error.
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("worker %d: exited with code %d", e.Index, e.ExitCode)
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		msg += ": " + lastLine(tail)
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx != -1 {
		return s[idx+1:]
	}
	return s
}
