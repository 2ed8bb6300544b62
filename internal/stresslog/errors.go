package stresslog

import "fmt"

// ReadError reports an artifact that could not be opened or read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read artifact %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
