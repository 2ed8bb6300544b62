package stresslog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// maxLineBytes bounds a single output line; cassandra-stress rows are far shorter.
// Longer lines are skipped.
const maxLineBytes = 1024 * 1024

const readBufferBytes = 64 * 1024

// Source yields the lines of one artifact.
type Source struct {
	path string
}

// Open checks that path names a readable regular file and returns a Source for it.
func Open(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("is a directory")}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	_ = f.Close()
	return &Source{path: path}, nil
}

// Path returns the artifact path.
func (s *Source) Path() string {
	return s.path
}

// Lines returns a sequence of whitespace-trimmed lines. Each iteration reopens the
// file and holds at most one line in memory. Lines longer than maxLineBytes are
// dropped without error. A read failure is yielded once as a *ReadError and ends
// the sequence.
func (s *Source) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f, err := os.Open(s.path)
		if err != nil {
			yield("", &ReadError{Path: s.path, Err: err})
			return
		}
		defer f.Close()

		r := bufio.NewReaderSize(f, readBufferBytes)
		var (
			line     []byte
			skipping bool
		)
		for {
			chunk, err := r.ReadSlice('\n')
			if !skipping && len(line)+len(chunk) > maxLineBytes {
				skipping = true
				line = line[:0]
			}
			if !skipping {
				line = append(line, chunk...)
			}

			switch {
			case errors.Is(err, bufio.ErrBufferFull):
				continue
			case err == nil:
				if !skipping && !yield(strings.TrimSpace(string(line)), nil) {
					return
				}
				line, skipping = line[:0], false
			case errors.Is(err, io.EOF):
				if !skipping && len(line) > 0 {
					yield(strings.TrimSpace(string(line)), nil)
				}
				return
			default:
				yield("", &ReadError{Path: s.path, Err: err})
				return
			}
		}
	}
}
