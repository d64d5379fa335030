package client

import (
	"bufio"
	"io"
	"iter"
)

// LineSource yields lines from a reader. The sequence is resumable but not
// restartable: a second range continues where the first stopped. It is not
// safe for concurrent use.
type LineSource struct {
	scanner *bufio.Scanner
	done    bool
	err     error
}

// NewLineSource reads newline-terminated lines from r.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{scanner: bufio.NewScanner(r)}
}

// Lines returns the remaining lines without their terminators.
func (s *LineSource) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		for !s.done {
			if !s.scanner.Scan() {
				s.done = true
				s.err = s.scanner.Err()
				return
			}
			if !yield(s.scanner.Text()) {
				return
			}
		}
	}
}

// Err returns the read error that ended the sequence, or nil on EOF.
func (s *LineSource) Err() error {
	return s.err
}
