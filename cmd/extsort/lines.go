package main

import (
	"bufio"
	"io"
)

// lineSource pulls the lines of a text file.
type lineSource struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    string
	err     error
	peeked  bool
	done    bool
}

func newLineSource(rc io.ReadCloser) *lineSource {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	return &lineSource{rc: rc, scanner: scanner}
}

func (s *lineSource) PullBegin() error { return nil }

func (s *lineSource) CanPull() bool {
	if s.done {
		return false
	}
	if s.peeked {
		return true
	}
	if s.scanner.Scan() {
		s.line = s.scanner.Text()
		s.peeked = true
		return true
	}
	if err := s.scanner.Err(); err != nil {
		s.err = err
		s.peeked = true
		return true
	}
	s.done = true
	return false
}

func (s *lineSource) Pull() (string, error) {
	if !s.CanPull() {
		panic("extsort: pull from exhausted line source")
	}
	s.peeked = false
	if s.err != nil {
		s.done = true
		return "", s.err
	}
	return s.line, nil
}

func (s *lineSource) PullEnd() error {
	return s.rc.Close()
}

// lineSink writes one item per line.
type lineSink struct {
	w *bufio.Writer
}

func newLineSink(w io.Writer) *lineSink {
	return &lineSink{w: bufio.NewWriter(w)}
}

func (s *lineSink) Write(line string) error {
	if _, err := s.w.WriteString(line); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *lineSink) Flush() error {
	return s.w.Flush()
}
