// Package protocol implements the line-oriented hint stream:
//
//	+ <path>
//	+ <path>
//	- COMMIT
//
// Each `+ ` line announces one changed path; `- COMMIT` ends the batch.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Line prefixes and the batch terminator.
const (
	AddPrefix    = "+ "
	CommitMarker = "- COMMIT"
)

// maxLineBytes bounds a single protocol line.
const maxLineBytes = 64 * 1024

var (
	// ErrUnterminated is returned by Reader.Next when the stream ends inside a batch.
	ErrUnterminated = errors.New("stream ended before commit marker")
	// ErrLineBreak is returned by WriteBatch for a path that cannot be framed.
	ErrLineBreak = errors.New("path contains a line break")
)

// Frameable reports whether p fits on a single protocol line.
func Frameable(p string) bool {
	return !strings.ContainsAny(p, "\r\n")
}

// Writer frames batches onto an output stream.
type Writer struct {
	out *bufio.Writer
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: bufio.NewWriter(w)}
}

// WriteBatch writes one line per path followed by the commit marker and
// flushes the stream. Every path is checked before anything is written, so a
// rejected batch leaves the stream untouched.
func (w *Writer) WriteBatch(paths []string) error {
	for _, p := range paths {
		if !Frameable(p) {
			return fmt.Errorf("%w: %q", ErrLineBreak, p)
		}
	}
	for _, p := range paths {
		if _, err := w.out.WriteString(AddPrefix + p + "\n"); err != nil {
			return err
		}
	}
	if _, err := w.out.WriteString(CommitMarker + "\n"); err != nil {
		return err
	}
	return w.out.Flush()
}

// Reader parses batches from a hint stream.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return &Reader{scanner: scanner}
}

// Next returns the paths of the next terminated batch. It returns io.EOF
// when the stream ends cleanly between batches, and ErrUnterminated (with
// the partial paths) when it ends mid-batch. Lines shorter than three bytes
// and lines with an unknown prefix are skipped. A commit marker with no
// preceding paths yields nothing and reading continues.
func (r *Reader) Next() ([]string, error) {
	var paths []string
	for r.scanner.Scan() {
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if len(line) < 3 {
			continue
		}
		switch {
		case strings.HasPrefix(line, AddPrefix):
			paths = append(paths, line[len(AddPrefix):])
		case line[0] == '-':
			if len(paths) == 0 {
				continue
			}
			return paths, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return paths, err
	}
	if len(paths) > 0 {
		return paths, ErrUnterminated
	}
	return nil, io.EOF
}
