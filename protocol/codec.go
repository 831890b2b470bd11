// Package protocol implements the newline-delimited JSON framing used on the
// wire: one UTF-8 encoded frame object per line.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hmaekawa/caster/domain"
)

// DecodeError reports a malformed individual frame. It is recoverable: the
// session skips the frame and keeps reading, unlike transport-level failures.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Encode marshals a frame and appends the line delimiter.
func Encode(f *domain.Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses a single frame from one line. Malformed JSON and frames that
// fail validation are returned as *DecodeError.
func Decode(line []byte) (*domain.Frame, error) {
	var f domain.Frame
	if err := json.Unmarshal(bytes.TrimSpace(line), &f); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	if err := f.Validate(); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	return &f, nil
}

// FrameReader yields the lazy, unbounded sequence of frames produced by one
// connection. A *DecodeError leaves the reader usable; any other error is
// terminal.
type FrameReader interface {
	ReadFrame() (*domain.Frame, error)
}

// LineReader reads newline-delimited frames from a byte stream.
type LineReader struct {
	scanner *bufio.Scanner
}

// NewLineReader creates a LineReader enforcing maxFrameSize per line.
func NewLineReader(r io.Reader, maxFrameSize int) *LineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &LineReader{scanner: scanner}
}

// ReadFrame implements the FrameReader interface. End of stream is reported
// as io.EOF.
func (r *LineReader) ReadFrame() (*domain.Frame, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return Decode(r.scanner.Bytes())
}
