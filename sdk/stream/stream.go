// Package stream parses the server-sent event line protocol used by
// streaming API responses.
//
// Events is a pull-based iterator: nothing is read from the byte source
// until the caller asks for the next frame, frames come out in exactly
// the order their terminating newline arrived, and the parser never
// buffers ahead more than one partially-received line.
//
// The accumulation buffer is bounded. A line that outgrows the bound
// before its terminator arrives is a protocol violation and fails the
// stream, so a malfunctioning or hostile server cannot exhaust memory by
// never sending a newline.
package stream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/azfoundry/foundry-go/sdk/apierr"
)

// DefaultMaxLineSize bounds the accumulation buffer for a single line.
const DefaultMaxLineSize = 1 << 20

var (
	dataPrefix   = []byte("data:")
	doneSentinel = []byte("[DONE]")
)

// Events iterates data frames from a byte-chunk source. Not safe for
// concurrent use; not restartable.
type Events struct {
	scanner *bufio.Scanner
	maxLine int
	data    []byte
	err     error
	done    bool
}

// New creates an iterator over r with the default line-size bound.
func New(r io.Reader) *Events {
	return NewSize(r, DefaultMaxLineSize)
}

// NewSize creates an iterator with an explicit line-size bound.
func NewSize(r io.Reader, maxLine int) *Events {
	s := bufio.NewScanner(r)
	// Scanner takes the larger of max and the initial capacity as its
	// limit, so the starting buffer must not exceed the bound.
	initial := 4096
	if initial > maxLine {
		initial = maxLine
	}
	s.Buffer(make([]byte, 0, initial), maxLine)
	s.Split(scanTerminatedLines)
	return &Events{scanner: s, maxLine: maxLine}
}

// scanTerminatedLines frames on newline only. An unterminated tail at EOF
// is dropped rather than surfaced as a frame.
func scanTerminatedLines(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	return 0, nil, nil
}

// Next advances to the next data frame. It returns false when the stream
// ends, whether by the terminal sentinel, source exhaustion, or error;
// check Err to distinguish.
func (e *Events) Next() bool {
	if e.done {
		return false
	}
	for e.scanner.Scan() {
		line := bytes.TrimSuffix(e.scanner.Bytes(), []byte{'\r'})

		// One malformed line must not poison a long-lived stream.
		if !utf8.Valid(line) {
			continue
		}
		if !bytes.HasPrefix(line, dataPrefix) {
			// Comments, event names, keepalives.
			continue
		}
		payload := line[len(dataPrefix):]
		if len(payload) > 0 && payload[0] == ' ' {
			payload = payload[1:]
		}
		if bytes.Equal(payload, doneSentinel) {
			e.done = true
			return false
		}
		e.data = append(e.data[:0], payload...)
		return true
	}

	e.done = true
	if err := e.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			e.err = apierr.Stream(fmt.Sprintf("line exceeds %d-byte buffer limit", e.maxLine), err)
		} else {
			e.err = apierr.Stream("reading event stream", err)
		}
	}
	return false
}

// Data returns the payload of the current frame. The slice is valid until
// the next call to Next.
func (e *Events) Data() []byte {
	return e.data
}

// Err returns the error that ended the stream, or nil after a clean end
// (terminal sentinel or source exhaustion).
func (e *Events) Err() error {
	return e.err
}
