package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
)

// Upstream event kinds.
const (
	EventOutput = "output"
	EventDone   = "done"
	EventError  = "error"
)

// maxLineSize bounds a single upstream line. Output fragments are small;
// anything larger indicates a framing change upstream.
const maxLineSize = 1 << 20

// Event is one parsed upstream record.
type Event struct {
	Event   string `json:"event"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// Stream reads upstream events from a streaming response body.
//
// The upstream interleaves free text with JSON records; only lines that
// parse as an object carrying a known "event" tag are yielded, everything
// else is skipped. This one-object-per-line assumption mirrors the
// upstream's current framing.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool
}

func newStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Stream{body: body, scanner: scanner}
}

// Events iterates the parsed upstream events. Iteration stops after a
// "done" or "error" event, at end of body, or on read error (yielded as
// the final pair). The caller must still Close the stream.
func (s *Stream) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for s.scanner.Scan() {
			line := bytes.TrimSpace(s.scanner.Bytes())
			if len(line) == 0 || line[0] != '{' {
				continue
			}

			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				// Free text that merely looks like JSON. Skip.
				continue
			}

			switch ev.Event {
			case EventOutput:
				if !yield(ev, nil) {
					return
				}
			case EventDone, EventError:
				yield(ev, nil)
				return
			default:
				// Unknown event kinds are ignored for forward compatibility.
			}
		}

		if err := s.scanner.Err(); err != nil {
			yield(Event{}, fmt.Errorf("read stream: %w", err))
		}
	}
}

// Close releases the underlying response body. Safe to call twice.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.body.Close(); err != nil {
		return fmt.Errorf("close stream body: %w", err)
	}
	return nil
}
