// Package sse implements the server-sent-events wire format: a frame
// reader for the client side and a frame writer for the server side.
package sse

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Frame is one server-sent event as delivered on the wire.
type Frame struct {
	// ID is the delivery marker, empty when the server did not set one.
	ID string
	// Name is the event type label; an unnamed event reads as "message".
	Name string
	// Data is the event payload, multi-line data joined with newlines.
	Data []byte
}

// Reader incrementally parses SSE frames from a stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for frame-by-frame reading.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next blocks until a complete frame arrives or the stream ends. It
// returns io.EOF when the stream closes cleanly with no pending frame.
// Comment lines and unknown fields are skipped.
func (r *Reader) Next() (*Frame, error) {
	frame := &Frame{Name: "message"}
	var data []string
	dispatchable := false

	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			// A frame is only dispatched on its trailing blank line, so
			// anything buffered at EOF is a truncated frame and dropped.
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if dispatchable {
				frame.Data = []byte(strings.Join(data, "\n"))
				return frame, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "id":
			frame.ID = value
		case "event":
			frame.Name = value
			dispatchable = true
		case "data":
			data = append(data, value)
			dispatchable = true
		}
	}
}

// WriteFrame writes one event frame and flushes it to the client.
func WriteFrame(w http.ResponseWriter, flusher http.Flusher, id, name string, data []byte) error {
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
