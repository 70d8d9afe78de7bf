// Package stream decodes line-oriented streamed response bodies into text
// deltas.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jbctechsolutions/streamchat/internal/application/ports"
	domainErrors "github.com/jbctechsolutions/streamchat/internal/domain/errors"
)

// DataPrefix marks a line that carries a delta.
const DataPrefix = "data: "

// Status is the completion state of an exchange.
type Status int

const (
	// StatusPending means the line sequence has not been exhausted yet.
	StatusPending Status = iota
	// StatusSucceeded means the stream ended normally.
	StatusSucceeded
	// StatusFailed means the line sequence reported an error.
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Result is the outcome of decoding one exchange.
type Result struct {
	// Text is every delta concatenated. On failure it holds the partial text.
	Text   string
	Deltas int
	Status Status
	// Err is the line sequence error when Status is StatusFailed.
	Err error
}

// Decoder turns the lines of one response into deltas. Lines starting with
// DataPrefix carry a delta; every other line, including blank ones, is
// skipped. A Decoder is not safe for concurrent use.
type Decoder struct {
	lines  ports.LineReader
	text   strings.Builder
	result Result
}

// NewDecoder creates a decoder reading from lines.
func NewDecoder(lines ports.LineReader) *Decoder {
	return &Decoder{lines: lines}
}

// Next returns the next delta. It returns io.EOF when the line sequence ends
// normally and the line sequence's own error when it fails; after either,
// every call returns the same error and Result is final.
func (d *Decoder) Next() (string, error) {
	switch d.result.Status {
	case StatusSucceeded:
		return "", io.EOF
	case StatusFailed:
		return "", d.result.Err
	}

	for {
		line, err := d.lines.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.finish(StatusSucceeded, nil)
				return "", io.EOF
			}
			d.finish(StatusFailed, err)
			return "", err
		}

		delta, ok := strings.CutPrefix(line, DataPrefix)
		if !ok {
			continue
		}

		d.text.WriteString(delta)
		d.result.Deltas++
		return delta, nil
	}
}

// Result returns the decoding outcome so far. Text is the accumulated text
// even while Status is StatusPending.
func (d *Decoder) Result() Result {
	r := d.result
	r.Text = d.text.String()
	return r
}

func (d *Decoder) finish(status Status, err error) {
	d.result.Status = status
	d.result.Err = err
}

// errorEnvelope is the structured body of a failed response.
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ReadErrorBody drains lines into one buffer and derives the failure reason
// for a non-success status: the envelope's error message when the buffer
// decodes as {"error":{"message":...}}, otherwise the raw text. A read error
// stops the drain and the text read so far is used, except cancellation or
// an expired deadline, which is returned instead of a status.
func ReadErrorBody(statusCode int, lines ports.LineReader) (*domainErrors.BadStatusError, error) {
	var buf strings.Builder
	for {
		line, err := lines.ReadLine()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			break
		}
		buf.WriteString(line)
	}

	raw := buf.String()
	reason, err := decodeErrorMessage(raw)
	if err != nil {
		reason = raw
	}

	return &domainErrors.BadStatusError{StatusCode: statusCode, Reason: reason}, nil
}

func decodeErrorMessage(raw string) (string, error) {
	var env errorEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return "", fmt.Errorf("decode error envelope: %w", err)
	}
	if env.Error == nil {
		return "", fmt.Errorf("decode error envelope: missing error object")
	}
	return env.Error.Message, nil
}

// PartialError reports a stream that failed after producing some text. The
// partial text is diagnostic only and never committed.
type PartialError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *PartialError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *PartialError) Unwrap() error {
	return e.Err
}
