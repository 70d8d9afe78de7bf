package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/jbctechsolutions/streamchat/internal/application/ports"
	"github.com/jbctechsolutions/streamchat/internal/domain/chat"
)

// ByteCounter charges one token per byte.
var ByteCounter = chat.TokenCounterFunc(func(text string) int { return len(text) })

// Lines is an in-memory ports.LineReader. After its lines are served it
// returns the configured terminal error, io.EOF by default. When bound to a
// context with BlockOn it instead waits for that context to end.
type Lines struct {
	mu       sync.Mutex
	lines    []string
	next     int
	err      error
	blockCtx context.Context
	closed   bool
}

var _ ports.LineReader = (*Lines)(nil)

// NewLines creates a reader serving lines then io.EOF.
func NewLines(lines ...string) *Lines {
	return &Lines{lines: lines, err: io.EOF}
}

// FailWith makes the reader return err after its lines instead of io.EOF.
func (l *Lines) FailWith(err error) *Lines {
	l.err = err
	return l
}

// BlockOn makes the reader wait for ctx after its lines and return ctx.Err().
func (l *Lines) BlockOn(ctx context.Context) *Lines {
	l.blockCtx = ctx
	return l
}

// ReadLine implements ports.LineReader.
func (l *Lines) ReadLine() (string, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return "", io.ErrClosedPipe
	}
	if l.next < len(l.lines) {
		line := l.lines[l.next]
		l.next++
		l.mu.Unlock()
		return line, nil
	}
	ctx := l.blockCtx
	err := l.err
	l.mu.Unlock()

	if ctx != nil {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "", err
}

// Close implements ports.LineReader.
func (l *Lines) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether Close was called.
func (l *Lines) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Transport is a scripted ports.TransportPort that records every request.
type Transport struct {
	mu       sync.Mutex
	requests []*ports.Request
	respond  func(ctx context.Context, req *ports.Request) (*ports.Response, error)
}

var _ ports.TransportPort = (*Transport)(nil)

// NewTransport creates a transport answering each request with respond.
func NewTransport(respond func(ctx context.Context, req *ports.Request) (*ports.Response, error)) *Transport {
	return &Transport{respond: respond}
}

// StaticTransport answers every request with status and a fresh reader
// over lines.
func StaticTransport(status int, lines ...string) *Transport {
	return NewTransport(func(context.Context, *ports.Request) (*ports.Response, error) {
		return &ports.Response{StatusCode: status, Lines: NewLines(lines...)}, nil
	})
}

// Do implements ports.TransportPort.
func (t *Transport) Do(ctx context.Context, req *ports.Request) (*ports.Response, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()
	return t.respond(ctx, req)
}

// Requests returns the requests received so far.
func (t *Transport) Requests() []*ports.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*ports.Request, len(t.requests))
	copy(out, t.requests)
	return out
}
