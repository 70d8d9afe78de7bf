// Package ports defines the application layer port interfaces following hexagonal architecture.
// Ports are abstractions that allow the application core to interact with external systems
// (adapters) without knowing their implementation details.
package ports

import (
	"context"
)

// Request is a single HTTP request issued for an exchange.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
}

// LineReader yields the lines of a response body in arrival order with
// line terminators stripped. ReadLine returns io.EOF once the body is
// exhausted; any other error is a transport failure or cancellation.
type LineReader interface {
	ReadLine() (string, error)
	Close() error
}

// Response is the status and body of a Request. Lines must be closed by the
// caller.
type Response struct {
	StatusCode int
	Lines      LineReader
}

// TransportPort performs requests for the orchestrator. Do returns once the
// status line and headers have arrived; the body is read through
// Response.Lines. Cancelling ctx aborts the exchange, including a body read
// in progress.
type TransportPort interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TrustDecision is the outcome of evaluating a presented certificate chain.
type TrustDecision struct {
	Trusted bool
	// Identity names the certificate that satisfied the check, when trusted.
	Identity string
}

// TrustHook evaluates the raw DER certificates of a TLS handshake: the ones
// the server presented plus those of the chains verified up to a trusted
// root.
type TrustHook func(rawChain [][]byte) TrustDecision
