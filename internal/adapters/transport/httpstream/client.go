// Package httpstream implements ports.TransportPort over net/http, exposing
// response bodies as line readers and plugging a trust hook into the TLS
// handshake.
package httpstream

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jbctechsolutions/streamchat/internal/application/ports"
	"github.com/jbctechsolutions/streamchat/internal/domain/errors"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/logging"
)

const (
	// DefaultResponseHeaderTimeout bounds the wait for the status line.
	DefaultResponseHeaderTimeout = 30 * time.Second
	// DefaultMaxLineSize is the longest body line the reader accepts.
	DefaultMaxLineSize = 1024 * 1024
)

// Client performs streamed requests. It is safe for concurrent use.
type Client struct {
	httpClient    *http.Client
	tlsConfig     *tls.Config
	trustHook     ports.TrustHook
	headerTimeout time.Duration
	maxLineSize   int
	logger        *logging.Logger
}

// Ensure Client implements ports.TransportPort.
var _ ports.TransportPort = (*Client)(nil)

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient uses httpClient as is. The TLS config, trust hook and
// header timeout options are not applied to it.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTLSConfig sets the base TLS configuration. It is cloned.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		c.tlsConfig = cfg
	}
}

// WithTrustHook makes every handshake consult hook after the standard
// chain and host name verification. A rejected chain fails the handshake
// with an error wrapping ErrTrustRejected.
func WithTrustHook(hook ports.TrustHook) Option {
	return func(c *Client) {
		c.trustHook = hook
	}
}

// WithResponseHeaderTimeout bounds the wait for response headers. The body
// itself is bounded only by the request context.
func WithResponseHeaderTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.headerTimeout = timeout
	}
}

// WithMaxLineSize sets the longest accepted body line in bytes.
func WithMaxLineSize(n int) Option {
	return func(c *Client) {
		c.maxLineSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new streaming HTTP client with functional options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		headerTimeout: DefaultResponseHeaderTimeout,
		maxLineSize:   DefaultMaxLineSize,
		logger:        logging.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: c.newTransport()}
	}

	return c
}

func (c *Client) newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = c.headerTimeout

	var tlsCfg *tls.Config
	if c.tlsConfig != nil {
		tlsCfg = c.tlsConfig.Clone()
	} else {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if c.trustHook != nil {
		tlsCfg.VerifyPeerCertificate = chainVerifiers(tlsCfg.VerifyPeerCertificate, c.verifyPeerCertificate)
	}

	t.TLSClientConfig = tlsCfg
	return t
}

type peerVerifier func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error

func chainVerifiers(first, second peerVerifier) peerVerifier {
	if first == nil {
		return second
	}
	return func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
		if err := first(rawCerts, verifiedChains); err != nil {
			return err
		}
		return second(rawCerts, verifiedChains)
	}
}

// verifyPeerCertificate runs after standard verification, so
// verifiedChains holds the chains built up to a trusted root. The hook sees
// those certificates as well as the presented ones, because servers rarely
// send the root that a pin usually names.
func (c *Client) verifyPeerCertificate(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	certs := handshakeCerts(rawCerts, verifiedChains)
	decision := c.trustHook(certs)
	if !decision.Trusted {
		c.logger.Warn("server certificate chain rejected",
			"presented", len(rawCerts),
			"checked", len(certs),
		)
		return fmt.Errorf("%w: none of %d certificates pinned", errors.ErrTrustRejected, len(certs))
	}
	c.logger.Debug("server certificate chain trusted", "pin", decision.Identity)
	return nil
}

// handshakeCerts returns the presented certificates followed by every
// certificate of the verified chains, anchors included, without duplicates.
func handshakeCerts(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) [][]byte {
	seen := make(map[string]bool, len(rawCerts))
	certs := make([][]byte, 0, len(rawCerts))
	add := func(der []byte) {
		if seen[string(der)] {
			return
		}
		seen[string(der)] = true
		certs = append(certs, der)
	}

	for _, der := range rawCerts {
		add(der)
	}
	for _, chain := range verifiedChains {
		for _, cert := range chain {
			add(cert.Raw)
		}
	}
	return certs
}

// Do sends req and returns once the response headers arrive. The response
// body is exposed line by line and must be closed by the caller. Cancelling
// ctx aborts the request and any body read in progress.
func (c *Client) Do(ctx context.Context, req *ports.Request) (*ports.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, errors.NewError(errors.CodeTransport, "failed to create request", err)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.NewError(errors.CodeTransport, "request failed", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), c.maxLineSize)

	return &ports.Response{
		StatusCode: resp.StatusCode,
		Lines:      &bodyLines{ctx: ctx, body: resp.Body, scanner: scanner},
	}, nil
}

// bodyLines reads a response body one line at a time.
type bodyLines struct {
	ctx     context.Context
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// ReadLine implements ports.LineReader.
func (l *bodyLines) ReadLine() (string, error) {
	if l.scanner.Scan() {
		return l.scanner.Text(), nil
	}
	// A cancelled request surfaces as a body read error; report the
	// cancellation itself.
	if err := l.ctx.Err(); err != nil {
		return "", err
	}
	if err := l.scanner.Err(); err != nil {
		return "", errors.NewError(errors.CodeTransport, "error reading response stream", err)
	}
	return "", io.EOF
}

// Close implements ports.LineReader.
func (l *bodyLines) Close() error {
	if err := l.body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}
	return nil
}
