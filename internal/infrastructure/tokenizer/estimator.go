// Package tokenizer provides token counting infrastructure using tiktoken.
// It implements the domain TokenCounter interface used to budget prompts.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jbctechsolutions/streamchat/internal/domain/chat"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = "cl100k_base"

// Estimator provides token counting using tiktoken-go.
type Estimator struct {
	name     string
	encoding *tiktoken.Tiktoken
	mu       sync.RWMutex
}

// Ensure Estimator implements chat.TokenCounter.
var _ chat.TokenCounter = (*Estimator)(nil)

// NewEstimator creates a token estimator for the named encoding.
// An empty name selects DefaultEncoding.
func NewEstimator(encoding string) (*Estimator, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}

	return &Estimator{
		name:     encoding,
		encoding: enc,
	}, nil
}

// Encoding returns the name of the encoding in use.
func (e *Estimator) Encoding() string {
	return e.name
}

// CountTokens returns the token count for the given text.
// This method is thread-safe.
func (e *Estimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	tokens := e.encoding.Encode(text, nil, nil)
	return len(tokens)
}

// SimpleEstimator provides a simple heuristic-based token estimator
// that doesn't require external dependencies. Uses ~4 characters per token.
type SimpleEstimator struct{}

// Ensure SimpleEstimator implements chat.TokenCounter.
var _ chat.TokenCounter = (*SimpleEstimator)(nil)

// NewSimpleEstimator creates a new simple token estimator.
func NewSimpleEstimator() *SimpleEstimator {
	return &SimpleEstimator{}
}

// CountTokens returns an estimated token count using ~4 characters per token heuristic.
func (e *SimpleEstimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// NewCounter returns a tiktoken Estimator for encoding, or a SimpleEstimator
// when the encoding cannot be loaded (for example when its ranks cannot be
// downloaded). The load error is returned alongside the fallback so the
// caller can report it.
func NewCounter(encoding string) (chat.TokenCounter, error) {
	est, err := NewEstimator(encoding)
	if err != nil {
		return NewSimpleEstimator(), err
	}
	return est, nil
}
