package chat

// TokenCounter provides token count estimation for text content.
// Implementations must be safe for concurrent use and must be monotonic
// enough that removing text never increases the count; the prompt builder
// relies on that to terminate.
type TokenCounter interface {
	// CountTokens returns the estimated token count for the given text.
	CountTokens(text string) int
}

// TokenCounterFunc adapts an ordinary function to TokenCounter.
type TokenCounterFunc func(text string) int

// CountTokens calls f(text).
func (f TokenCounterFunc) CountTokens(text string) int {
	return f(text)
}
