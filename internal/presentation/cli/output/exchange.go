package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ExchangeOutput renders one streamed assistant reply as it arrives.
type ExchangeOutput struct {
	mu        sync.Mutex
	writer    io.Writer
	colored   bool
	showStats bool
	label     string
	startTime time.Time
	content   strings.Builder
	deltas    int
}

// ExchangeOutputOption is a functional option for configuring ExchangeOutput.
type ExchangeOutputOption func(*ExchangeOutput)

// NewExchangeOutput creates an ExchangeOutput with the given options.
func NewExchangeOutput(opts ...ExchangeOutputOption) *ExchangeOutput {
	eo := &ExchangeOutput{
		writer:    os.Stdout,
		colored:   true,
		showStats: true,
		label:     "assistant",
	}

	for _, opt := range opts {
		opt(eo)
	}

	return eo
}

// WithExchangeWriter sets the output writer.
func WithExchangeWriter(w io.Writer) ExchangeOutputOption {
	return func(eo *ExchangeOutput) {
		eo.writer = w
	}
}

// WithExchangeColor enables or disables colored output.
func WithExchangeColor(enabled bool) ExchangeOutputOption {
	return func(eo *ExchangeOutput) {
		eo.colored = enabled
	}
}

// WithShowStats enables or disables the summary line after each reply.
func WithShowStats(enabled bool) ExchangeOutputOption {
	return func(eo *ExchangeOutput) {
		eo.showStats = enabled
	}
}

// WithLabel sets the speaker label printed before each reply.
func WithLabel(label string) ExchangeOutputOption {
	return func(eo *ExchangeOutput) {
		eo.label = label
	}
}

// Start resets the counters and prints the speaker label.
func (eo *ExchangeOutput) Start() {
	eo.mu.Lock()
	defer eo.mu.Unlock()

	eo.startTime = time.Now()
	eo.content.Reset()
	eo.deltas = 0

	fmt.Fprint(eo.writer, colorize(eo.label+": ", ColorCyan, eo.colored))
}

// WriteDelta prints one text delta without adding separators.
func (eo *ExchangeOutput) WriteDelta(delta string) {
	eo.mu.Lock()
	defer eo.mu.Unlock()

	eo.deltas++
	eo.content.WriteString(delta)
	_, _ = fmt.Fprint(eo.writer, delta)
}

// Complete ends the reply line and prints the summary.
func (eo *ExchangeOutput) Complete() {
	eo.mu.Lock()
	defer eo.mu.Unlock()

	eo.endLine()
	if !eo.showStats {
		return
	}
	stats := fmt.Sprintf("(%d deltas, %d chars | %s)",
		eo.deltas, eo.content.Len(), formatStreamDuration(time.Since(eo.startTime)))
	fmt.Fprintln(eo.writer, colorize(stats, ColorDim, eo.colored))
}

// Fail ends the reply line and prints err. Text already shown stays on
// screen even though it was not kept in the conversation.
func (eo *ExchangeOutput) Fail(err error) {
	eo.mu.Lock()
	defer eo.mu.Unlock()

	eo.endLine()
	fmt.Fprintln(eo.writer, colorize(fmt.Sprintf("✗ reply failed: %v", err), ColorRed, eo.colored))
}

// Stats returns the delta and character counts of the current reply.
func (eo *ExchangeOutput) Stats() (deltas, chars int) {
	eo.mu.Lock()
	defer eo.mu.Unlock()
	return eo.deltas, eo.content.Len()
}

func (eo *ExchangeOutput) endLine() {
	if !strings.HasSuffix(eo.content.String(), "\n") {
		fmt.Fprintln(eo.writer)
	}
}

// formatStreamDuration formats a duration for display.
func formatStreamDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
