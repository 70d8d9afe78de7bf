// Package logging provides structured logging infrastructure for streamchat.
// It wraps Go's standard log/slog package with context-aware logging, correlation IDs,
// and exchange-specific log attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// contextKey is used for storing logger-related values in context.
type contextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"
	// ExchangeIDKey is the context key for the ID of one request/stream exchange.
	ExchangeIDKey contextKey = "exchange_id"
	// ConversationIDKey is the context key for conversation IDs.
	ConversationIDKey contextKey = "conversation_id"
	// EndpointKey is the context key for the remote endpoint URL.
	EndpointKey contextKey = "endpoint"
)

// Level represents log levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format represents log output formats.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     os.Stderr,
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger with additional functionality for streamchat.
type Logger struct {
	slogger *slog.Logger
	level   *slog.LevelVar
}

// global is the package-level default logger.
var (
	global     *Logger
	globalOnce sync.Once
)

// Init initializes the global logger with the provided configuration.
func Init(cfg Config) *Logger {
	globalOnce.Do(func() {
		global = New(cfg)
	})
	return global
}

// Default returns the global logger, initializing it with defaults if necessary.
func Default() *Logger {
	if global == nil {
		Init(DefaultConfig())
	}
	return global
}

// New creates a new Logger with the provided configuration.
func New(cfg Config) *Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize time format
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		slogger: slog.New(handler),
		level:   level,
	}
}

// parseLevel converts a Level to slog.Level.
func parseLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the minimum level of l and of every logger derived from it
// with With or WithGroup.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(parseLevel(level))
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slogger: l.slogger.With(args...),
		level:   l.level,
	}
}

// WithGroup returns a new Logger with the given group name.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{
		slogger: l.slogger.WithGroup(name),
		level:   l.level,
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// DebugContext logs at debug level with context.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// InfoContext logs at info level with context.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// WarnContext logs at warn level with context.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// ErrorContext logs at error level with context.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// enrichArgs extracts context values and adds them as log attributes.
func (l *Logger) enrichArgs(ctx context.Context, args []any) []any {
	enriched := make([]any, 0, len(args)+8)

	// Extract standard context values
	if v := ctx.Value(CorrelationIDKey); v != nil {
		enriched = append(enriched, "correlation_id", v)
	}
	if v := ctx.Value(ExchangeIDKey); v != nil {
		enriched = append(enriched, "exchange_id", v)
	}
	if v := ctx.Value(ConversationIDKey); v != nil {
		enriched = append(enriched, "conversation_id", v)
	}
	if v := ctx.Value(EndpointKey); v != nil {
		enriched = append(enriched, "endpoint", v)
	}

	enriched = append(enriched, args...)
	return enriched
}

// --- Context helpers ---

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithExchangeID adds an exchange ID to the context.
func WithExchangeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ExchangeIDKey, id)
}

// WithConversationID adds a conversation ID to the context.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ConversationIDKey, id)
}

// WithEndpoint adds the remote endpoint to the context.
func WithEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, EndpointKey, endpoint)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if v := ctx.Value(CorrelationIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ExchangeID extracts the exchange ID from context.
func ExchangeID(ctx context.Context) string {
	if v, ok := ctx.Value(ExchangeIDKey).(string); ok {
		return v
	}
	return ""
}

// --- Exchange logging helpers ---

// LogExchangeStart logs an outgoing request.
func LogExchangeStart(ctx context.Context, logger *Logger, promptTokens, messageCount, limit int) {
	logger.DebugContext(ctx, "exchange started",
		"prompt_tokens", promptTokens,
		"message_count", messageCount,
		"limit", limit,
	)
}

// LogExchangeComplete logs a stream that ended normally and was committed.
func LogExchangeComplete(ctx context.Context, logger *Logger, deltas, chars int, duration time.Duration) {
	logger.InfoContext(ctx, "exchange completed",
		"deltas", deltas,
		"response_chars", chars,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogExchangeFailed logs an exchange that ended without a commit.
func LogExchangeFailed(ctx context.Context, logger *Logger, err error, partialChars int, duration time.Duration) {
	logger.ErrorContext(ctx, "exchange failed",
		"error", err.Error(),
		"partial_chars", partialChars,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogBadStatus logs a non-success response status.
func LogBadStatus(ctx context.Context, logger *Logger, statusCode int, reason string) {
	logger.WarnContext(ctx, "bad response status",
		"status", statusCode,
		"reason", reason,
	)
}

// LogPromptTruncated logs history entries dropped to fit the token budget.
func LogPromptTruncated(ctx context.Context, logger *Logger, dropped, tokens, budget int) {
	logger.InfoContext(ctx, "history truncated to fit budget",
		"dropped", dropped,
		"prompt_tokens", tokens,
		"budget", budget,
	)
}

// LogPinLoadFailure logs a pinned certificate resource that could not be
// loaded. Pinning continues without it.
func LogPinLoadFailure(logger *Logger, name string, err error) {
	logger.Warn("pinned certificate not loaded",
		"name", name,
		"error", err.Error(),
	)
}

// LogTranscriptSaveFailed logs a transcript that could not be persisted.
func LogTranscriptSaveFailed(ctx context.Context, logger *Logger, transcriptID string, err error) {
	logger.WarnContext(ctx, "transcript save failed",
		"transcript_id", transcriptID,
		"error", err.Error(),
	)
}
