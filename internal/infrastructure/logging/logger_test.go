package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		check  func(t *testing.T, buf *bytes.Buffer)
	}{
		{
			name: "text format",
			config: Config{
				Level:  LevelInfo,
				Format: FormatText,
			},
			check: func(t *testing.T, buf *bytes.Buffer) {
				if !strings.Contains(buf.String(), "level=INFO") {
					t.Error("expected text format with level=INFO")
				}
			},
		},
		{
			name: "json format",
			config: Config{
				Level:  LevelInfo,
				Format: FormatJSON,
			},
			check: func(t *testing.T, buf *bytes.Buffer) {
				var m map[string]interface{}
				if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
					t.Errorf("expected valid JSON output: %v", err)
				}
				if m["level"] != "INFO" {
					t.Errorf("expected level INFO, got %v", m["level"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.config.Output = buf

			logger := New(tt.config)
			logger.Info("test message")

			tt.check(t, buf)
		})
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		logMethod func(l *Logger)
		expected  bool
	}{
		{
			name:      "debug at debug level",
			level:     LevelDebug,
			logMethod: func(l *Logger) { l.Debug("test") },
			expected:  true,
		},
		{
			name:      "debug at info level",
			level:     LevelInfo,
			logMethod: func(l *Logger) { l.Debug("test") },
			expected:  false,
		},
		{
			name:      "info at info level",
			level:     LevelInfo,
			logMethod: func(l *Logger) { l.Info("test") },
			expected:  true,
		},
		{
			name:      "warn at error level",
			level:     LevelError,
			logMethod: func(l *Logger) { l.Warn("test") },
			expected:  false,
		},
		{
			name:      "error at error level",
			level:     LevelError,
			logMethod: func(l *Logger) { l.Error("test") },
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(Config{
				Level:  tt.level,
				Format: FormatText,
				Output: buf,
			})

			tt.logMethod(logger)

			hasOutput := buf.Len() > 0
			if hasOutput != tt.expected {
				t.Errorf("expected output=%v, got output=%v", tt.expected, hasOutput)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{
		Level:  LevelInfo,
		Format: FormatText,
		Output: buf,
	})
	child := logger.With("component", "transport")

	logger.Debug("hidden")
	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no debug output at info level, got %q", buf.String())
	}

	logger.SetLevel(LevelDebug)
	logger.Debug("parent visible")
	child.Debug("child visible")
	out := buf.String()
	if !strings.Contains(out, "parent visible") {
		t.Errorf("expected parent debug output after SetLevel, got %q", out)
	}
	if !strings.Contains(out, "child visible") {
		t.Errorf("expected derived logger to follow SetLevel, got %q", out)
	}

	buf.Reset()
	logger.SetLevel(LevelError)
	child.Warn("suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected warn to be suppressed at error level, got %q", buf.String())
	}
}

func TestContextEnrichment(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{
		Level:  LevelDebug,
		Format: FormatJSON,
		Output: buf,
	})

	ctx := context.Background()
	ctx = WithCorrelationID(ctx, "corr-123")
	ctx = WithExchangeID(ctx, "ex-456")
	ctx = WithConversationID(ctx, "conv-789")
	ctx = WithEndpoint(ctx, "https://example.test")

	logger.InfoContext(ctx, "enriched log")

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	expected := map[string]string{
		"correlation_id":  "corr-123",
		"exchange_id":     "ex-456",
		"conversation_id": "conv-789",
		"endpoint":        "https://example.test",
	}

	for key, expectedVal := range expected {
		if m[key] != expectedVal {
			t.Errorf("expected %s=%s, got %v", key, expectedVal, m[key])
		}
	}
}

func TestWith(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: buf,
	})

	childLogger := logger.With("component", "executor")
	childLogger.Info("with attributes")

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if m["component"] != "executor" {
		t.Errorf("expected component=executor, got %v", m["component"])
	}
}

func TestWithGroup(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: buf,
	})

	childLogger := logger.WithGroup("metrics")
	childLogger.Info("grouped log", "count", 42)

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	// The group should contain the "count" attribute
	metrics, ok := m["metrics"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected metrics group, got %v", m["metrics"])
	}

	if metrics["count"] != float64(42) {
		t.Errorf("expected count=42, got %v", metrics["count"])
	}
}

func TestCorrelationIDExtraction(t *testing.T) {
	ctx := context.Background()

	// No correlation ID
	if id := CorrelationID(ctx); id != "" {
		t.Errorf("expected empty correlation ID, got %s", id)
	}

	// With correlation ID
	ctx = WithCorrelationID(ctx, "test-id")
	if id := CorrelationID(ctx); id != "test-id" {
		t.Errorf("expected correlation ID 'test-id', got %s", id)
	}
}

func TestExchangeIDExtraction(t *testing.T) {
	ctx := context.Background()
	if id := ExchangeID(ctx); id != "" {
		t.Errorf("expected empty exchange ID, got %s", id)
	}

	ctx = WithExchangeID(ctx, "ex-1")
	if id := ExchangeID(ctx); id != "ex-1" {
		t.Errorf("expected exchange ID 'ex-1', got %s", id)
	}
}

func TestExchangeLogHelpers(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{
		Level:  LevelDebug,
		Format: FormatJSON,
		Output: buf,
	})

	ctx := WithExchangeID(context.Background(), "ex-1")

	decode := func(t *testing.T) map[string]interface{} {
		t.Helper()
		var m map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
			t.Fatalf("failed to parse JSON: %v", err)
		}
		return m
	}

	t.Run("LogExchangeStart", func(t *testing.T) {
		buf.Reset()
		LogExchangeStart(ctx, logger, 120, 5, 0)

		m := decode(t)
		if m["msg"] != "exchange started" {
			t.Errorf("unexpected message: %v", m["msg"])
		}
		if m["prompt_tokens"] != float64(120) {
			t.Errorf("unexpected prompt_tokens: %v", m["prompt_tokens"])
		}
		if m["exchange_id"] != "ex-1" {
			t.Errorf("unexpected exchange_id: %v", m["exchange_id"])
		}
	})

	t.Run("LogExchangeComplete", func(t *testing.T) {
		buf.Reset()
		LogExchangeComplete(ctx, logger, 3, 14, 2*time.Second)

		m := decode(t)
		if m["duration_ms"] != float64(2000) {
			t.Errorf("unexpected duration_ms: %v", m["duration_ms"])
		}
		if m["deltas"] != float64(3) {
			t.Errorf("unexpected deltas: %v", m["deltas"])
		}
	})

	t.Run("LogExchangeFailed", func(t *testing.T) {
		buf.Reset()
		LogExchangeFailed(ctx, logger, context.Canceled, 7, time.Second)

		m := decode(t)
		if m["level"] != "ERROR" {
			t.Errorf("unexpected level: %v", m["level"])
		}
		if m["error"] != "context canceled" {
			t.Errorf("unexpected error: %v", m["error"])
		}
	})

	t.Run("LogBadStatus", func(t *testing.T) {
		buf.Reset()
		LogBadStatus(ctx, logger, 429, "rate limited")

		m := decode(t)
		if m["status"] != float64(429) || m["reason"] != "rate limited" {
			t.Errorf("unexpected attributes: %v", m)
		}
	})

	t.Run("LogPromptTruncated", func(t *testing.T) {
		buf.Reset()
		LogPromptTruncated(ctx, logger, 2, 4000, 4096)

		m := decode(t)
		if m["dropped"] != float64(2) || m["budget"] != float64(4096) {
			t.Errorf("unexpected attributes: %v", m)
		}
	})

	t.Run("LogPinLoadFailure", func(t *testing.T) {
		buf.Reset()
		LogPinLoadFailure(logger, "g1sr", errors.New("file does not exist"))

		m := decode(t)
		if m["level"] != "WARN" || m["name"] != "g1sr" {
			t.Errorf("unexpected attributes: %v", m)
		}
	})
}

func TestDefaultLogger(t *testing.T) {
	// Reset global for test
	global = nil
	globalOnce = sync.Once{}

	logger := Default()
	if logger == nil {
		t.Error("expected non-nil default logger")
	}

	// Calling Default() again should return the same instance
	logger2 := Default()
	if logger != logger2 {
		t.Error("expected same logger instance from Default()")
	}
}
