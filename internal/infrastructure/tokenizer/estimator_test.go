package tokenizer

import (
	"sync"
	"testing"

	"github.com/jbctechsolutions/streamchat/internal/domain/chat"
)

func newTestEstimator(t testing.TB) *Estimator {
	t.Helper()
	estimator, err := NewEstimator("")
	if err != nil {
		t.Fatalf("NewEstimator() error: %v", err)
	}
	return estimator
}

func TestNewEstimator_DefaultEncoding(t *testing.T) {
	estimator := newTestEstimator(t)
	if estimator.Encoding() != DefaultEncoding {
		t.Errorf("Encoding() = %q, want %q", estimator.Encoding(), DefaultEncoding)
	}
}

func TestNewEstimator_UnknownEncoding(t *testing.T) {
	if _, err := NewEstimator("no_such_encoding"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestEstimator_CountTokens(t *testing.T) {
	estimator := newTestEstimator(t)

	tests := []struct {
		name      string
		text      string
		minTokens int
		maxTokens int
	}{
		{
			name:      "empty string",
			text:      "",
			minTokens: 0,
			maxTokens: 0,
		},
		{
			name:      "single word",
			text:      "hello",
			minTokens: 1,
			maxTokens: 2,
		},
		{
			name:      "system text",
			text:      chat.DefaultSystemText,
			minTokens: 4,
			maxTokens: 8,
		},
		{
			name:      "longer text",
			text:      "The quick brown fox jumps over the lazy dog.",
			minTokens: 8,
			maxTokens: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := estimator.CountTokens(tt.text)
			if count < tt.minTokens || count > tt.maxTokens {
				t.Errorf("CountTokens(%q) = %d, expected between %d and %d",
					tt.text, count, tt.minTokens, tt.maxTokens)
			}
		})
	}
}

func TestEstimator_CountTokens_ThreadSafety(t *testing.T) {
	estimator := newTestEstimator(t)
	text := "Thread safety test text."
	want := estimator.CountTokens(text)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := estimator.CountTokens(text); got != want {
					t.Errorf("CountTokens = %d, want %d", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSimpleEstimator_CountTokens(t *testing.T) {
	estimator := NewSimpleEstimator()

	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{name: "empty string", text: "", expected: 0},
		{name: "4 characters", text: "test", expected: 1},
		{name: "5 characters", text: "hello", expected: 2},
		{name: "8 characters", text: "12345678", expected: 2},
		{name: "12 characters", text: "123456789012", expected: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := estimator.CountTokens(tt.text)
			if count != tt.expected {
				t.Errorf("CountTokens(%q) = %d, expected %d", tt.text, count, tt.expected)
			}
		})
	}
}

func TestNewCounter_FallsBack(t *testing.T) {
	counter, err := NewCounter("no_such_encoding")
	if err == nil {
		t.Fatal("expected load error to be reported")
	}
	if _, ok := counter.(*SimpleEstimator); !ok {
		t.Fatalf("expected SimpleEstimator fallback, got %T", counter)
	}
}

func TestCounters_DriveHistoryBudget(t *testing.T) {
	counters := map[string]chat.TokenCounter{
		"tiktoken": newTestEstimator(t),
		"simple":   NewSimpleEstimator(),
	}

	for name, counter := range counters {
		t.Run(name, func(t *testing.T) {
			h := chat.NewHistory(counter, 0)
			prompt, err := h.BuildPrompt("hello there", "")
			if err != nil {
				t.Fatalf("BuildPrompt() error: %v", err)
			}
			if prompt.Tokens <= 0 || prompt.Tokens > chat.DefaultBudget {
				t.Errorf("prompt tokens %d outside (0, %d]", prompt.Tokens, chat.DefaultBudget)
			}
		})
	}
}

func BenchmarkEstimator_CountTokens(b *testing.B) {
	estimator := newTestEstimator(b)
	text := "This is a benchmark test for token counting performance."

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = estimator.CountTokens(text)
	}
}
