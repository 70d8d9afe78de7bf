package chat

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	domainErrors "github.com/jbctechsolutions/streamchat/internal/domain/errors"
)

// byteCounter charges one token per byte, which keeps budgets easy to reason about.
var byteCounter = TokenCounterFunc(func(text string) int { return len(text) })

func TestNewHistory_DefaultBudget(t *testing.T) {
	h := NewHistory(byteCounter, 0)

	if h.Budget() != DefaultBudget {
		t.Errorf("expected budget %d, got %d", DefaultBudget, h.Budget())
	}
	if h.Len() != 0 {
		t.Errorf("expected empty history, got %d", h.Len())
	}
}

func TestBuildPrompt_Order(t *testing.T) {
	h := NewHistory(byteCounter, 100)
	h.Append("q1", "a1")

	prompt, err := h.BuildPrompt("q2", "sys")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Message{
		NewSystemMessage("sys"),
		NewUserMessage("q1"),
		NewAssistantMessage("a1"),
		NewUserMessage("q2"),
	}
	if len(prompt.Messages) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(prompt.Messages))
	}
	for i := range want {
		if prompt.Messages[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, prompt.Messages[i], want[i])
		}
	}
	if prompt.Tokens != len("sysq1a1q2") {
		t.Errorf("expected %d tokens, got %d", len("sysq1a1q2"), prompt.Tokens)
	}
	if prompt.Dropped != 0 {
		t.Errorf("expected nothing dropped, got %d", prompt.Dropped)
	}
}

func TestBuildPrompt_TruncatesOldestFirst(t *testing.T) {
	h := NewHistory(byteCounter, 12)
	h.Append("aaaa", "bbbb")
	h.Append("cc", "dd")

	// sys(1) + aaaa + bbbb + cc + dd + u(1) = 14 > 12, so "aaaa" must go,
	// leaving 10.
	prompt, err := h.BuildPrompt("u", "s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if prompt.Dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", prompt.Dropped)
	}
	if prompt.Tokens > 12 {
		t.Errorf("prompt cost %d exceeds budget", prompt.Tokens)
	}

	remaining := h.Messages()
	if len(remaining) != 3 {
		t.Fatalf("expected 3 messages left in history, got %d", len(remaining))
	}
	if remaining[0] != NewAssistantMessage("bbbb") {
		t.Errorf("expected oldest survivor to be the first assistant reply, got %+v", remaining[0])
	}
}

func TestBuildPrompt_NeverExceedsBudget(t *testing.T) {
	for budget := 10; budget <= 80; budget += 7 {
		t.Run(fmt.Sprintf("budget_%d", budget), func(t *testing.T) {
			h := NewHistory(byteCounter, budget)
			for i := 0; i < 6; i++ {
				h.Append(strings.Repeat("u", i+1), strings.Repeat("a", 2*i+1))
			}

			prompt, err := h.BuildPrompt("hello", "sys")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := byteCounter.CountTokens(joinContent(prompt.Messages)); got > budget {
				t.Errorf("prompt cost %d exceeds budget %d", got, budget)
			}
		})
	}
}

func TestBuildPrompt_OverflowWithEmptyHistory(t *testing.T) {
	h := NewHistory(byteCounter, 5)

	prompt, err := h.BuildPrompt("too long for budget", "system")
	if prompt != nil {
		t.Errorf("expected nil prompt, got %+v", prompt)
	}
	if !errors.Is(err, domainErrors.ErrPromptOverflow) {
		t.Fatalf("expected ErrPromptOverflow, got %v", err)
	}

	var overflow *domainErrors.OverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("expected *OverflowError, got %T", err)
	}
	if overflow.Budget != 5 {
		t.Errorf("expected budget 5, got %d", overflow.Budget)
	}
	if h.Len() != 0 {
		t.Errorf("expected history to stay empty, got %d", h.Len())
	}
}

func TestBuildPrompt_OverflowAfterDrainingHistory(t *testing.T) {
	h := NewHistory(byteCounter, 5)
	h.Append("a", "b")

	_, err := h.BuildPrompt("user text that cannot fit", "s")
	if !errors.Is(err, domainErrors.ErrPromptOverflow) {
		t.Fatalf("expected ErrPromptOverflow, got %v", err)
	}
	if h.Len() != 2 {
		t.Errorf("expected history untouched after overflow, got %d messages", h.Len())
	}
}

func TestAppend(t *testing.T) {
	h := NewHistory(byteCounter, 0)
	h.Append("question", "answer")

	msgs := h.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0] != NewUserMessage("question") || msgs[1] != NewAssistantMessage("answer") {
		t.Errorf("unexpected turn: %+v", msgs)
	}
}

func TestClear(t *testing.T) {
	h := NewHistory(byteCounter, 0)
	h.Append("q", "a")
	h.Clear()

	if h.Len() != 0 {
		t.Errorf("expected empty history, got %d", h.Len())
	}
}

func TestReplace(t *testing.T) {
	h := NewHistory(byteCounter, 0)
	h.Append("old", "old")

	replacement := []Message{NewUserMessage("new q"), NewAssistantMessage("new a")}
	if err := h.Replace(replacement); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	replacement[0] = NewUserMessage("mutated")
	if got := h.Messages()[0].Content; got != "new q" {
		t.Errorf("history aliased the caller's slice: got %q", got)
	}
}

func TestReplace_InvalidLeavesHistoryUntouched(t *testing.T) {
	h := NewHistory(byteCounter, 0)
	h.Append("q", "a")

	err := h.Replace([]Message{NewUserMessage("x"), {Role: "bogus", Content: "y"}})
	if !errors.Is(err, domainErrors.ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if h.Len() != 2 {
		t.Errorf("expected original 2 messages, got %d", h.Len())
	}
}

func TestMessages_ReturnsCopy(t *testing.T) {
	h := NewHistory(byteCounter, 0)
	h.Append("q", "a")

	msgs := h.Messages()
	msgs[0] = NewUserMessage("changed")

	if h.Messages()[0].Content != "q" {
		t.Error("Messages() should return a copy")
	}
}

func TestFit_DoesNotStoreTruncation(t *testing.T) {
	h := NewHistory(byteCounter, 10)
	h.Append("aaaa", "bbbb")
	h.Append("cc", "dd")

	prompt, err := h.Fit("uu", "s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt.Dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", prompt.Dropped)
	}
	if prompt.Tokens > h.Budget() {
		t.Errorf("prompt tokens %d exceed budget %d", prompt.Tokens, h.Budget())
	}
	if h.Len() != 4 {
		t.Errorf("Fit must not mutate history, len = %d", h.Len())
	}
}

func TestCommit_AppliesTruncationAndAppends(t *testing.T) {
	h := NewHistory(byteCounter, 10)
	h.Append("aaaa", "bbbb")
	h.Append("cc", "dd")

	prompt, err := h.Fit("uu", "s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Commit(prompt, "uu", "reply")

	want := []Message{
		NewUserMessage("cc"),
		NewAssistantMessage("dd"),
		NewUserMessage("uu"),
		NewAssistantMessage("reply"),
	}
	got := h.Messages()
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCommit_WithoutTruncationGrowsByTwo(t *testing.T) {
	h := NewHistory(byteCounter, 0)
	h.Append("q1", "a1")

	prompt, err := h.Fit("q2", DefaultSystemText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Commit(prompt, "q2", "")

	if h.Len() != 4 {
		t.Fatalf("expected 4 messages, got %d", h.Len())
	}
	last := h.Messages()[3]
	if last.Role != RoleAssistant || last.Content != "" {
		t.Errorf("unexpected last message %v", last)
	}
}
