package chat

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jbctechsolutions/streamchat/internal/domain/errors"
)

// DefaultBudget is the context window, in tokens, a prompt must fit.
const DefaultBudget = 4096

// Prompt is the ordered message list sent for one exchange:
// the system message, the retained history, then the user message.
type Prompt struct {
	Messages []Message
	// Tokens is the counted cost of the prompt.
	Tokens int
	// Dropped is how many history entries were truncated to fit.
	Dropped int
}

// History is the ordered list of prior turns of a conversation. It only
// grows by whole turns and is only shrunk from the front by the budget.
type History struct {
	mu       sync.RWMutex
	messages []Message
	counter  TokenCounter
	budget   int
}

// NewHistory creates an empty history that keeps prompts within budget
// tokens as measured by counter. A non-positive budget selects DefaultBudget.
func NewHistory(counter TokenCounter, budget int) *History {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &History{
		messages: make([]Message, 0),
		counter:  counter,
		budget:   budget,
	}
}

// Budget returns the token budget.
func (h *History) Budget() int {
	return h.budget
}

// BuildPrompt assembles the prompt for userText under systemText. While the
// prompt exceeds the budget the oldest history entry is dropped, and the
// truncated history is stored once a fitting prompt is found. If the prompt
// still does not fit with no history at all, an *errors.OverflowError is
// returned and history is left as it was.
func (h *History) BuildPrompt(userText, systemText string) (*Prompt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prompt, err := h.fit(userText, systemText)
	if err != nil {
		return nil, err
	}
	h.messages = h.messages[prompt.Dropped:]
	return prompt, nil
}

// Fit computes the same prompt as BuildPrompt without storing the
// truncation. Pass the result to Commit once the exchange succeeds.
func (h *History) Fit(userText, systemText string) (*Prompt, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.fit(userText, systemText)
}

// Commit applies the truncation recorded in prompt and appends the turn, in
// one step. prompt must come from Fit on the current history.
func (h *History) Commit(prompt *Prompt, userText, assistantText string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := min(prompt.Dropped, len(h.messages))
	kept := make([]Message, 0, len(h.messages)-dropped+2)
	kept = append(kept, h.messages[dropped:]...)
	h.messages = append(kept, NewUserMessage(userText), NewAssistantMessage(assistantText))
}

func (h *History) fit(userText, systemText string) (*Prompt, error) {
	kept := h.messages
	for {
		messages := make([]Message, 0, len(kept)+2)
		messages = append(messages, NewSystemMessage(systemText))
		messages = append(messages, kept...)
		messages = append(messages, NewUserMessage(userText))

		tokens := h.counter.CountTokens(joinContent(messages))
		if tokens <= h.budget {
			return &Prompt{Messages: messages, Tokens: tokens, Dropped: len(h.messages) - len(kept)}, nil
		}

		if len(kept) == 0 {
			return nil, &errors.OverflowError{Tokens: tokens, Budget: h.budget}
		}

		kept = kept[1:]
	}
}

// Append records a completed turn: the user message followed by the
// assistant response.
func (h *History) Append(userText, assistantText string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, NewUserMessage(userText), NewAssistantMessage(assistantText))
}

// Clear removes all messages.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = make([]Message, 0)
}

// Replace swaps the stored messages for a copy of messages.
func (h *History) Replace(messages []Message) error {
	for i, msg := range messages {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("message at index %d: %w", i, err)
		}
	}

	replacement := make([]Message, len(messages))
	copy(replacement, messages)

	h.mu.Lock()
	h.messages = replacement
	h.mu.Unlock()
	return nil
}

// Messages returns a copy of the stored messages.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	messages := make([]Message, len(h.messages))
	copy(messages, h.messages)
	return messages
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// joinContent concatenates message contents the way the prompt is measured:
// back to back with no separator.
func joinContent(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
	}
	return b.String()
}
