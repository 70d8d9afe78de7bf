package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// titleLength bounds the title derived from the first user message.
const titleLength = 60

// Transcript is a saved snapshot of a conversation's committed history.
type Transcript struct {
	ID        string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTranscript creates an empty transcript with a fresh ID.
func NewTranscript() *Transcript {
	now := time.Now()
	return &Transcript{
		ID:        uuid.New().String(),
		Messages:  make([]Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetMessages replaces the transcript's messages with a copy of messages and
// derives a title from the first user message when none is set.
func (t *Transcript) SetMessages(messages []Message) {
	t.Messages = make([]Message, len(messages))
	copy(t.Messages, messages)
	t.UpdatedAt = time.Now()

	if t.Title != "" {
		return
	}
	for _, m := range messages {
		if m.Role == RoleUser {
			t.Title = truncateTitle(m.Content)
			return
		}
	}
}

// MessageCount returns the number of messages in the transcript.
func (t *Transcript) MessageCount() int {
	return len(t.Messages)
}

// Validate validates the transcript.
func (t *Transcript) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transcript ID cannot be empty")
	}

	for i, msg := range t.Messages {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("invalid message at index %d: %w", i, err)
		}
	}

	return nil
}

func truncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= titleLength {
		return s
	}
	return string(runes[:titleLength-3]) + "..."
}
