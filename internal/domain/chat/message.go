// Package chat provides domain entities for conversational exchanges.
package chat

import (
	"fmt"

	"github.com/jbctechsolutions/streamchat/internal/domain/errors"
)

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	// RoleSystem represents a system message
	RoleSystem MessageRole = "system"
	// RoleUser represents a user message
	RoleUser MessageRole = "user"
	// RoleAssistant represents an assistant message
	RoleAssistant MessageRole = "assistant"
)

// DefaultSystemText is the system prompt used when the caller supplies none.
const DefaultSystemText = "You're a helpful assistant"

// Message represents a single chat message. Messages are values; once
// created they are never modified in place.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// NewMessage creates a new message.
func NewMessage(role MessageRole, content string) Message {
	return Message{Role: role, Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// Validate validates the message. Empty content is allowed: a stream that
// carried no data lines still commits an empty assistant turn.
func (m Message) Validate() error {
	if !m.Role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", errors.ErrInvalidMessage, m.Role)
	}
	return nil
}

// IsValid checks if the message role is valid.
func (r MessageRole) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role.
func (r MessageRole) String() string {
	return string(r)
}
