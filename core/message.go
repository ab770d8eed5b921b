package core

import (
	"time"

	"github.com/google/uuid"
)

// Conversation roles. A message carries exactly one role; tool-result
// messages additionally reference the capability call that produced them.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is one entry in a session's ordered, append-only conversation log.
// Messages are never mutated or deleted after being appended.
type Message struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	CallID     string     `json:"call_id,omitempty"`    // set for tool-result messages
	Capability string     `json:"capability,omitempty"` // set for tool-result messages
	TokensUsed *int       `json:"tokens_used,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewMessage creates a message with a fresh id and UTC timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewUserMessage is a convenience wrapper for a user-authored message.
func NewUserMessage(content string) Message { return NewMessage(RoleUser, content) }

// NewAssistantMessage is a convenience wrapper for an assistant message.
func NewAssistantMessage(content string) Message { return NewMessage(RoleAssistant, content) }

// NewToolMessage records a capability result in the conversation so the
// oracle can read it on the next round.
func NewToolMessage(callID, capability, content string) Message {
	m := NewMessage(RoleTool, content)
	m.CallID = callID
	m.Capability = capability
	return m
}

// NewID generates a unique identifier used for messages, capability call
// correlation and turn tracking.
func NewID() string { return uuid.NewString() }
