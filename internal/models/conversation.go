package models

import "time"

// Role identifies the author of a message. The set is closed; anything
// outside of it is rejected at append time.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem is only ever used for outgoing prompt preambles; it is
	// never stored in a conversation.
	RoleSystem Role = "system"
)

// Valid reports whether the role may appear in stored conversation history.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// MessageMetadata carries informational annotations attached to assistant
// replies. It is never consulted for control flow.
type MessageMetadata struct {
	Tokens   int     `json:"tokens,omitempty"`
	Cost     float64 `json:"cost,omitempty"`
	Provider string  `json:"provider,omitempty"`
}

// Message is a single conversation turn.
type Message struct {
	ID        string           `json:"id"`
	Content   string           `json:"content"`
	Role      Role             `json:"role"`
	Timestamp time.Time        `json:"timestamp"`
	Model     string           `json:"model,omitempty"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// Conversation is a titled, ordered sequence of messages bound to one model.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can read a conversation without
// holding the store's lock.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	dup := *c
	dup.Messages = make([]Message, len(c.Messages))
	copy(dup.Messages, c.Messages)
	for i := range dup.Messages {
		if meta := dup.Messages[i].Metadata; meta != nil {
			metaCopy := *meta
			dup.Messages[i].Metadata = &metaCopy
		}
	}
	return &dup
}
