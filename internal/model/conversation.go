// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// NewConversationName is the name a conversation has before its first message.
	NewConversationName = "New Conversation"

	// NameMaxRunes is how much of the first message is kept as the name.
	NameMaxRunes = 30
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a chat transcript with its generation settings.
// Messages are chronological; the last element is the most recent.
type Conversation struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Messages
	Messages []Message `json:"messages"`

	// Generation settings
	Model       OpenAIModel `json:"model"`
	Prompt      string      `json:"prompt"`
	Temperature float64     `json:"temperature"`

	// FolderID is nil when the conversation is not filed.
	FolderID *string `json:"folderId"`
}

// NewConversation creates an empty conversation with a fresh ID.
func NewConversation(s Settings) Conversation {
	return Conversation{
		ID:          uuid.NewString(),
		Name:        NewConversationName,
		Messages:    []Message{},
		Model:       s.Model,
		Prompt:      s.Prompt,
		Temperature: s.Temperature,
	}
}

// NewConversationAfter creates a conversation that inherits the model and
// temperature of last, the most recent conversation in the collection.
// The prompt always starts from the default.
func NewConversationAfter(s Settings, last *Conversation) Conversation {
	c := NewConversation(s)
	if last == nil {
		return c
	}
	if !last.Model.IsZero() {
		c.Model = last.Model
	}
	if last.Temperature > 0 {
		c.Temperature = last.Temperature
	}
	return c
}

// Clone returns a deep copy.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	if c.FolderID != nil {
		f := *c.FolderID
		out.FolderID = &f
	}
	return out
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// WithMessage returns a copy with msg appended.
func (c Conversation) WithMessage(msg Message) Conversation {
	out := c.Clone()
	out.Messages = append(out.Messages, msg)
	return out
}

// DropLast returns a copy with the last n messages removed.
// n is clamped to [0, len(Messages)].
func (c Conversation) DropLast(n int) Conversation {
	out := c.Clone()
	if n <= 0 {
		return out
	}
	if n > len(out.Messages) {
		n = len(out.Messages)
	}
	out.Messages = out.Messages[:len(out.Messages)-n]
	return out
}

// LastMessage returns the most recent message.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// LastUserMessage returns the most recent message sent by the user.
func (c Conversation) LastUserMessage() (Message, bool) {
	if i := c.LastUserIndex(); i >= 0 {
		return c.Messages[i], true
	}
	return Message{}, false
}

// LastUserIndex returns the index of the most recent user message, or -1.
func (c Conversation) LastUserIndex() int {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].IsUser() {
			return i
		}
	}
	return -1
}

// LastAssistantMessage returns the most recent non-empty assistant reply.
func (c Conversation) LastAssistantMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant && c.Messages[i].Content != "" {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// IsEmpty returns true if the conversation has no messages.
func (c Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// InFolder returns true if the conversation is filed under folderID.
func (c Conversation) InFolder(folderID string) bool {
	return c.FolderID != nil && *c.FolderID == folderID
}

// =============================================================================
// NAMING
// =============================================================================

// DeriveName builds a conversation name from the first message's content.
func DeriveName(content string) string {
	return truncateRunes(content, NameMaxRunes, "...")
}

// WithDerivedName names the conversation after its first message.
// Conversations with more or fewer than one message are returned unchanged.
func (c Conversation) WithDerivedName() Conversation {
	if len(c.Messages) != 1 {
		return c
	}
	out := c.Clone()
	out.Name = DeriveName(c.Messages[0].Content)
	return out
}

// Matches returns true if term appears in the name or any message.
func (c Conversation) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.Name), term) {
		return true
	}
	for _, m := range c.Messages {
		if strings.Contains(strings.ToLower(m.Content), term) {
			return true
		}
	}
	return false
}

// =============================================================================
// COLLECTION
// =============================================================================

// Conversations is the ordered conversation history.
type Conversations []Conversation

// Upsert returns a copy with c replacing the element of the same ID in place,
// or appended when no element matches.
func (cs Conversations) Upsert(c Conversation) Conversations {
	out := make(Conversations, len(cs), len(cs)+1)
	copy(out, cs)
	for i := range out {
		if out[i].ID == c.ID {
			out[i] = c
			return out
		}
	}
	return append(out, c)
}

// Find returns the conversation with the given ID.
func (cs Conversations) Find(id string) (Conversation, bool) {
	for _, c := range cs {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// Index returns the position of the conversation with the given ID, or -1.
func (cs Conversations) Index(id string) int {
	for i, c := range cs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Remove returns a copy without the conversation with the given ID.
func (cs Conversations) Remove(id string) Conversations {
	out := make(Conversations, 0, len(cs))
	for _, c := range cs {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// Last returns the most recently added conversation, or nil.
func (cs Conversations) Last() *Conversation {
	if len(cs) == 0 {
		return nil
	}
	c := cs[len(cs)-1]
	return &c
}

// Filter returns the conversations matching term.
func (cs Conversations) Filter(term string) Conversations {
	out := make(Conversations, 0, len(cs))
	for _, c := range cs {
		if c.Matches(term) {
			out = append(out, c)
		}
	}
	return out
}
