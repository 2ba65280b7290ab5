// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// agents, and knowledgebases.
package model

import (
	"time"

	"github.com/google/uuid"
)

// TitleMaxRunes is the maximum length of an auto-derived conversation title.
const TitleMaxRunes = 50

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds an ordered chat history plus metadata.
//
// Invariants:
//   - Messages is in chronological insertion order.
//   - Title is derived once from the first user message and is stable
//     afterwards.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []*Message `json:"messages"`

	// ModelID is the model this conversation defaults to. Selecting the
	// conversation restores it as the globally selected model.
	ModelID string `json:"model_id"`

	// AgentID is the persona applied to outbound turns, if any.
	AgentID string `json:"agent_id,omitempty"`
}

// NewConversation creates an empty conversation bound to a model and agent.
func NewConversation(modelID, agentID string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        "conv_" + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
		ModelID:   modelID,
		AgentID:   agentID,
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message, updates the preview, and fixes the
// title from the first user message if it is not set yet.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.Preview = msg.Preview(80)
	c.deriveTitle()
}

// RemoveMessage removes a message by ID. Returns false if not found.
func (c *Conversation) RemoveMessage(id string) bool {
	for i, msg := range c.Messages {
		if msg.ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// GetMessageByID returns a message by its ID, or nil.
func (c *Conversation) GetMessageByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// deriveTitle sets the title from the first user message, once.
func (c *Conversation) deriveTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			c.Title = msg.Preview(TitleMaxRunes)
			return
		}
	}
}

// GetTitle returns the conversation title or a placeholder.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}
