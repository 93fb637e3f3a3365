// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"sync"
	"time"

	"github.com/elsirion/fedi-ppq-mod/internal/util"
)

// DefaultTitle is the title given to a conversation before its first
// exchange names it.
const DefaultTitle = "New conversation"

// titleMaxRunes is how much of the first user message becomes the title.
const titleMaxRunes = 30

// summaryTitleMaxRunes bounds a summary promoted to a title.
const summaryTitleMaxRunes = 40

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a titled, ordered transcript with an optional generated
// summary. Message order is the transcript order and is never reordered.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	idMu   sync.Mutex
	lastID int64
)

// nextID derives an ID from the current time in milliseconds. Creating
// two conversations inside the same millisecond bumps the second past the
// first, so IDs stay unique and roughly time-ordered.
func nextID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()

	id := now.UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return strconv.FormatInt(id, 10)
}

// NewConversation creates an empty conversation with a timestamp-derived ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        nextID(now),
		Title:     DefaultTitle,
		Messages:  make([]Message, 0),
		CreatedAt: now,
	}
}

// Append adds a message to the end of the transcript.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
}

// DeriveTitle sets the title from the first user message when the
// conversation is still untitled. Longer messages keep their first 30
// characters plus an ellipsis marker.
func (c *Conversation) DeriveTitle() {
	if c.Title != DefaultTitle {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			c.Title = util.Ellipsize(msg.Content, titleMaxRunes)
			return
		}
	}
}

// ApplySummary records a generated summary and, if the conversation is
// still untitled, promotes the summary to the title.
func (c *Conversation) ApplySummary(summary string) {
	c.Summary = summary
	if c.Title == DefaultTitle {
		c.Title = util.Ellipsize(summary, summaryTitleMaxRunes)
	}
}

// DisplayTitle returns the summary when present, otherwise the title.
func (c *Conversation) DisplayTitle() string {
	if c.Summary != "" {
		return c.Summary
	}
	return c.Title
}

// ChatHistory projects the transcript onto the roles the completion
// endpoint accepts, dropping local error entries.
func (c *Conversation) ChatHistory() []Message {
	history := make([]Message, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.Role.IsChatRole() {
			history = append(history, msg)
		}
	}
	return history
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = make([]Message, len(c.Messages))
	copy(clone.Messages, c.Messages)
	return &clone
}
