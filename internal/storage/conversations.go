// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the conversation collection.
//
// The whole collection is one schema-versioned JSON document, written
// atomically on every mutation. Keeping the list in a single document
// preserves its order byte-for-byte across save/load, which is the
// ordering contract the conversation list view depends on.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/elsirion/fedi-ppq-mod/internal/model"
	"github.com/elsirion/fedi-ppq-mod/internal/util"
)

// SchemaVersion is the current on-disk format version. Version 0 (the
// field absent) is the legacy shape without summaries; it loads cleanly
// because summary is optional.
const SchemaVersion = 1

// ErrConversationNotFound is returned when an ID is not in the collection.
var ErrConversationNotFound = errors.New("conversation not found")

// document is the persisted envelope around the collection.
type document struct {
	SchemaVersion int                   `json:"schema_version"`
	Conversations []*model.Conversation `json:"conversations"`
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore owns the persisted collection. The collection is
// ordered most-recent-first; new conversations are prepended.
//
// All methods are safe for concurrent use. Mutations are serialized so a
// message append and a later title/summary update cannot lose each other.
type ConversationStore struct {
	mu            sync.Mutex
	path          string
	conversations []*model.Conversation
}

// NewConversationStore creates a store backed by the given file and loads
// the existing collection, migrating older formats as needed. A missing
// file is an empty collection, not an error.
func NewConversationStore(path string) (*ConversationStore, error) {
	s := &ConversationStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ConversationStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.conversations = make([]*model.Conversation, 0)
			return nil
		}
		return fmt.Errorf("failed to read conversations: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		// Legacy shape: a bare array without the envelope.
		var bare []*model.Conversation
		if err2 := json.Unmarshal(data, &bare); err2 != nil {
			return fmt.Errorf("failed to parse conversations: %w", err)
		}
		doc = document{SchemaVersion: 0, Conversations: bare}
	}

	s.conversations = migrate(doc)
	return nil
}

// migrate upgrades older document versions to the current schema.
func migrate(doc document) []*model.Conversation {
	convs := doc.Conversations
	if convs == nil {
		convs = make([]*model.Conversation, 0)
	}

	switch doc.SchemaVersion {
	case 0:
		// Version 0 predates summaries and the envelope; summary defaults
		// to empty via omitempty, nothing else changes shape.
	case SchemaVersion:
	default:
		// A newer version than we know. Load what parses; unknown fields
		// were already dropped by the decoder.
	}

	for _, conv := range convs {
		if conv.Title == "" {
			conv.Title = model.DefaultTitle
		}
		if conv.Messages == nil {
			conv.Messages = make([]model.Message, 0)
		}
	}
	return convs
}

// save persists the collection. Caller must hold s.mu.
func (s *ConversationStore) save() error {
	doc := document{
		SchemaVersion: SchemaVersion,
		Conversations: s.conversations,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}
	return util.AtomicWriteFile(s.path, data, 0644)
}

// =============================================================================
// OPERATIONS
// =============================================================================

// List returns the collection in stored order (most recent first). The
// returned conversations are deep copies.
func (s *ConversationStore) List() []*model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		out[i] = conv.Clone()
	}
	return out
}

// Get returns a copy of the conversation with the given ID.
func (s *ConversationStore) Get(id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv.Clone(), nil
		}
	}
	return nil, ErrConversationNotFound
}

// Exists reports whether the collection contains the given ID.
func (s *ConversationStore) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range s.conversations {
		if conv.ID == id {
			return true
		}
	}
	return false
}

// Prepend inserts a new conversation at the front of the collection and
// persists it.
func (s *ConversationStore) Prepend(conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = append([]*model.Conversation{conv.Clone()}, s.conversations...)
	return s.save()
}

// Update replaces the stored conversation with the same ID and persists
// the collection. Position in the list is unchanged.
func (s *ConversationStore) Update(conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.conversations {
		if existing.ID == conv.ID {
			s.conversations[i] = conv.Clone()
			return s.save()
		}
	}
	return ErrConversationNotFound
}

// UpdateFunc applies fn to the stored conversation with the given ID and
// persists the result. The read-modify-write runs under the store lock,
// so it cannot interleave with another writer. fn receives a copy of the
// stored conversation and may mutate it freely.
func (s *ConversationStore) UpdateFunc(id string, fn func(*model.Conversation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.conversations {
		if existing.ID == id {
			conv := existing.Clone()
			fn(conv)
			s.conversations[i] = conv
			return s.save()
		}
	}
	return ErrConversationNotFound
}

// Delete removes the conversation with the given ID and persists the
// collection.
func (s *ConversationStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, conv := range s.conversations {
		if conv.ID == id {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			return s.save()
		}
	}
	return ErrConversationNotFound
}

// Len returns the number of stored conversations.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}
