// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation provides the persistent store for chat threads.
package conversation

import (
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConversationNotFound is returned for an unknown conversation id.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound is returned for an unknown message id.
	ErrMessageNotFound = errors.New("message not found")
)

// =============================================================================
// STORE
// =============================================================================

// Store holds the conversation collection, the active conversation, and
// the globally selected model. Every mutation is mirrored to durable
// storage once the initial load has completed; persistence failures are
// logged and swallowed.
//
// Safe for concurrent use: the UI goroutine and send turns running on
// background goroutines share one store. Message mutations must go
// through store methods so they happen under the lock.
type Store struct {
	kv *storage.KV

	mu sync.RWMutex

	conversations []*model.Conversation
	activeID      string

	// selectedModelID is the process-wide model choice. Selecting a
	// conversation restores its model here; new conversations start
	// from it.
	selectedModelID string

	// loaded guards persistence: saving before the initial load would
	// clobber storage with an empty state.
	loaded bool
}

// NewStore creates a store, loads persisted conversations, and restores
// the last-active conversation when it still resolves. If nothing
// usable is stored, a single empty conversation is synthesized.
func NewStore(kv *storage.KV) *Store {
	s := &Store{
		kv:              kv,
		selectedModelID: catalog.DefaultModelID(),
	}
	s.load()
	s.loaded = true
	return s
}

func (s *Store) load() {
	if data, err := s.kv.Get(storage.KeyConversations); err == nil {
		var convs []*model.Conversation
		if err := json.Unmarshal([]byte(data), &convs); err != nil {
			log.Printf("conversation store: discarding unreadable conversation list: %v", err)
		} else {
			s.conversations = convs
		}
	}

	if len(s.conversations) == 0 {
		s.conversations = []*model.Conversation{
			model.NewConversation(s.selectedModelID, ""),
		}
	}

	s.activeID = s.conversations[0].ID
	if lastID, err := s.kv.Get(storage.KeyLastConversation); err == nil {
		if conv := s.get(lastID); conv != nil {
			s.activeID = lastID
		}
	}

	if active := s.get(s.activeID); active != nil && active.ModelID != "" {
		s.selectedModelID = active.ModelID
	}
}

// get returns a conversation by id without locking. Callers hold s.mu.
func (s *Store) get(id string) *model.Conversation {
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// list returns all conversations most recently updated first, without
// locking. Callers hold s.mu.
func (s *Store) list() []*model.Conversation {
	out := make([]*model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// =============================================================================
// SELECTED MODEL
// =============================================================================

// SelectedModelID returns the globally selected model id.
func (s *Store) SelectedModelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedModelID
}

// SetSelectedModel changes the globally selected model and records it
// on the active conversation so the choice sticks to the thread.
func (s *Store) SetSelectedModel(modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedModelID = modelID
	if conv := s.get(s.activeID); conv != nil {
		conv.ModelID = modelID
		s.persist()
	}
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// List returns all conversations, most recently updated first.
func (s *Store) List() []*model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list()
}

// Get returns a conversation by id, or nil.
func (s *Store) Get(id string) *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

// Active returns the active conversation, or nil.
func (s *Store) Active() *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(s.activeID)
}

// ActiveID returns the active conversation id.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Create starts a new empty conversation bound to the currently
// selected model and the given agent, makes it active, and persists.
func (s *Store) Create(agentID string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := model.NewConversation(s.selectedModelID, agentID)
	s.conversations = append(s.conversations, conv)
	s.activeID = conv.ID
	s.persist()
	s.persistLastActive()
	return conv
}

// Select marks a conversation active and restores its model as the
// globally selected model: switching conversations switches the model
// in use.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.get(id)
	if conv == nil {
		return ErrConversationNotFound
	}
	s.activeID = id
	if conv.ModelID != "" {
		s.selectedModelID = conv.ModelID
	}
	s.persistLastActive()
	return nil
}

// Delete removes a conversation. If it was active, the most recent
// remaining conversation becomes active; deleting the last one
// synthesizes a fresh empty conversation so the store never goes empty.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conversations {
		if c.ID == id {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			if len(s.conversations) == 0 {
				s.conversations = []*model.Conversation{
					model.NewConversation(s.selectedModelID, ""),
				}
			}
			if s.activeID == id {
				s.activeID = s.list()[0].ID
				s.persistLastActive()
			}
			s.persist()
			return nil
		}
	}
	return ErrConversationNotFound
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// AppendMessage appends a message to a conversation and persists. The
// first user message fixes the conversation title.
func (s *Store) AppendMessage(conversationID string, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.get(conversationID)
	if conv == nil {
		return ErrConversationNotFound
	}
	conv.AddMessage(msg)
	s.persist()
	return nil
}

// Messages returns a snapshot of a conversation's message list. The
// slice is the caller's; the messages are shared.
func (s *Store) Messages(conversationID string) []*model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv := s.get(conversationID)
	if conv == nil {
		return nil
	}
	out := make([]*model.Message, len(conv.Messages))
	copy(out, conv.Messages)
	return out
}

// Message returns a single message by id.
func (s *Store) Message(conversationID, messageID string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv := s.get(conversationID)
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	msg := conv.GetMessageByID(messageID)
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

// DeleteMessage removes a message by id. No cascading effects on other
// messages.
func (s *Store) DeleteMessage(conversationID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.get(conversationID)
	if conv == nil {
		return ErrConversationNotFound
	}
	if !conv.RemoveMessage(messageID) {
		return ErrMessageNotFound
	}
	s.persist()
	return nil
}

// RewriteMessage replaces a message's content and persists.
func (s *Store) RewriteMessage(conversationID, messageID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.get(conversationID)
	if conv == nil {
		return ErrConversationNotFound
	}
	msg := conv.GetMessageByID(messageID)
	if msg == nil {
		return ErrMessageNotFound
	}
	msg.Content = content
	s.persist()
	return nil
}

// TruncateAfter drops every message after the given one and persists.
func (s *Store) TruncateAfter(conversationID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.get(conversationID)
	if conv == nil {
		return ErrConversationNotFound
	}
	for i, m := range conv.Messages {
		if m.ID == messageID {
			conv.Messages = conv.Messages[:i+1]
			s.persist()
			return nil
		}
	}
	return ErrMessageNotFound
}

// SetConversationModel records the model a conversation last used, so
// subsequent turns default to it.
func (s *Store) SetConversationModel(conversationID, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.get(conversationID)
	if conv == nil {
		return ErrConversationNotFound
	}
	conv.ModelID = modelID
	if conversationID == s.activeID {
		s.selectedModelID = modelID
	}
	s.persist()
	return nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func (s *Store) persist() {
	if !s.loaded {
		return
	}
	data, err := json.Marshal(s.conversations)
	if err != nil {
		log.Printf("conversation store: marshal: %v", err)
		return
	}
	if err := s.kv.Set(storage.KeyConversations, string(data)); err != nil {
		log.Printf("conversation store: persist: %v", err)
	}
}

func (s *Store) persistLastActive() {
	if !s.loaded {
		return
	}
	if err := s.kv.Set(storage.KeyLastConversation, s.activeID); err != nil {
		log.Printf("conversation store: persist last active: %v", err)
	}
}
