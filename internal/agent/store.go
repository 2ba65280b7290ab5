// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the persistent store for agent personas and
// knowledgebases.
package agent

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrLastAgent is returned when deleting the sole remaining agent.
	ErrLastAgent = errors.New("cannot delete the last agent")

	// ErrAgentNotFound is returned for operations on an unknown agent id.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrKnowledgebaseNotFound is returned for an unknown knowledgebase id.
	ErrKnowledgebaseNotFound = errors.New("knowledgebase not found")
)

// =============================================================================
// STORE
// =============================================================================

// Store holds the agent and knowledgebase collections and mirrors every
// mutation to durable storage. Persistence failures are logged and
// swallowed: state stays correct in memory but may not survive a
// reload.
//
// Safe for concurrent use: the UI goroutine, send turns, and the
// knowledge file watcher all share one store.
type Store struct {
	kv *storage.KV

	mu sync.RWMutex

	agents         []*model.Agent
	knowledgebases []*model.Knowledgebase
}

// NewStore creates a store and loads both collections from kv. If no
// agents exist, the built-in default persona is created so the
// "at least one agent" invariant holds from the start.
func NewStore(kv *storage.KV) *Store {
	s := &Store{kv: kv}
	s.load()
	return s
}

// load rehydrates both collections, reattaching icons from the fixed
// id table since they are not representable in the stored form.
func (s *Store) load() {
	if data, err := s.kv.Get(storage.KeyAgents); err == nil {
		var agents []*model.Agent
		if err := json.Unmarshal([]byte(data), &agents); err != nil {
			log.Printf("agent store: discarding unreadable agent list: %v", err)
		} else {
			s.agents = agents
		}
	}
	for _, a := range s.agents {
		a.Icon = IconForID(a.ID)
	}

	if len(s.agents) == 0 {
		def := defaultAgent()
		s.agents = []*model.Agent{def}
		s.persistAgents()
	}

	if data, err := s.kv.Get(storage.KeyKnowledgebases); err == nil {
		var kbs []*model.Knowledgebase
		if err := json.Unmarshal([]byte(data), &kbs); err != nil {
			log.Printf("agent store: discarding unreadable knowledgebase list: %v", err)
		} else {
			s.knowledgebases = kbs
		}
	}
}

// defaultAgent is the built-in persona present in every installation.
func defaultAgent() *model.Agent {
	return &model.Agent{
		ID:           DefaultAgentID,
		Name:         "Assistant",
		Description:  "General-purpose assistant",
		SystemPrompt: "You are a helpful assistant. Answer clearly and concisely.",
		Icon:         IconForID(DefaultAgentID),
	}
}

// =============================================================================
// AGENT OPERATIONS
// =============================================================================

// Agents returns a snapshot of the agent collection in insertion order.
func (s *Store) Agents() []*model.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// GetAgent returns an agent by id, or nil.
func (s *Store) GetAgent(id string) *model.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAgent(id)
}

// getAgent looks up an agent without locking. Callers hold s.mu.
func (s *Store) getAgent(id string) *model.Agent {
	for _, a := range s.agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// CreateAgent appends a new agent with fixed defaults and persists.
func (s *Store) CreateAgent() *model.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := model.NewAgent("New Agent", "Custom persona", "You are a helpful assistant.")
	a.Icon = IconForID(a.ID)
	s.agents = append(s.agents, a)
	s.persistAgents()
	return a
}

// AgentUpdate carries the mutable agent fields. Nil fields are left
// unchanged; the id and icon are never updatable.
type AgentUpdate struct {
	Name         *string
	Description  *string
	SystemPrompt *string
}

// UpdateAgent merges upd into the matching agent and persists.
func (s *Store) UpdateAgent(id string, upd AgentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.getAgent(id)
	if a == nil {
		return ErrAgentNotFound
	}
	if upd.Name != nil {
		a.Name = *upd.Name
	}
	if upd.Description != nil {
		a.Description = *upd.Description
	}
	if upd.SystemPrompt != nil {
		a.SystemPrompt = *upd.SystemPrompt
	}
	s.persistAgents()
	return nil
}

// DeleteAgent removes an agent. Deleting the last remaining agent is
// rejected with ErrLastAgent; callers are expected to have confirmed
// the deletion with the user first.
func (s *Store) DeleteAgent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.agents) <= 1 {
		return ErrLastAgent
	}
	for i, a := range s.agents {
		if a.ID == id {
			s.agents = append(s.agents[:i], s.agents[i+1:]...)
			s.persistAgents()
			return nil
		}
	}
	return ErrAgentNotFound
}

// persistAgents mirrors the agent list to storage. Icons carry a
// json:"-" tag so the stored form is plain string records.
func (s *Store) persistAgents() {
	data, err := json.Marshal(s.agents)
	if err != nil {
		log.Printf("agent store: marshal agents: %v", err)
		return
	}
	if err := s.kv.Set(storage.KeyAgents, string(data)); err != nil {
		log.Printf("agent store: persist agents: %v", err)
	}
}

// =============================================================================
// KNOWLEDGEBASE OPERATIONS
// =============================================================================

// Knowledgebases returns a snapshot of the knowledgebase collection.
func (s *Store) Knowledgebases() []*model.Knowledgebase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Knowledgebase, len(s.knowledgebases))
	copy(out, s.knowledgebases)
	return out
}

// GetKnowledgebase returns a knowledgebase by id, or nil.
func (s *Store) GetKnowledgebase(id string) *model.Knowledgebase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getKnowledgebase(id)
}

// getKnowledgebase looks up an entry without locking. Callers hold s.mu.
func (s *Store) getKnowledgebase(id string) *model.Knowledgebase {
	for _, kb := range s.knowledgebases {
		if kb.ID == id {
			return kb
		}
	}
	return nil
}

// ActiveKnowledgebase returns the single active entry, or nil.
func (s *Store) ActiveKnowledgebase() *model.Knowledgebase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, kb := range s.knowledgebases {
		if kb.Active {
			return kb
		}
	}
	return nil
}

// CreateKnowledgebase appends a new empty knowledgebase and persists.
func (s *Store) CreateKnowledgebase(name string) *model.Knowledgebase {
	s.mu.Lock()
	defer s.mu.Unlock()
	kb := model.NewKnowledgebase(name)
	s.knowledgebases = append(s.knowledgebases, kb)
	s.persistKnowledgebases()
	return kb
}

// UpdateKnowledgebase replaces the content and files of the matching
// entry and persists. If the entry is active, the combined-content key
// is rewritten so the orchestrator sees the new content immediately.
func (s *Store) UpdateKnowledgebase(id, content string, files []model.KnowledgeFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kb := s.getKnowledgebase(id)
	if kb == nil {
		return ErrKnowledgebaseNotFound
	}
	kb.Content = content
	kb.Files = files
	s.persistKnowledgebases()
	if kb.Active {
		s.writeActiveKnowledge(kb)
	}
	return nil
}

// DeleteKnowledgebase removes an entry; if it was active, the combined
// content key is removed too.
func (s *Store) DeleteKnowledgebase(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, kb := range s.knowledgebases {
		if kb.ID == id {
			wasActive := kb.Active
			s.knowledgebases = append(s.knowledgebases[:i], s.knowledgebases[i+1:]...)
			s.persistKnowledgebases()
			if wasActive {
				s.clearActiveKnowledge()
			}
			return nil
		}
	}
	return ErrKnowledgebaseNotFound
}

// SetActive marks exactly one knowledgebase active (or none, for an
// empty id), deactivating all others, and maintains the well-known
// combined-content key for fast orchestrator access.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var target *model.Knowledgebase
	if id != "" {
		target = s.getKnowledgebase(id)
		if target == nil {
			return ErrKnowledgebaseNotFound
		}
	}

	for _, kb := range s.knowledgebases {
		kb.Active = kb == target && target != nil
	}
	s.persistKnowledgebases()

	if target != nil {
		s.writeActiveKnowledge(target)
	} else {
		s.clearActiveKnowledge()
	}
	return nil
}

// ActiveKnowledgeContent returns the combined content of the active
// knowledgebase from its well-known key. When none is active and the
// feed-default flag is set, the first knowledgebase stands in.
func (s *Store) ActiveKnowledgeContent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, err := s.kv.Get(storage.KeyActiveKnowledge)
	if err == nil {
		return content
	}
	if s.feedDefaultKnowledge() && len(s.knowledgebases) > 0 {
		return s.knowledgebases[0].CombinedContent()
	}
	return ""
}

// FeedDefaultKnowledge reports whether the first knowledgebase should
// feed conversations when none is explicitly active.
func (s *Store) FeedDefaultKnowledge() bool {
	return s.feedDefaultKnowledge()
}

func (s *Store) feedDefaultKnowledge() bool {
	v, err := s.kv.Get(storage.KeyFeedDefaultKB)
	return err == nil && v == "true"
}

// SetFeedDefaultKnowledge persists the feed-default flag.
func (s *Store) SetFeedDefaultKnowledge(enabled bool) {
	v := "false"
	if enabled {
		v = "true"
	}
	if err := s.kv.Set(storage.KeyFeedDefaultKB, v); err != nil {
		log.Printf("agent store: persist feed default flag: %v", err)
	}
}

func (s *Store) writeActiveKnowledge(kb *model.Knowledgebase) {
	if err := s.kv.Set(storage.KeyActiveKnowledge, kb.CombinedContent()); err != nil {
		log.Printf("agent store: persist active knowledge: %v", err)
	}
}

func (s *Store) clearActiveKnowledge() {
	if err := s.kv.Delete(storage.KeyActiveKnowledge); err != nil {
		log.Printf("agent store: clear active knowledge: %v", err)
	}
}

func (s *Store) persistKnowledgebases() {
	data, err := json.Marshal(s.knowledgebases)
	if err != nil {
		log.Printf("agent store: marshal knowledgebases: %v", err)
		return
	}
	if err := s.kv.Set(storage.KeyKnowledgebases, string(data)); err != nil {
		log.Printf("agent store: persist knowledgebases: %v", err)
	}
}
