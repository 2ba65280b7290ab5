// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.KV) {
	t.Helper()
	kv, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return NewStore(kv), kv
}

func TestStoreSeedsDefaultAgent(t *testing.T) {
	s, _ := newTestStore(t)
	require.Len(t, s.Agents(), 1)
	assert.Equal(t, DefaultAgentID, s.Agents()[0].ID)
	assert.Equal(t, IconForID(DefaultAgentID), s.Agents()[0].Icon)
}

func TestDeleteLastAgentRejected(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.DeleteAgent(s.Agents()[0].ID)
	assert.True(t, errors.Is(err, ErrLastAgent))
	assert.Len(t, s.Agents(), 1, "collection size must be unchanged")
}

func TestCreateUpdateDeleteAgent(t *testing.T) {
	s, _ := newTestStore(t)
	a := s.CreateAgent()
	require.Len(t, s.Agents(), 2)
	assert.Equal(t, "New Agent", a.Name)
	assert.Equal(t, DefaultIcon, a.Icon, "generated ids fall back to the default icon")

	name := "Reviewer"
	prompt := "You review Go code."
	require.NoError(t, s.UpdateAgent(a.ID, AgentUpdate{Name: &name, SystemPrompt: &prompt}))
	assert.Equal(t, "Reviewer", a.Name)
	assert.Equal(t, "You review Go code.", a.SystemPrompt)
	assert.Equal(t, "Custom persona", a.Description, "nil fields stay untouched")

	assert.True(t, errors.Is(s.UpdateAgent("agent_missing", AgentUpdate{}), ErrAgentNotFound))

	require.NoError(t, s.DeleteAgent(a.ID))
	assert.Len(t, s.Agents(), 1)
}

func TestAgentsRoundTripWithIconReattachment(t *testing.T) {
	s, kv := newTestStore(t)
	a := s.CreateAgent()

	// A fresh store over the same kv must see the same agents with
	// icons re-derived, not serialized.
	s2 := NewStore(kv)
	require.Len(t, s2.Agents(), 2)
	got := s2.GetAgent(a.ID)
	require.NotNil(t, got)
	assert.Equal(t, DefaultIcon, got.Icon)
	assert.Equal(t, IconForID(DefaultAgentID), s2.GetAgent(DefaultAgentID).Icon)
}

func TestSetActiveIsExclusive(t *testing.T) {
	s, kv := newTestStore(t)
	kb1 := s.CreateKnowledgebase("first")
	kb2 := s.CreateKnowledgebase("second")
	kb1.Content = "alpha"
	kb2.Content = "beta"

	require.NoError(t, s.SetActive(kb1.ID))
	assert.True(t, kb1.Active)
	assert.False(t, kb2.Active)

	require.NoError(t, s.SetActive(kb2.ID))
	assert.False(t, kb1.Active)
	assert.True(t, kb2.Active)

	active := 0
	for _, kb := range s.Knowledgebases() {
		if kb.Active {
			active++
		}
	}
	assert.Equal(t, 1, active)

	// The combined content key tracks the active entry.
	v, err := kv.Get(storage.KeyActiveKnowledge)
	require.NoError(t, err)
	assert.Contains(t, v, "beta")

	// Deactivating removes the key.
	require.NoError(t, s.SetActive(""))
	assert.False(t, kb2.Active)
	_, err = kv.Get(storage.KeyActiveKnowledge)
	assert.True(t, errors.Is(err, storage.ErrKeyNotFound))
}

func TestSetActiveUnknownID(t *testing.T) {
	s, _ := newTestStore(t)
	assert.True(t, errors.Is(s.SetActive("kb_missing"), ErrKnowledgebaseNotFound))
}

func TestActiveKnowledgeContentCombinesFiles(t *testing.T) {
	s, _ := newTestStore(t)
	kb := s.CreateKnowledgebase("docs")
	require.NoError(t, s.UpdateKnowledgebase(kb.ID, "overview", []model.KnowledgeFile{
		{Name: "a.md", Content: "alpha"},
	}))
	require.NoError(t, s.SetActive(kb.ID))

	combined := s.ActiveKnowledgeContent()
	assert.Contains(t, combined, "overview")
	assert.Contains(t, combined, "--- file: a.md ---")
}

func TestDeleteActiveKnowledgebaseClearsKey(t *testing.T) {
	s, kv := newTestStore(t)
	kb := s.CreateKnowledgebase("docs")
	require.NoError(t, s.SetActive(kb.ID))
	require.NoError(t, s.DeleteKnowledgebase(kb.ID))

	_, err := kv.Get(storage.KeyActiveKnowledge)
	assert.True(t, errors.Is(err, storage.ErrKeyNotFound))
}

func TestFeedDefaultKnowledgeFlagPersists(t *testing.T) {
	s, kv := newTestStore(t)

	s.SetFeedDefaultKnowledge(true)
	v, err := kv.Get(storage.KeyFeedDefaultKB)
	require.NoError(t, err)
	assert.Equal(t, "true", v)
	assert.True(t, s.FeedDefaultKnowledge())

	s.SetFeedDefaultKnowledge(false)
	assert.False(t, s.FeedDefaultKnowledge())
}

func TestFeedDefaultKnowledgeFallsBackToFirstKnowledgebase(t *testing.T) {
	s, _ := newTestStore(t)
	kb := s.CreateKnowledgebase("docs")
	require.NoError(t, s.UpdateKnowledgebase(kb.ID, "launch notes", nil))
	s.CreateKnowledgebase("other")

	// Flag off: nothing active means nothing fed.
	assert.Empty(t, s.ActiveKnowledgeContent())

	s.SetFeedDefaultKnowledge(true)
	assert.Contains(t, s.ActiveKnowledgeContent(), "launch notes")

	// An explicitly active knowledgebase wins over the fallback.
	other := s.Knowledgebases()[1]
	require.NoError(t, s.UpdateKnowledgebase(other.ID, "second", nil))
	require.NoError(t, s.SetActive(other.ID))
	assert.Contains(t, s.ActiveKnowledgeContent(), "second")
}

// The knowledge file watcher updates entries from a background
// goroutine while the UI reads them; the store serializes access.
func TestConcurrentKnowledgebaseAccess(t *testing.T) {
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kb := s.CreateKnowledgebase("notes")
			require.NoError(t, s.UpdateKnowledgebase(kb.ID, "content", nil))
			_ = s.Knowledgebases()
			_ = s.Agents()
			_ = s.ActiveKnowledgeContent()
		}()
	}
	wg.Wait()

	assert.Len(t, s.Knowledgebases(), 8)
}
