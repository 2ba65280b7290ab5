// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/agent"
	"github.com/jeranaias/parley/internal/catalog"
	chatsvc "github.com/jeranaias/parley/internal/chat"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/provider"
	"github.com/jeranaias/parley/internal/storage"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	kv, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	convs := conversation.NewStore(kv)
	agents := agent.NewStore(kv)
	client := provider.NewClient(provider.CredentialFunc(func(string) (string, bool) { return "", false }))
	orch := chatsvc.NewOrchestrator(convs, agents, client)

	m := NewModel(config.Default(), convs, agents, orch)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func TestInitialStateIsChatMode(t *testing.T) {
	m := newTestModel(t)
	assert.Equal(t, modeChat, m.mode)
	assert.NotEmpty(t, m.View())
}

func TestModelPickerSelectsModel(t *testing.T) {
	m := newTestModel(t)
	m.openModels()
	require.Equal(t, modeModels, m.mode)

	m.picker.SelectID("claude-3-5-sonnet")
	m.confirmSelected()

	assert.Equal(t, modeChat, m.mode)
	assert.Equal(t, "claude-3-5-sonnet", m.conversations.SelectedModelID())
}

func TestModelPickerIncludesAutoSentinel(t *testing.T) {
	m := newTestModel(t)
	m.openModels()
	m.picker.SelectID(catalog.AutoModelID)
	require.NotNil(t, m.picker.Selected())
	assert.Equal(t, catalog.AutoModelID, m.picker.Selected().ID)
}

func TestAgentPickerChangesSelection(t *testing.T) {
	m := newTestModel(t)
	created := m.agents.CreateAgent()

	m.openAgents()
	m.picker.SelectID(created.ID)
	m.confirmSelected()
	assert.Equal(t, created.ID, m.selectedAgentID)
}

func TestKnowledgePickerActivates(t *testing.T) {
	m := newTestModel(t)
	kb := m.agents.CreateKnowledgebase("docs")

	m.openKnowledge()
	m.picker.SelectID(kb.ID)
	m.confirmSelected()

	active := m.agents.ActiveKnowledgebase()
	require.NotNil(t, active)
	assert.Equal(t, kb.ID, active.ID)
}

func TestSendResultUpdatesTrimNote(t *testing.T) {
	m := newTestModel(t)
	res := &chatsvc.SendResult{Reply: model.NewAssistantMessage("ok")}
	res.TrimReport.Dropped = 3
	res.TrimReport.DroppedTokens = 120

	m.handleSendResult(sendResultMsg{
		conversationID: m.conversations.ActiveID(),
		result:         res,
	})
	assert.Contains(t, m.trimNote, "3 older messages dropped")
}

func TestDeleteLastAgentSurfacesError(t *testing.T) {
	m := newTestModel(t)
	m.openAgents()
	m.picker.SelectID(agent.DefaultAgentID)
	m.deleteSelected()
	assert.ErrorIs(t, m.err, agent.ErrLastAgent)
}

func TestSendShowsUserMessageBeforeReplyArrives(t *testing.T) {
	m := newTestModel(t)
	convID := m.conversations.ActiveID()

	m.input.SetValue("hello there")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd, "a generate command is pending")

	// The user message is on screen before the turn resolves.
	msgs := m.conversations.Messages(convID)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsUser())
	assert.Equal(t, "hello there", msgs[0].Content)
	assert.Contains(t, m.viewport.View(), "hello there")
	assert.True(t, m.orchestrator.IsGenerating(convID))
}

func TestSendWhileGeneratingKeepsDraft(t *testing.T) {
	m := newTestModel(t)
	convID := m.conversations.ActiveID()

	m.input.SetValue("first")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	m.input.SetValue("second")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	// The second draft is neither sent nor lost.
	assert.Equal(t, "second", m.input.Value())
	assert.Len(t, m.conversations.Messages(convID), 1)
}
