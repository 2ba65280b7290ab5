// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quit = true
			return m, tea.Quit
		}
		if m.mode == modeChat {
			return m.updateChat(msg)
		}
		return m.updatePicker(msg)

	case sendResultMsg:
		return m.handleSendResult(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// =============================================================================
// RESIZE
// =============================================================================

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	inputHeight := m.input.Height() + 2
	statusHeight := 1
	m.viewport.Width = msg.Width
	m.viewport.Height = msg.Height - inputHeight - statusHeight
	if m.viewport.Height < 3 {
		m.viewport.Height = 3
	}
	m.input.SetWidth(msg.Width - 2)

	// Markdown wraps at the new width.
	md, err := components.NewMarkdown(styles.GlamourStyle(m.cfg.UI.Theme), msg.Width-8)
	if err == nil {
		m.markdown = md
	}
	m.refreshTranscript()
	return m, nil
}

// =============================================================================
// CHAT MODE
// =============================================================================

func (m *Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	convID := m.conversations.ActiveID()

	switch {
	case key.Matches(msg, m.keys.Send) && !msg.Alt:
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.orchestrator.IsGenerating(convID) {
			return m, nil
		}
		userMsg, err := m.orchestrator.Post(convID, text, nil)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.input.Reset()
		m.trimNote = ""
		m.err = nil
		// The user message is on screen before the network round trip.
		m.refreshTranscript()
		return m, tea.Batch(m.generateCmd(convID, userMsg), m.spin.Tick)

	case key.Matches(msg, m.keys.NewConv):
		m.conversations.Create(m.selectedAgentID)
		m.trimNote = ""
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keys.Conversations):
		m.openConversations()
		return m, nil

	case key.Matches(msg, m.keys.Agents):
		m.openAgents()
		return m, nil

	case key.Matches(msg, m.keys.Models):
		m.openModels()
		return m, nil

	case key.Matches(msg, m.keys.Knowledge):
		m.openKnowledge()
		return m, nil

	case key.Matches(msg, m.keys.Rerun):
		if m.orchestrator.IsGenerating(convID) {
			return m, nil
		}
		msgs := m.conversations.Messages(convID)
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].IsUser() {
				return m, tea.Batch(m.rerunCmd(convID, msgs[i].ID), m.spin.Tick)
			}
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// PICKER MODES
// =============================================================================

func (m *Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.mode = modeChat
		m.picker = nil
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.picker.MoveUp()
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.picker.MoveDown()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		return m.deleteSelected()

	case key.Matches(msg, m.keys.Confirm):
		return m.confirmSelected()
	}
	return m, nil
}

func (m *Model) confirmSelected() (tea.Model, tea.Cmd) {
	item := m.picker.Selected()
	if item == nil {
		m.mode = modeChat
		return m, nil
	}

	switch m.mode {
	case modeConversations:
		if err := m.conversations.Select(item.ID); err != nil {
			m.err = err
		}
		m.refreshTranscript()
	case modeAgents:
		m.selectedAgentID = item.ID
	case modeModels:
		m.conversations.SetSelectedModel(item.ID)
	case modeKnowledge:
		if err := m.agents.SetActive(item.ID); err != nil {
			m.err = err
		}
	}

	m.mode = modeChat
	m.picker = nil
	return m, nil
}

func (m *Model) deleteSelected() (tea.Model, tea.Cmd) {
	item := m.picker.Selected()
	if item == nil || item.ID == "" {
		return m, nil
	}

	switch m.mode {
	case modeConversations:
		if err := m.conversations.Delete(item.ID); err != nil {
			m.err = err
		}
		m.openConversations()
		m.refreshTranscript()
	case modeAgents:
		if err := m.agents.DeleteAgent(item.ID); err != nil {
			// Deleting the last agent is rejected; show why.
			m.err = err
		}
		m.openAgents()
	case modeKnowledge:
		if err := m.agents.DeleteKnowledgebase(item.ID); err != nil {
			m.err = err
		}
		m.openKnowledge()
	}
	return m, nil
}

// =============================================================================
// SEND RESULTS
// =============================================================================

func (m *Model) handleSendResult(msg sendResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = msg.err
	} else if msg.result != nil {
		m.trimNote = describeTrim(msg.result)
		m.err = nil
	}
	if msg.conversationID == m.conversations.ActiveID() {
		m.refreshTranscript()
	}
	return m, nil
}
