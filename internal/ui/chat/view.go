// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/agent"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quit {
		return ""
	}

	if m.mode != modeChat && m.picker != nil {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.picker.View())
	}

	transcript := m.viewport.View()

	inputBox := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Overlay).
		Width(m.width - 2).
		Render(m.input.View())

	sections := []string{transcript, inputBox, m.statusBar().View()}
	if m.err != nil {
		sections = append(sections, styles.RenderError(m.err.Error()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) statusBar() *components.StatusBar {
	bar := &components.StatusBar{
		Width:         m.width,
		ModelName:     m.modelLabel(),
		TokenEstimate: m.draftTokens(),
		ShowTokens:    m.cfg.UI.ShowTokens,
		TrimNote:      m.trimNote,
	}

	if a := m.agents.GetAgent(m.selectedAgentID); a != nil {
		bar.AgentIcon = a.Icon
		bar.AgentName = a.Name
	} else if def := m.agents.GetAgent(agent.DefaultAgentID); def != nil {
		bar.AgentIcon = def.Icon
		bar.AgentName = def.Name
	}

	status := m.orchestrator.ProviderStatus(m.conversations.SelectedModelID())
	bar.RateLimited = status.RateLimited
	bar.RetryAt = status.RetryAt

	convID := m.conversations.ActiveID()
	if m.orchestrator.IsGenerating(convID) {
		bar.Generating = true
		bar.SpinnerFrame = m.spin.View()
	}
	return bar
}
