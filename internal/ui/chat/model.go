// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	stdctx "context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/agent"
	"github.com/jeranaias/parley/internal/catalog"
	chatsvc "github.com/jeranaias/parley/internal/chat"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/token"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// MODES
// =============================================================================

// mode selects which surface has focus.
type mode int

const (
	modeChat mode = iota
	modeConversations
	modeAgents
	modeModels
	modeKnowledge
)

// =============================================================================
// MESSAGES
// =============================================================================

// sendResultMsg delivers the outcome of an asynchronous send turn.
type sendResultMsg struct {
	conversationID string
	result         *chatsvc.SendResult
	err            error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model for the chat screen.
type Model struct {
	cfg           *config.Config
	conversations *conversation.Store
	agents        *agent.Store
	orchestrator  *chatsvc.Orchestrator

	keys     KeyMap
	mode     mode
	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model
	markdown *components.Markdown
	picker   *components.Picker

	width  int
	height int

	// trimNote carries the last turn's context-loss warning until the
	// next send.
	trimNote string

	// selectedAgentID is the persona applied to new conversations.
	selectedAgentID string

	err  error
	quit bool
}

// NewModel wires the chat screen over the stores and orchestrator.
func NewModel(cfg *config.Config, convs *conversation.Store, agents *agent.Store, orch *chatsvc.Orchestrator) *Model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.CharLimit = 0
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Purple)

	md, _ := components.NewMarkdown(styles.GlamourStyle(cfg.UI.Theme), 80)

	return &Model{
		cfg:             cfg,
		conversations:   convs,
		agents:          agents,
		orchestrator:    orch,
		keys:            DefaultKeyMap(),
		viewport:        viewport.New(80, 20),
		input:           ta,
		spin:            sp,
		markdown:        md,
		selectedAgentID: agent.DefaultAgentID,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	m.refreshTranscript()
	return tea.Batch(textarea.Blink, m.spin.Tick)
}

// =============================================================================
// COMMANDS
// =============================================================================

// generateCmd resolves a posted turn off the UI goroutine. The user
// message was already appended by Post on the UI goroutine.
func (m *Model) generateCmd(conversationID string, userMsg *model.Message) tea.Cmd {
	return func() tea.Msg {
		res, err := m.orchestrator.Generate(stdctx.Background(), conversationID, userMsg)
		return sendResultMsg{conversationID: conversationID, result: res, err: err}
	}
}

// rerunCmd regenerates the reply for the most recent user message.
func (m *Model) rerunCmd(conversationID, messageID string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.orchestrator.Rerun(stdctx.Background(), conversationID, messageID)
		return sendResultMsg{conversationID: conversationID, result: res, err: err}
	}
}

// =============================================================================
// PICKER BUILDERS
// =============================================================================

func (m *Model) openConversations() {
	items := []components.PickerItem{}
	for _, c := range m.conversations.List() {
		items = append(items, components.PickerItem{
			ID:          c.ID,
			Title:       c.GetTitle(),
			Description: c.Preview,
		})
	}
	m.picker = components.NewPicker("Conversations", items)
	m.picker.SelectID(m.conversations.ActiveID())
	m.mode = modeConversations
}

func (m *Model) openAgents() {
	items := []components.PickerItem{}
	for _, a := range m.agents.Agents() {
		items = append(items, components.PickerItem{
			ID:          a.ID,
			Title:       a.Icon + " " + a.Name,
			Description: a.Description,
		})
	}
	m.picker = components.NewPicker("Agents", items)
	m.picker.SelectID(m.selectedAgentID)
	m.mode = modeAgents
}

func (m *Model) openModels() {
	items := []components.PickerItem{{
		ID:          catalog.AutoModelID,
		Title:       "Auto",
		Description: "pick a model per message",
	}}
	for _, mdl := range catalog.Models {
		items = append(items, components.PickerItem{
			ID:          mdl.ID,
			Title:       mdl.Name,
			Description: mdl.ProviderID + ", " + mdl.ContextString(),
		})
	}
	m.picker = components.NewPicker("Models", items)
	m.picker.SelectID(m.conversations.SelectedModelID())
	m.mode = modeModels
}

func (m *Model) openKnowledge() {
	items := []components.PickerItem{{ID: "", Title: "None", Description: "no reference material"}}
	for _, kb := range m.agents.Knowledgebases() {
		badge := ""
		if kb.Active {
			badge = "[active]"
		}
		items = append(items, components.PickerItem{
			ID:    kb.ID,
			Title: kb.Name,
			Badge: badge,
		})
	}
	m.picker = components.NewPicker("Knowledgebases", items)
	if active := m.agents.ActiveKnowledgebase(); active != nil {
		m.picker.SelectID(active.ID)
	}
	m.mode = modeKnowledge
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshTranscript re-renders the active conversation into the viewport
// and scrolls to the bottom.
func (m *Model) refreshTranscript() {
	conv := m.conversations.Active()
	if conv == nil {
		m.viewport.SetContent("")
		return
	}
	list := &components.MessageList{
		Messages: m.conversations.Messages(conv.ID),
		Width:    m.viewport.Width,
		Markdown: m.markdown,
	}
	m.viewport.SetContent(list.View())
	m.viewport.GotoBottom()
}

// draftTokens estimates the cost of the current input draft.
func (m *Model) draftTokens() int {
	text := m.input.Value()
	if text == "" {
		return 0
	}
	return token.Estimate(text) + token.MessageOverhead
}

func (m *Model) modelLabel() string {
	id := m.conversations.SelectedModelID()
	if id == catalog.AutoModelID {
		return "Auto"
	}
	if mdl, ok := catalog.GetModel(id); ok {
		return mdl.Name
	}
	return id
}

// describeTrim formats a trim report for the status bar.
func describeTrim(res *chatsvc.SendResult) string {
	r := res.TrimReport
	switch {
	case r.TruncatedLast:
		return "last message truncated to fit context"
	case r.Dropped > 0:
		return fmt.Sprintf("%d older messages dropped (~%d tok)", r.Dropped, r.DroppedTokens)
	default:
		return ""
	}
}
