// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/model"
)

func TestWordWrapRespectsWidth(t *testing.T) {
	wrapped := wordWrap("one two three four five six seven eight", 12)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), 12)
	}
}

func TestWordWrapPreservesLineBreaks(t *testing.T) {
	wrapped := wordWrap("first\nsecond", 40)
	assert.Equal(t, "first\nsecond", wrapped)
}

func TestUserBubbleShowsContent(t *testing.T) {
	msg := model.NewUserMessage("hello world")
	out := NewMessageBubble(msg, nil).View()
	assert.Contains(t, out, "hello world")
	assert.Contains(t, out, "you")
}

func TestErrorBubbleIsMarked(t *testing.T) {
	msg := model.NewAssistantMessage("No API key configured for OpenAI.")
	msg.IsError = true
	out := NewMessageBubble(msg, nil).View()
	assert.Contains(t, out, "send failed")
	assert.Contains(t, out, "No API key configured")
}

func TestAssistantBubbleShowsModelBadgeAndAgent(t *testing.T) {
	msg := model.NewAssistantMessage("answer")
	msg.ModelID = "gpt-4o-mini"
	msg.AgentName = "Coder"
	out := NewMessageBubble(msg, nil).View()
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, "coder")
}

func TestAttachmentChipShown(t *testing.T) {
	msg := model.NewUserMessage("look at this")
	msg.Attachment = &model.Attachment{Name: "notes.txt", Content: "x"}
	out := NewMessageBubble(msg, nil).View()
	assert.Contains(t, out, "notes.txt")
}

func TestMessageListEmptyState(t *testing.T) {
	ml := &MessageList{Width: 60}
	assert.Contains(t, ml.View(), "No messages yet")
}

func TestStatusBarContents(t *testing.T) {
	bar := &StatusBar{
		Width:         120,
		AgentIcon:     "◆",
		AgentName:     "Assistant",
		ModelName:     "GPT-4o Mini",
		TokenEstimate: 42,
		ShowTokens:    true,
	}
	out := bar.View()
	assert.Contains(t, out, "Assistant")
	assert.Contains(t, out, "GPT-4o Mini")
	assert.Contains(t, out, "~42 tok")
}

func TestStatusBarRateLimitWarning(t *testing.T) {
	bar := &StatusBar{Width: 120, ModelName: "GPT-4o", RateLimited: true}
	assert.Contains(t, bar.View(), "rate limited")
}

func TestPickerNavigationClamps(t *testing.T) {
	p := NewPicker("Agents", []PickerItem{
		{ID: "a", Title: "First"},
		{ID: "b", Title: "Second"},
	})

	p.MoveUp()
	require.NotNil(t, p.Selected())
	assert.Equal(t, "a", p.Selected().ID)

	p.MoveDown()
	p.MoveDown()
	assert.Equal(t, "b", p.Selected().ID)

	p.SelectID("a")
	assert.Equal(t, "a", p.Selected().ID)
}

func TestPickerEmpty(t *testing.T) {
	p := NewPicker("Models", nil)
	assert.Nil(t, p.Selected())
	assert.Contains(t, p.View(), "nothing here yet")
}

func TestHighlightFallsBackToPlainText(t *testing.T) {
	out := Highlight("not really code at all", "")
	assert.NotEmpty(t, out)
}

func TestMarkdownRendererFallsBackOnNil(t *testing.T) {
	var md *Markdown
	assert.Equal(t, "**bold**", md.Render("**bold**"))
}
