// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// MESSAGE BUBBLE COMPONENT
// =============================================================================

// MessageBubble renders one transcript message.
type MessageBubble struct {
	Message       *model.Message
	Width         int
	ShowTimestamp bool

	// Markdown renders assistant content; nil falls back to plain text.
	Markdown *Markdown
}

// NewMessageBubble creates a bubble with defaults.
func NewMessageBubble(msg *model.Message, md *Markdown) *MessageBubble {
	return &MessageBubble{
		Message:       msg,
		Width:         80,
		ShowTimestamp: true,
		Markdown:      md,
	}
}

// View renders the message bubble.
func (b *MessageBubble) View() string {
	if b.Message == nil {
		return ""
	}
	if b.Message.IsError {
		return b.renderErrorBubble()
	}
	switch b.Message.Role {
	case model.RoleUser:
		return b.renderUserBubble()
	case model.RoleAssistant:
		return b.renderAssistantBubble()
	default:
		return b.renderSystemBubble()
	}
}

func (b *MessageBubble) renderUserBubble() string {
	content := b.Message.Content
	if content == "" && b.Message.Attachment != nil {
		content = "(attachment only)"
	}
	wrapped := wordWrap(content, b.contentWidth())

	bubble := lipgloss.NewStyle().
		Foreground(styles.UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.UserBubbleBorder).
		Padding(0, 1).
		Render(wrapped)

	header := b.renderHeader("you")
	body := lipgloss.JoinVertical(lipgloss.Left, header, bubble)
	if chip := b.renderAttachmentChip(); chip != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, chip)
	}
	return body
}

func (b *MessageBubble) renderAssistantBubble() string {
	content := b.Message.Content
	if b.Markdown != nil {
		content = b.Markdown.Render(content)
	} else {
		content = wordWrap(content, b.contentWidth())
	}

	bubble := lipgloss.NewStyle().
		Foreground(styles.AssistantBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.AssistantBubbleBorder).
		BorderLeft(true).
		BorderTop(false).BorderRight(false).BorderBottom(false).
		PaddingLeft(1).
		Render(content)

	label := "assistant"
	if b.Message.AgentName != "" {
		label = strings.ToLower(b.Message.AgentName)
	}
	header := b.renderHeader(label)
	if b.Message.ModelID != "" {
		badge := lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Render("· " + b.Message.ModelID)
		header += " " + badge
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, bubble)
}

func (b *MessageBubble) renderErrorBubble() string {
	wrapped := wordWrap(b.Message.Content, b.contentWidth())

	bubble := lipgloss.NewStyle().
		Foreground(styles.ErrorBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ErrorBubbleBorder).
		BorderLeft(true).
		BorderTop(false).BorderRight(false).BorderBottom(false).
		PaddingLeft(1).
		Render(wrapped)

	return lipgloss.JoinVertical(lipgloss.Left, styles.RenderError("send failed"), bubble)
}

func (b *MessageBubble) renderSystemBubble() string {
	wrapped := wordWrap(b.Message.Content, b.contentWidth())
	return lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Italic(true).
		Render(wrapped)
}

// =============================================================================
// HELPERS
// =============================================================================

func (b *MessageBubble) contentWidth() int {
	w := b.Width - 8
	if w < 20 {
		w = 20
	}
	return w
}

func (b *MessageBubble) renderHeader(label string) string {
	header := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Italic(true).
		Render(label)
	if b.ShowTimestamp {
		if ts := formatTimestamp(b.Message.Timestamp); ts != "" {
			header += " " + lipgloss.NewStyle().Foreground(styles.TextMuted).Render(ts)
		}
	}
	return header
}

func (b *MessageBubble) renderAttachmentChip() string {
	a := b.Message.Attachment
	if a == nil {
		return ""
	}
	label := "📎 " + a.Name
	if a.IsImage() {
		label = "🖼 " + a.Name
	}
	return lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Render(util.TruncateWidth(label, 48))
}

// formatTimestamp renders a short clock time, adding the date when the
// message is from another day.
func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	now := time.Now()
	if ts.Year() == now.Year() && ts.YearDay() == now.YearDay() {
		return ts.Format("3:04 PM")
	}
	return ts.Format("Jan 2, 3:04 PM")
}

// wordWrap wraps text to fit within the specified width, preserving
// existing line breaks.
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	for lineIdx, line := range strings.Split(text, "\n") {
		if lineIdx > 0 {
			result.WriteString("\n")
		}
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if util.StringWidth(current)+1+util.StringWidth(word) <= width {
				current += " " + word
			} else {
				result.WriteString(current)
				result.WriteString("\n")
				current = word
			}
		}
		result.WriteString(current)
	}
	return result.String()
}

// =============================================================================
// MESSAGE LIST COMPONENT
// =============================================================================

// MessageList renders a whole transcript.
type MessageList struct {
	Messages []*model.Message
	Width    int
	Markdown *Markdown
}

// View renders all messages separated by blank lines.
func (ml *MessageList) View() string {
	if len(ml.Messages) == 0 {
		return lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true).
			Width(ml.Width).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("No messages yet. Say something!")
	}

	bubbles := make([]string, 0, len(ml.Messages))
	for _, msg := range ml.Messages {
		b := NewMessageBubble(msg, ml.Markdown)
		b.Width = ml.Width
		bubbles = append(bubbles, b.View())
	}
	return strings.Join(bubbles, "\n\n")
}
